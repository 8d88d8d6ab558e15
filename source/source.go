// Package source implements the §4.6 source loader chain: an ordered
// chain-of-responsibility of Loaders, each declaring whether it can
// load a given source and, if so, producing a pending Resource. The
// shape is grounded on the teacher's auth.AccessController registry
// (auth/auth.go) — an interface plus an ordered, registration-time list
// of candidates — adapted from "first controller that authorizes wins"
// to "first loader that recognizes the source wins".
package source

import (
	"context"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/rxr"
)

// Loader materializes a source (a local directory today; §1 notes
// remote URL sources as future work, out of scope here) into a pending
// Resource — one with a Manifest and file set, but no archive packed
// yet.
type Loader interface {
	// CanLoad reports whether this loader recognizes src.
	CanLoad(src interface{}) bool
	// Load materializes src into a Resource and its raw file set. The
	// Resource's Archive is nil; callers pack it via rxr.EnsureArchive.
	Load(ctx context.Context, src interface{}) (*rxr.Resource, map[string][]byte, error)
}

// Chain is an ordered list of Loaders, consulted in registration order
// per §4.6 ("each loader's canLoad is consulted in registration order").
type Chain struct {
	loaders []Loader
}

// NewChain builds a Chain with the given loaders, in the order given.
func NewChain(loaders ...Loader) *Chain {
	return &Chain{loaders: loaders}
}

// Register appends a loader to the end of the chain.
func (c *Chain) Register(l Loader) {
	c.loaders = append(c.loaders, l)
}

// Accepts reports whether any loader in the chain recognizes src.
func (c *Chain) Accepts(src interface{}) bool {
	for _, l := range c.loaders {
		if l.CanLoad(src) {
			return true
		}
	}
	return false
}

// Load runs src through the first loader in the chain that accepts it,
// packing the resulting file set into the Resource's archive.
func (c *Chain) Load(ctx context.Context, src interface{}) (*rxr.Resource, error) {
	for _, l := range c.loaders {
		if !l.CanLoad(src) {
			continue
		}
		res, files, err := l.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		if err := res.EnsureArchive(files); err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, rxerr.New(rxerr.Content, "unrecognized-source", "no loader recognizes this source")
}
