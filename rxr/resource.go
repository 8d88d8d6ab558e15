// Package rxr defines Resource, the (identifier, manifest, archive)
// triple of §3 shared by the source loader, CAS registry, and client —
// the in-memory value object every other component passes around. It
// plays the role the teacher's top-level distribution.Descriptor and
// distribution.Manifest interfaces play for an OCI image: the common
// currency components exchange without depending on each other's
// internals.
package rxr

import (
	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
)

// Resource is the (identifier, manifest, archive) triple of §3.
type Resource struct {
	ID       rxid.Identifier
	Manifest *rxm.Manifest
	Archive  *rxa.Archive
}

// New builds a Resource, checking that the identifier's name matches the
// manifest definition and that, if the manifest already carries an
// archive digest, it equals the one recomputed from archive. The
// identifier's registry, path and tag are not compared with the
// definition.
func New(id rxid.Identifier, manifest *rxm.Manifest, archive *rxa.Archive) (*Resource, error) {
	if id.Name != manifest.Definition.Name {
		return nil, rxerr.New(rxerr.Manifest, "identity-mismatch", "identifier name does not match manifest definition")
	}
	if archive != nil && manifest.Archive.Digest != "" && manifest.Archive.Digest != archive.Digest() {
		return nil, rxerr.New(rxerr.Registry, "digest-mismatch", "manifest archive digest does not match archive content")
	}
	return &Resource{ID: id, Manifest: manifest, Archive: archive}, nil
}

// EnsureArchive packs r.Manifest's source files into an Archive if one
// is not already attached, stamping Manifest.Archive.Digest and
// Manifest.Source from the packed file set.
func (r *Resource) EnsureArchive(files map[string][]byte) error {
	if r.Archive != nil {
		return nil
	}
	a, err := rxa.Pack(files)
	if err != nil {
		return err
	}
	r.Archive = a
	r.Manifest.Archive.Digest = a.Digest()
	r.Manifest.Source.Files = rxm.BuildFileTree(files)
	r.Manifest.Source.Preview = rxm.BuildPreview(files)
	return nil
}
