// Package cas implements the CAS Registry of §4.5: the local orchestrator
// composing the archive codec (rxa) and the two stores (store.BlobStore,
// store.ManifestStore) into put/get/has/remove/list. It plays the role
// the teacher's registry/storage/registry.go "registry" struct plays —
// the object that glues a blob service and a tag service into one
// coherent local store — generalized from Docker repositories/tags to
// ResourceX identifiers/manifests.
package cas

import (
	"context"
	"encoding/json"

	"github.com/docker/go-events"
	metrics "github.com/docker/go-metrics"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
	"github.com/deepractice/resourcex/store"
)

var (
	metricsNS   = metrics.NewNamespace("resourcex", "cas", nil)
	putCounter  = metricsNS.NewCounter("puts_total", "total CAS put operations")
	getCounter  = metricsNS.NewCounter("gets_total", "total CAS get operations")
	rmCounter   = metricsNS.NewCounter("removes_total", "total CAS remove operations")
)

func init() {
	metrics.Register(metricsNS)
}

// Event is published on the Registry's events.Sink after a successful
// mutating operation, generalizing the teacher's
// registry/storage/notifications webhook bridge into an in-process bus.
type Event struct {
	Kind     string // "put", "remove"
	Locator  string
	Digest   string
}

// Registry is the local CAS orchestrator.
type Registry struct {
	blobs     store.BlobStore
	manifests store.ManifestStore
	sink      events.Sink
}

// New constructs a Registry over the given blob and manifest stores. A
// nil sink is replaced with a no-op sink.
func New(blobs store.BlobStore, manifests store.ManifestStore, sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Sink(nopSink{})
	}
	return &Registry{blobs: blobs, manifests: manifests, sink: sink}
}

type nopSink struct{}

func (nopSink) Write(events.Event) error { return nil }

func latestKey(id rxid.Identifier) store.LatestKey {
	return store.LatestKey{Registry: id.Registry, Path: id.Path, Name: id.Name}
}

// Put stores the blob, writes the manifest, and sets the latest pointer
// to this tag. It does not pack: a resource whose Archive is nil is
// rejected with a ContentError. The writes are ordered per §5: the blob is
// written before the manifest, and the manifest before the latest
// pointer, so a reader never observes a dangling reference.
func (r *Registry) Put(ctx context.Context, res *rxr.Resource) (*rxr.Resource, error) {
	if res.Archive == nil {
		return nil, rxerr.New(rxerr.Content, "unpacked", "resource has no packed archive")
	}
	id := res.ID
	tag := id.TagOrDefault()

	digest := res.Archive.Digest()
	if err := r.blobs.Put(ctx, digest, res.Archive.Bytes()); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "writing blob", err)
	}

	res.Manifest.Archive.Digest = digest
	manifestJSON, err := json.Marshal(res.Manifest)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Manifest, "", "encoding manifest", err)
	}

	key := store.TagKey{Registry: id.Registry, Path: id.Path, Name: id.Name, Type: res.Manifest.Definition.Type, Tag: tag}
	if err := r.manifests.PutTag(ctx, key, digest, manifestJSON); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "writing manifest", err)
	}

	lk := latestKey(id)
	// A type-specific LatestKey.Type isn't part of the (registry,path,name)
	// latest pointer per §3; key on (registry,path,name) only, matching
	// registry/storage/tagstore.go's single latest-per-repository slot.
	if err := r.manifests.SetLatest(ctx, lk, tag); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "updating latest pointer", err)
	}

	res.Manifest.Definition.Tag = tag
	res.ID.Tag = tag

	putCounter.Inc()
	rxlog.GetLogger(ctx).WithField("locator", rxid.Format(res.ID)).WithField("digest", digest).Info("put")
	r.sink.Write(events.Event(Event{Kind: "put", Locator: rxid.Format(res.ID), Digest: digest}))

	return res, nil
}

// findKey locates the manifest entry for id per the §4.5 tag-resolution
// order (explicit tag, or the latest pointer when no tag/"latest" is
// given). It doesn't need id's type: the on-disk layout keys manifests
// by type, but List returns all types for the name, which is enough to
// locate the one tag entry that matches name+registry+path+tag.
func (r *Registry) findKey(ctx context.Context, id rxid.Identifier) (store.TagKey, error) {
	tag := id.Tag
	if tag == "" {
		tag = "latest"
	}

	if tag != "latest" {
		keys, err := r.manifests.List(ctx, id.Name, 0, 0)
		if err != nil {
			return store.TagKey{}, rxerr.Wrap(rxerr.Transport, "", "listing manifests", err)
		}
		for _, k := range keys {
			if k.Registry == id.Registry && k.Name == id.Name && k.Tag == tag && samePath(k.Path, id.Path) {
				return k, nil
			}
		}
		return store.TagKey{}, rxerr.New(rxerr.Registry, "not-found", "no such tag for "+rxid.Format(id))
	}

	resolvedTag, ok, err := r.manifests.GetLatest(ctx, latestKey(id))
	if err != nil {
		return store.TagKey{}, rxerr.Wrap(rxerr.Transport, "", "reading latest pointer", err)
	}
	if !ok {
		return store.TagKey{}, rxerr.New(rxerr.Registry, "not-found", "no latest tag for "+rxid.Format(id))
	}
	keys, err := r.manifests.List(ctx, id.Name, 0, 0)
	if err != nil {
		return store.TagKey{}, rxerr.Wrap(rxerr.Transport, "", "listing manifests", err)
	}
	for _, k := range keys {
		if k.Registry == id.Registry && k.Name == id.Name && k.Tag == resolvedTag && samePath(k.Path, id.Path) {
			return k, nil
		}
	}
	return store.TagKey{}, rxerr.New(rxerr.Registry, "not-found", "latest tag points to a missing manifest")
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Get resolves id (per the tag-resolution order) and returns the full
// Resource, including its archive bytes.
func (r *Registry) Get(ctx context.Context, id rxid.Identifier) (*rxr.Resource, error) {
	key, err := r.findKey(ctx, id)
	if err != nil {
		return nil, err
	}

	manifestJSON, digest, err := r.manifests.GetTag(ctx, key)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Registry, "not-found", "reading manifest for "+rxid.Format(id), err)
	}

	if id.Digest != "" && id.Digest != digest {
		return nil, rxerr.New(rxerr.Registry, "digest-mismatch", "pinned digest does not match stored manifest")
	}

	var manifest rxm.Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, rxerr.Wrap(rxerr.Manifest, "", "decoding manifest", err)
	}

	blobBytes, err := r.blobs.Get(ctx, digest)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "reading blob", err)
	}

	archive, err := rxa.FromGzip(blobBytes)
	if err != nil {
		return nil, err
	}

	resolved := rxid.Identifier{Registry: key.Registry, Path: key.Path, Name: key.Name, Tag: key.Tag, Digest: digest}
	getCounter.Inc()
	return rxr.New(resolved, &manifest, archive)
}

// Has reports whether id resolves to an existing manifest entry,
// without fetching the blob.
func (r *Registry) Has(ctx context.Context, id rxid.Identifier) (bool, error) {
	key, err := r.findKey(ctx, id)
	if err != nil {
		if e, ok := err.(*rxerr.Error); ok && e.Reason == "not-found" {
			return false, nil
		}
		return false, err
	}
	return r.manifests.HasTag(ctx, key)
}

// Remove deletes the tag entry, clearing the latest pointer if it
// pointed here. The blob is never deleted (it may be shared).
func (r *Registry) Remove(ctx context.Context, id rxid.Identifier) error {
	key, err := r.findKey(ctx, id)
	if err != nil {
		return err
	}
	if err := r.manifests.DeleteTag(ctx, key); err != nil {
		return rxerr.Wrap(rxerr.Transport, "", "deleting manifest", err)
	}
	if err := r.manifests.ClearLatestIfPointsTo(ctx, latestKey(id), key.Tag); err != nil {
		return rxerr.Wrap(rxerr.Transport, "", "clearing latest pointer", err)
	}
	rmCounter.Inc()
	rxlog.GetLogger(ctx).WithField("locator", rxid.Format(id)).Info("removed")
	r.sink.Write(events.Event(Event{Kind: "remove", Locator: rxid.Format(id)}))
	return nil
}

// List enumerates manifest entries matching an optional substring
// filter, paginated by limit/offset, per §4.5.
func (r *Registry) List(ctx context.Context, filter string, limit, offset int) ([]rxid.Identifier, error) {
	keys, err := r.manifests.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "listing manifests", err)
	}
	ids := make([]rxid.Identifier, len(keys))
	for i, k := range keys {
		ids[i] = rxid.Identifier{Registry: k.Registry, Path: k.Path, Name: k.Name, Tag: k.Tag}
	}
	return ids, nil
}

// ClearCache removes manifest entries whose registry matches (or all
// non-local entries if registry=="").
func (r *Registry) ClearCache(ctx context.Context, registry string) error {
	return r.manifests.ClearCache(ctx, registry)
}

// GetStoredManifest is a cheap metadata-only read used by the client's
// freshness check (§4.9): it reads the manifest without fetching the
// blob.
func (r *Registry) GetStoredManifest(ctx context.Context, id rxid.Identifier) (*rxm.Manifest, error) {
	key, err := r.findKey(ctx, id)
	if err != nil {
		return nil, err
	}
	manifestJSON, _, err := r.manifests.GetTag(ctx, key)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Registry, "not-found", "reading manifest for "+rxid.Format(id), err)
	}
	var manifest rxm.Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, rxerr.Wrap(rxerr.Manifest, "", "decoding manifest", err)
	}
	return &manifest, nil
}
