// Package store defines the two store contracts of §4.4 — a
// content-addressed blob store and a locator-keyed manifest store — and
// the filesystem/in-memory Providers that implement them. This is the
// RXAStore/RXMStore layer the teacher calls storagedriver.StorageDriver
// plus registry/storage/tagstore.go's TagService, split the same way:
// one contract for opaque content-addressed bytes, one for the
// name/tag bookkeeping layered on top.
package store

import "context"

// TagKey identifies one manifest entry: a specific tag of a specific
// (registry, path, name, type).
type TagKey struct {
	Registry string
	Path     []string
	Name     string
	Type     string
	Tag      string
}

// LatestKey identifies the "latest pointer" slot shared by every tag of
// one (registry, path, name, type).
type LatestKey struct {
	Registry string
	Path     []string
	Name     string
	Type     string
}

// BlobStore is the content-addressed archive blob store (RXAStore).
// Blobs are immutable and write-once; Put is idempotent on an equal
// digest, mirroring storagedriver.StorageDriver's PutContent semantics
// generalized to a digest-keyed namespace instead of a path-keyed one.
type BlobStore interface {
	Put(ctx context.Context, digest string, data []byte) error
	Get(ctx context.Context, digest string) ([]byte, error)
	Has(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

// ManifestStore is the locator-keyed manifest store (RXMStore), the
// analogue of registry/storage/tagstore.go's TagService.
type ManifestStore interface {
	PutTag(ctx context.Context, key TagKey, digest string, manifestJSON []byte) error
	GetTag(ctx context.Context, key TagKey) (manifestJSON []byte, digest string, err error)
	HasTag(ctx context.Context, key TagKey) (bool, error)
	DeleteTag(ctx context.Context, key TagKey) error

	SetLatest(ctx context.Context, key LatestKey, tag string) error
	GetLatest(ctx context.Context, key LatestKey) (tag string, ok bool, err error)
	ClearLatestIfPointsTo(ctx context.Context, key LatestKey, tag string) error

	// List enumerates tag entries matching an optional case-insensitive
	// substring filter against "registry path name type" concatenated,
	// per §4.5, paginated by limit/offset (limit<=0 means unlimited).
	List(ctx context.Context, filter string, limit, offset int) ([]TagKey, error)

	// ClearCache removes entries whose Registry matches registry, or
	// (when registry=="") every entry with a non-empty Registry, per
	// §4.5's clearCache.
	ClearCache(ctx context.Context, registry string) error
}

// BlobLister is an optional capability a BlobStore Provider may
// implement, letting cas.Registry.GC walk every stored digest. Not part
// of the core BlobStore contract (§4.4 names only put/get/has/delete);
// both Providers in this repo implement it.
type BlobLister interface {
	ListDigests(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned by Get/GetTag when the key is absent.
type ErrNotFound struct{ Key string }

func (e ErrNotFound) Error() string { return "not found: " + e.Key }
