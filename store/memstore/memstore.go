// Package memstore is the in-memory store.Provider used by tests and by
// ResourceX Engine constructors that don't need durability, the
// analogue of the teacher's storagedriver/inmemory.Driver.
package memstore

import (
	"context"
	"sync"

	"github.com/deepractice/resourcex/store"
)

// BlobStore is an in-memory store.BlobStore.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: map[string][]byte{}}
}

func (b *BlobStore) Put(ctx context.Context, digest string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := append([]byte(nil), data...)
	b.blobs[digest] = cp
	return nil
}

func (b *BlobStore) Get(ctx context.Context, digest string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[digest]
	if !ok {
		return nil, store.ErrNotFound{Key: digest}
	}
	return append([]byte(nil), data...), nil
}

func (b *BlobStore) Has(ctx context.Context, digest string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blobs[digest]
	return ok, nil
}

func (b *BlobStore) Delete(ctx context.Context, digest string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, digest)
	return nil
}

// ListDigests implements store.BlobLister.
func (b *BlobStore) ListDigests(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	digests := make([]string, 0, len(b.blobs))
	for d := range b.blobs {
		digests = append(digests, d)
	}
	return digests, nil
}
