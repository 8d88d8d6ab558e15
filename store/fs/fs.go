// Package fs is the filesystem store.Provider, grounded on the teacher's
// storagedriver/filesystem.FilesystemDriver (root-relative subpaths,
// temp-file-then-rename writes) and registry/storage/paths.go (the
// {registry}/{path}/{name}.{type}/{tag}/manifest.json tree, here
// generalized from the teacher's fixed Docker v2 layout to the §6
// on-disk layout).
package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/store"
)

// BlobStore is a store.BlobStore rooted at a data directory, laying
// blobs out as blobs/<first-2-hex>/<remaining-62-hex> per §6.
type BlobStore struct {
	root string
}

// NewBlobStore constructs a BlobStore under root/blobs.
func NewBlobStore(root string) *BlobStore {
	return &BlobStore{root: filepath.Join(root, "blobs")}
}

func (b *BlobStore) path(digest string) string {
	hex := strings.TrimPrefix(digest, "sha256:")
	if len(hex) < 2 {
		hex = hex + strings.Repeat("0", 2-len(hex))
	}
	return filepath.Join(b.root, hex[:2], hex[2:])
}

// Put writes data under digest's path using a temp-file-then-rename
// sequence so concurrent readers never observe a partially written
// blob, the same pattern storagedriver/filesystem.go's PutContent uses.
func (b *BlobStore) Put(ctx context.Context, digest string, data []byte) error {
	dest := b.path(digest)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-blob-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	rxlog.GetLogger(ctx).WithField("digest", digest).Debug("blob written")
	return nil
}

func (b *BlobStore) Get(ctx context.Context, digest string) ([]byte, error) {
	data, err := os.ReadFile(b.path(digest))
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound{Key: digest}
	}
	return data, err
}

func (b *BlobStore) Has(ctx context.Context, digest string) (bool, error) {
	_, err := os.Stat(b.path(digest))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (b *BlobStore) Delete(ctx context.Context, digest string) error {
	err := os.Remove(b.path(digest))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListDigests implements store.BlobLister by walking the two-level
// blobs/<2-hex>/<62-hex> tree, the mirror image of path().
func (b *BlobStore) ListDigests(ctx context.Context) ([]string, error) {
	var digests []string
	err := filepath.Walk(b.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		hex := strings.ReplaceAll(rel, string(filepath.Separator), "")
		digests = append(digests, "sha256:"+hex)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return digests, nil
}
