package cas

import (
	"context"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/store"
)

// GC deletes every blob with no referring manifest tag, the supplemented
// "orphan blob GC" feature §3 allows ("orphan blob GC is allowed but not
// required"), grounded on the teacher's registry/storage/garbagecollect.go
// mark-and-sweep walker (mark every blob referenced by a manifest, sweep
// everything else), adapted here from OCI layers to RXA archives.
//
// GC requires the blob store to implement store.BlobLister; both
// Providers in this repo do. It returns the count of blobs removed.
func (r *Registry) GC(ctx context.Context) (int, error) {
	lister, ok := r.blobs.(store.BlobLister)
	if !ok {
		return 0, rxerr.New(rxerr.Transport, "unsupported", "blob store does not support listing for GC")
	}

	digests, err := lister.ListDigests(ctx)
	if err != nil {
		return 0, rxerr.Wrap(rxerr.Transport, "", "listing blobs", err)
	}

	keys, err := r.manifests.List(ctx, "", 0, 0)
	if err != nil {
		return 0, rxerr.Wrap(rxerr.Transport, "", "listing manifests", err)
	}

	// Mark: every digest still referenced by a tag entry.
	referenced := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, digest, err := r.manifests.GetTag(ctx, k)
		if err != nil {
			continue
		}
		referenced[digest] = true
	}

	// Sweep: delete every blob not marked.
	removed := 0
	for _, d := range digests {
		if referenced[d] {
			continue
		}
		if err := r.blobs.Delete(ctx, d); err != nil {
			return removed, rxerr.Wrap(rxerr.Transport, "", "deleting orphan blob "+d, err)
		}
		removed++
	}

	rxlog.GetLogger(ctx).WithField("removed", removed).Info("gc complete")
	return removed, nil
}
