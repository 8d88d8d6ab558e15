package cas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
	"github.com/deepractice/resourcex/store/memstore"
)

func newTestRegistry() *Registry {
	return New(memstore.NewBlobStore(), memstore.NewManifestStore(), nil)
}

func putText(t *testing.T, r *Registry, name, tag, content string) *rxr.Resource {
	t.Helper()
	manifest, err := rxm.New(rxm.Input{Name: name, Type: "text", Tag: tag})
	require.NoError(t, err)

	archive, err := rxa.PackContent([]byte(content))
	require.NoError(t, err)

	id := rxid.Identifier{Name: name, Tag: tag}
	res, err := rxr.New(id, manifest, archive)
	require.NoError(t, err)

	out, err := r.Put(context.Background(), res)
	require.NoError(t, err)
	return out
}

func TestPutGetRoundTrip(t *testing.T) {
	r := newTestRegistry()
	putText(t, r, "hello", "1.0", "Hello")

	id, err := rxid.Parse("hello:1.0")
	require.NoError(t, err)

	got, err := r.Get(context.Background(), id)
	require.NoError(t, err)

	content, err := got.Archive.File("content")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(content))
}

func TestLatestResolution(t *testing.T) {
	r := newTestRegistry()
	putText(t, r, "app", "1.0", "v1")
	putText(t, r, "app", "2.0", "v2")

	id, err := rxid.Parse("app:latest")
	require.NoError(t, err)
	got, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	content, _ := got.Archive.File("content")
	assert.Equal(t, "v2", string(content))

	idNoTag, err := rxid.Parse("app")
	require.NoError(t, err)
	got, err = r.Get(context.Background(), idNoTag)
	require.NoError(t, err)
	content, _ = got.Archive.File("content")
	assert.Equal(t, "v2", string(content))
}

func TestDigestPinning(t *testing.T) {
	r := newTestRegistry()
	res := putText(t, r, "hello", "1.0", "Hello")
	digest := res.Archive.Digest()

	ok, err := rxid.Parse("hello:1.0@" + digest)
	require.NoError(t, err)
	_, err = r.Get(context.Background(), ok)
	require.NoError(t, err)

	bad, err := rxid.Parse("hello:1.0@sha256:" + "0000000000000000000000000000000000000000000000000000000000000000"[:64])
	require.NoError(t, err)
	_, err = r.Get(context.Background(), bad)
	assert.Error(t, err)
}

func TestRemoveClearsLatest(t *testing.T) {
	r := newTestRegistry()
	putText(t, r, "app", "1.0", "v1")

	id, err := rxid.Parse("app:1.0")
	require.NoError(t, err)
	require.NoError(t, r.Remove(context.Background(), id))

	has, err := r.Has(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, has)

	_, ok, err := r.manifests.GetLatest(context.Background(), latestKey(id))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListFilter(t *testing.T) {
	r := newTestRegistry()
	putText(t, r, "hello", "1.0", "Hello")
	putText(t, r, "world", "1.0", "World")

	ids, err := r.List(context.Background(), "hel", 0, 0)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "hello", ids[0].Name)
}
