package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepractice/resourcex/cas"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
	"github.com/deepractice/resourcex/rxtype"
	"github.com/deepractice/resourcex/source"
	"github.com/deepractice/resourcex/store/memstore"
)

// fakeRegistry is a minimal stand-in for the C10 HTTP server, serving
// just enough of §4.10 for the client's own tests to exercise pull/push
// without depending on the server package.
type fakeRegistry struct {
	manifest *rxm.Manifest
	content  []byte

	// lastResourcePath/lastContentPath record the raw request path seen
	// by each handler, so tests can assert the client never sends a
	// registry-qualified locator over the wire (the server's own CAS
	// has no notion of the host the client reached it through).
	lastResourcePath string
	lastContentPath  string
}

func (f *fakeRegistry) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/resource/", func(w http.ResponseWriter, r *http.Request) {
		f.lastResourcePath = r.URL.Path
		if f.manifest == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "REGISTRY_ERROR", "message": "not found"})
			return
		}
		json.NewEncoder(w).Encode(f.manifest)
	})
	mux.HandleFunc("/api/v1/content/", func(w http.ResponseWriter, r *http.Request) {
		f.lastContentPath = r.URL.Path
		if f.content == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(f.content)
	})
	mux.HandleFunc("/api/v1/publish", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mf, _, err := r.FormFile("manifest")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer mf.Close()
		data, _ := io.ReadAll(mf)
		var m rxm.Manifest
		json.Unmarshal(data, &m)

		cf, _, err := r.FormFile("content")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer cf.Close()
		contentBytes, _ := io.ReadAll(cf)
		archive, err := rxa.FromGzip(contentBytes)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.Archive.Digest = archive.Digest()
		f.manifest = &m
		f.content = contentBytes

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"locator": m.ToLocator(), "digest": archive.Digest()})
	})
	return mux
}

func newTestEngine() (*Engine, *cas.Registry) {
	reg := cas.New(memstore.NewBlobStore(), memstore.NewManifestStore(), nil)
	types := rxtype.NewChain()
	_ = rxtype.RegisterBuiltins(types)
	return New(reg, source.NewChain(), types, nil), reg
}

func TestPullFetchesManifestAndContent(t *testing.T) {
	archive, err := rxa.PackContent([]byte("hello from registry"))
	require.NoError(t, err)
	manifest, err := rxm.New(rxm.Input{Name: "greet", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	manifest.Archive.Digest = archive.Digest()

	fake := &fakeRegistry{manifest: manifest, content: archive.Bytes()}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine, _ := newTestEngine()
	res, err := engine.Pull(context.Background(), "greet:1.0", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "greet", res.Manifest.Definition.Name)

	content, err := res.Archive.File("content")
	require.NoError(t, err)
	assert.Equal(t, "hello from registry", string(content))
}

func TestPushUploadsLocallyStoredResource(t *testing.T) {
	fake := &fakeRegistry{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine, reg := newTestEngine()

	manifest, err := rxm.New(rxm.Input{Name: "greet", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	archive, err := rxa.PackContent([]byte("pushed content"))
	require.NoError(t, err)
	id := rxid.Identifier{Name: "greet", Tag: "1.0"}
	res, err := rxr.New(id, manifest, archive)
	require.NoError(t, err)
	_, err = reg.Put(context.Background(), res)
	require.NoError(t, err)

	pushed, err := engine.Push(context.Background(), "greet:1.0", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "greet", pushed.Definition.Name)
	assert.NotEmpty(t, pushed.Archive.Digest)
	assert.NotNil(t, fake.manifest)
}

func TestResolveQualifiedFallsBackToCacheOnNetworkError(t *testing.T) {
	engine, reg := newTestEngine()
	engine.HTTPClient().RetryMax = 0

	manifest, err := rxm.New(rxm.Input{Name: "greet", Type: "text", Tag: "1.0", Registry: "unreachable.example"})
	require.NoError(t, err)
	archive, err := rxa.PackContent([]byte("cached value"))
	require.NoError(t, err)
	id := rxid.Identifier{Registry: "unreachable.example", Name: "greet", Tag: "1.0"}
	res, err := rxr.New(id, manifest, archive)
	require.NoError(t, err)
	_, err = reg.Put(context.Background(), res)
	require.NoError(t, err)

	v, err := engine.Resolve(context.Background(), "unreachable.example/greet:1.0", nil)
	require.NoError(t, err)
	assert.Equal(t, "cached value", v)
}

// TestPullFullSendsUnqualifiedLocatorOverWire guards the push/resolve
// round trip of a registry-qualified locator: a server's own CAS stores
// entries under the locator it was published with (no registry host),
// so pullFull must strip id.Registry before building the wire request,
// even though the resulting local cache entry is still tagged with it.
func TestPullFullSendsUnqualifiedLocatorOverWire(t *testing.T) {
	archive, err := rxa.PackContent([]byte("hello"))
	require.NoError(t, err)
	manifest, err := rxm.New(rxm.Input{Name: "greet", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	manifest.Archive.Digest = archive.Digest()

	fake := &fakeRegistry{manifest: manifest, content: archive.Bytes()}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	engine, reg := newTestEngine()
	id := rxid.Identifier{Registry: "myregistry.example:9999", Name: "greet", Tag: "1.0"}

	res, err := engine.pullFull(context.Background(), srv.URL, id, id.Registry)
	require.NoError(t, err)
	assert.Equal(t, "greet", res.Manifest.Definition.Name)

	assert.Equal(t, "/api/v1/resource/greet:1.0", fake.lastResourcePath)
	assert.Equal(t, "/api/v1/content/greet:1.0", fake.lastContentPath)

	// The local cache entry is still stored qualified, so a later
	// resolveQualified cache lookup with the same registry-qualified id
	// finds it.
	cached, err := reg.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "greet", cached.Manifest.Definition.Name)
}

func TestResolveChainSkipsRegistryWithoutTheResource(t *testing.T) {
	fakeEmpty := &fakeRegistry{}
	emptySrv := httptest.NewServer(fakeEmpty.handler())
	defer emptySrv.Close()

	archive, err := rxa.PackContent([]byte("chain value"))
	require.NoError(t, err)
	manifest, err := rxm.New(rxm.Input{Name: "chained", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	manifest.Archive.Digest = archive.Digest()
	fakeHit := &fakeRegistry{manifest: manifest, content: archive.Bytes()}
	hitSrv := httptest.NewServer(fakeHit.handler())
	defer hitSrv.Close()

	engine, _ := newTestEngine()
	engine.Chain = []string{emptySrv.URL, hitSrv.URL}

	v, err := engine.Resolve(context.Background(), "chained:1.0", nil)
	require.NoError(t, err)
	assert.Equal(t, "chain value", v)
}
