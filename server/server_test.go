package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepractice/resourcex/cas"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/store/memstore"
)

func newTestServer() *httptest.Server {
	reg := cas.New(memstore.NewBlobStore(), memstore.NewManifestStore(), nil)
	return httptest.NewServer(New(reg))
}

func publish(t *testing.T, base, locator, content string) publishResponse {
	t.Helper()
	archive, err := rxa.PackContent([]byte(content))
	require.NoError(t, err)
	manifest, err := rxm.New(rxm.Input{Name: "hello", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	manifestJSON, err := json.Marshal(manifest)
	require.NoError(t, err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("locator", locator))
	mp, err := w.CreateFormFile("manifest", "manifest.json")
	require.NoError(t, err)
	_, err = mp.Write(manifestJSON)
	require.NoError(t, err)
	cp, err := w.CreateFormFile("content", "content.tar.gz")
	require.NoError(t, err)
	_, err = cp.Write(archive.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/publish", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out publishResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPublishFetchManifestAndContent(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	out := publish(t, srv.URL, "hello:1.0", "Hello")
	assert.Equal(t, "hello:1.0", out.Locator)
	assert.NotEmpty(t, out.Digest)

	resp, err := http.Get(srv.URL + "/api/v1/resource/" + url.PathEscape("hello:1.0"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m rxm.Manifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, out.Digest, m.Archive.Digest)

	resp2, err := http.Get(srv.URL + "/api/v1/content/" + url.PathEscape("hello:1.0"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "application/gzip", resp2.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	archive, err := rxa.FromGzip(data)
	require.NoError(t, err)
	content, err := archive.File("content")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(content))
}

func TestHeadAndDelete(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	publish(t, srv.URL, "hello:1.0", "Hello")

	resp, err := http.Head(srv.URL + "/api/v1/resource/" + url.PathEscape("hello:1.0"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/resource/"+url.PathEscape("hello:1.0"), nil)
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)

	resp3, err := http.Head(srv.URL + "/api/v1/resource/" + url.PathEscape("hello:1.0"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestPublishDigestMismatchRejected(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	archive, err := rxa.PackContent([]byte("Hello"))
	require.NoError(t, err)
	manifest, err := rxm.New(rxm.Input{Name: "hello", Type: "text", Tag: "1.0"})
	require.NoError(t, err)
	manifest.Archive.Digest = "sha256:" + strings.Repeat("0", 64)
	manifestJSON, err := json.Marshal(manifest)
	require.NoError(t, err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("locator", "hello:1.0"))
	mp, err := w.CreateFormFile("manifest", "manifest.json")
	require.NoError(t, err)
	_, _ = mp.Write(manifestJSON)
	cp, err := w.CreateFormFile("content", "content.tar.gz")
	require.NoError(t, err)
	_, _ = cp.Write(archive.Bytes())
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/publish", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	publish(t, srv.URL, "hello:1.0", "Hello")

	resp, err := http.Get(srv.URL + "/api/v1/search?q=hello")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var locators []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&locators))
	assert.Contains(t, locators, "hello:1.0")
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.Checks["store"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	publish(t, srv.URL, "hello:1.0", "Hello")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOptionsPreflight(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/resource/x", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
