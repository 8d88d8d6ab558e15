// Package client implements the multi-registry client of §4.9:
// ingest/resolve/push/pull over C5's local CAS and the HTTP registry
// protocol of §4.10. It plays the role the teacher's
// registry/client.Repository plays for an OCI registry — a thin HTTP
// binding generalized here from blob/manifest service interfaces to
// ResourceX's single publish/resource/content surface, built on
// github.com/hashicorp/go-retryablehttp for the retry behavior the
// teacher's registry/client/transport package otherwise hand-rolls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/deepractice/resourcex/cas"
	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/resolve"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
	"github.com/deepractice/resourcex/rxtype"
	"github.com/deepractice/resourcex/source"
)

// Engine is the client facade: C5's local CAS, C6's source chain, C7's
// type chain, and an ordered registry chain, glued together behind
// ingest/resolve/push/pull.
type Engine struct {
	Local   *cas.Registry
	Sources *source.Chain
	Types   *rxtype.Chain

	// Chain is the registry chain of §4.9: configured registries in
	// order, then a built-in default. Entries are base URLs, e.g.
	// "https://registry.resourcex.dev".
	Chain []string

	http *retryablehttp.Client
}

// New builds an Engine. A nil http.RoundTripper default is fine;
// callers wanting custom TLS/proxy settings can reach into HTTPClient().
func New(local *cas.Registry, sources *source.Chain, types *rxtype.Chain, chain []string) *Engine {
	hc := retryablehttp.NewClient()
	hc.Logger = nil // the teacher's transport package logs via logrus at the call site instead
	return &Engine{Local: local, Sources: sources, Types: types, Chain: chain, http: hc}
}

// HTTPClient exposes the underlying retryablehttp.Client for advanced
// configuration (TLS, proxy, retry policy).
func (e *Engine) HTTPClient() *retryablehttp.Client { return e.http }

// Ingest implements §4.9's ingest(x): if the source chain recognizes x,
// it is always re-added (the CAS dedupes by digest). Otherwise x is
// treated as a locator string and resolved.
func (e *Engine) Ingest(ctx context.Context, x interface{}) (*rxr.Resource, error) {
	if e.Sources.Accepts(x) {
		res, err := e.Sources.Load(ctx, x)
		if err != nil {
			return nil, err
		}
		return e.Local.Put(ctx, res)
	}
	locator, ok := x.(string)
	if !ok {
		return nil, rxerr.New(rxerr.Content, "unrecognized-source", "source is neither a recognized loader input nor a locator string")
	}
	id, err := rxid.Parse(locator)
	if err != nil {
		return nil, err
	}
	return e.resolveResource(ctx, id)
}

// Resolve implements §4.9's resolve(locator, args): cache-first lookup
// with a freshness check against the registry (or registry chain) when
// the cache is stale or absent, followed by dispatch through C7/C8.
func (e *Engine) Resolve(ctx context.Context, locator string, args interface{}) (interface{}, error) {
	id, err := rxid.Parse(locator)
	if err != nil {
		return nil, err
	}
	res, err := e.resolveResource(ctx, id)
	if err != nil {
		return nil, err
	}

	typ, err := e.Types.Lookup(res.Manifest.Definition.Type)
	if err != nil {
		return nil, err
	}
	exe := resolve.NewInProcess(res.Manifest, res.Archive, typ.Resolver)
	return exe.Execute(ctx, args)
}

// resolveResource is the shared cache-then-chain lookup behind both
// Resolve and Ingest's locator path.
func (e *Engine) resolveResource(ctx context.Context, id rxid.Identifier) (*rxr.Resource, error) {
	if id.Registry != "" {
		return e.resolveQualified(ctx, id)
	}
	return e.resolveChain(ctx, id)
}

// resolveQualified handles §4.9 step 1: id.Registry is set. The wire
// calls to the registry always use the unqualified locator — a server's
// own CAS stores entries under the locator it was published with, which
// never carries the registry host the client reached it through (see
// Push) — only the local cache key carries id.Registry.
func (e *Engine) resolveQualified(ctx context.Context, id rxid.Identifier) (*rxr.Resource, error) {
	registryURL := normalizeRegistryURL(id.Registry)
	unqualified := id
	unqualified.Registry = ""

	cached, cacheErr := e.Local.Get(ctx, id)
	if cacheErr != nil {
		return e.pullFull(ctx, registryURL, unqualified, id.Registry)
	}

	remoteManifest, err := e.fetchManifest(ctx, registryURL, unqualified)
	if err != nil {
		// "On any network error, fall back to cache."
		rxlog.GetLogger(ctx).WithError(err).Warn("freshness check failed, serving cached resource")
		return cached, nil
	}
	if cached.Manifest.Archive.Digest != "" && cached.Manifest.Archive.Digest == remoteManifest.Archive.Digest {
		return cached, nil
	}
	return e.pullFull(ctx, registryURL, unqualified, id.Registry)
}

// resolveChain handles §4.9 step 2: id.Registry is absent.
func (e *Engine) resolveChain(ctx context.Context, id rxid.Identifier) (*rxr.Resource, error) {
	local := id
	local.Registry = ""
	if cached, err := e.Local.Get(ctx, local); err == nil {
		return cached, nil
	}

	var lastErr error
	for _, registryURL := range e.Chain {
		qualified := id
		qualified.Registry = registryURL

		remoteManifest, err := e.fetchManifest(ctx, registryURL, id)
		if err != nil {
			lastErr = err
			continue
		}

		if cachedChain, err := e.Local.Get(ctx, qualified); err == nil {
			if cachedChain.Manifest.Archive.Digest == remoteManifest.Archive.Digest {
				return cachedChain, nil
			}
		}

		content, err := e.fetchContent(ctx, registryURL, id)
		if err != nil {
			lastErr = err
			continue
		}
		archive, err := rxa.FromGzip(content)
		if err != nil {
			lastErr = err
			continue
		}
		res, err := rxr.New(qualified, remoteManifest, archive)
		if err != nil {
			lastErr = err
			continue
		}
		return e.Local.Put(ctx, res)
	}
	if lastErr == nil {
		lastErr = rxerr.New(rxerr.Registry, "not-found", "no registry in the chain has "+rxid.Format(id))
	}
	return nil, lastErr
}

// pullFull fetches manifest+content from registryURL and stores the
// result locally tagged with registryTag. The wire calls always use the
// unqualified form of id: the remote server's own CAS has no notion of
// the host the client reached it through, so sending a registry-qualified
// locator over the wire would 404 against the server's unqualified key.
func (e *Engine) pullFull(ctx context.Context, registryURL string, id rxid.Identifier, registryTag string) (*rxr.Resource, error) {
	unqualified := id
	unqualified.Registry = ""

	manifest, err := e.fetchManifest(ctx, registryURL, unqualified)
	if err != nil {
		return nil, err
	}
	content, err := e.fetchContent(ctx, registryURL, unqualified)
	if err != nil {
		return nil, err
	}
	archive, err := rxa.FromGzip(content)
	if err != nil {
		return nil, err
	}
	qualified := unqualified
	qualified.Registry = registryTag
	res, err := rxr.New(qualified, manifest, archive)
	if err != nil {
		return nil, err
	}
	return e.Local.Put(ctx, res)
}

// Pull implements §4.9's pull(locator, {registry?}): fetch the manifest
// then the content from registryURL and store locally.
func (e *Engine) Pull(ctx context.Context, locator, registryURL string) (*rxr.Resource, error) {
	id, err := rxid.Parse(locator)
	if err != nil {
		return nil, err
	}
	tag := id.Registry
	if tag == "" {
		tag = registryURL
	}
	return e.pullFull(ctx, normalizeRegistryURL(registryURL), id, tag)
}

// Push implements §4.9's push(locator, {registry?}): POST the locally
// stored resource to registryURL's publish endpoint.
func (e *Engine) Push(ctx context.Context, locator, registryURL string) (*rxm.Manifest, error) {
	id, err := rxid.Parse(locator)
	if err != nil {
		return nil, err
	}
	res, err := e.Local.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	manifestJSON, err := json.Marshal(res.Manifest)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Manifest, "", "encoding manifest", err)
	}

	canonical := id
	canonical.Tag = id.TagOrDefault()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("locator", rxid.Format(canonical)); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "writing locator field", err)
	}
	manifestPart, err := w.CreateFormFile("manifest", "manifest.json")
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "creating manifest form part", err)
	}
	if _, err := manifestPart.Write(manifestJSON); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "writing manifest form part", err)
	}
	contentPart, err := w.CreateFormFile("content", "content.tar.gz")
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "creating content form part", err)
	}
	if _, err := contentPart.Write(res.Archive.Bytes()); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "writing content form part", err)
	}
	if err := w.Close(); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "closing multipart writer", err)
	}

	endpoint := strings.TrimRight(normalizeRegistryURL(registryURL), "/") + "/api/v1/publish"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body.Bytes())
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "building publish request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "publishing to registry", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeHTTPError(resp)
	}

	var out struct {
		Locator string `json:"locator"`
		Digest  string `json:"digest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "decoding publish response", err)
	}
	res.Manifest.Archive.Digest = out.Digest
	return res.Manifest, nil
}

func (e *Engine) fetchManifest(ctx context.Context, registryURL string, id rxid.Identifier) (*rxm.Manifest, error) {
	endpoint := strings.TrimRight(registryURL, "/") + "/api/v1/resource/" + url.PathEscape(rxid.Format(id))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "building resource request", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "fetching manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeHTTPError(resp)
	}
	var manifest rxm.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, rxerr.Wrap(rxerr.Manifest, "", "decoding manifest response", err)
	}
	return &manifest, nil
}

func (e *Engine) fetchContent(ctx context.Context, registryURL string, id rxid.Identifier) ([]byte, error) {
	endpoint := strings.TrimRight(registryURL, "/") + "/api/v1/content/" + url.PathEscape(rxid.Format(id))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "building content request", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "fetching content", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeHTTPError(resp)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, rxerr.Wrap(rxerr.Transport, "", "reading content response", err)
	}
	return buf.Bytes(), nil
}

func normalizeRegistryURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// decodeHTTPError turns a non-2xx registry response into an *rxerr.Error,
// mirroring the teacher's registry/client/errors.go HandleErrorResponse
// but against this protocol's {error, message} envelope instead of the
// distribution spec's errcode.Errors list.
func decodeHTTPError(resp *http.Response) error {
	var env rxerr.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	if env.Message == "" {
		env.Message = fmt.Sprintf("registry responded %d", resp.StatusCode)
	}

	reason := ""
	switch resp.StatusCode {
	case http.StatusNotFound:
		reason = "not-found"
	case http.StatusConflict:
		reason = "digest-mismatch"
	}
	return rxerr.New(rxerr.Registry, reason, env.Message)
}
