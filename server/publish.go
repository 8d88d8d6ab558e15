package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/rxa"
	"github.com/deepractice/resourcex/rxid"
	"github.com/deepractice/resourcex/rxm"
	"github.com/deepractice/resourcex/rxr"
)

// publishResponse is the 201 body of §4.10's POST /publish: "Returns
// 201 {locator, digest}".
type publishResponse struct {
	Locator string `json:"locator"`
	Digest  string `json:"digest"`
}

// handlePublish implements POST /api/v1/publish: multipart fields
// locator/manifest/content. The digest is always recomputed from the
// uploaded content and any digest already present in the uploaded
// manifest or locator must agree with it, per §4.10 and the §9
// "ambiguity resolved" note; disagreement is rejected with 400.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	instrument("publish", r.Method)

	const maxMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, rxerr.Wrap(rxerr.Content, "bad-multipart", "parsing multipart form", err))
		return
	}

	locatorStr := r.FormValue("locator")
	if locatorStr == "" {
		writeError(w, rxerr.New(rxerr.Locator, "missing-locator", "publish requires a locator field"))
		return
	}
	id, err := rxid.Parse(locatorStr)
	if err != nil {
		writeError(w, err)
		return
	}

	manifestFile, _, err := r.FormFile("manifest")
	if err != nil {
		writeError(w, rxerr.Wrap(rxerr.Manifest, "missing-manifest", "publish requires a manifest file part", err))
		return
	}
	defer manifestFile.Close()
	manifestBytes, err := io.ReadAll(manifestFile)
	if err != nil {
		writeError(w, rxerr.Wrap(rxerr.Transport, "", "reading manifest part", err))
		return
	}
	var manifest rxm.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		writeError(w, rxerr.Wrap(rxerr.Manifest, "", "decoding manifest part", err))
		return
	}

	contentFile, _, err := r.FormFile("content")
	if err != nil {
		writeError(w, rxerr.Wrap(rxerr.Content, "missing-content", "publish requires a content file part", err))
		return
	}
	defer contentFile.Close()
	contentBytes, err := io.ReadAll(contentFile)
	if err != nil {
		writeError(w, rxerr.Wrap(rxerr.Transport, "", "reading content part", err))
		return
	}

	archive, err := rxa.FromGzip(contentBytes)
	if err != nil {
		writeError(w, err)
		return
	}

	digest := archive.Digest()
	if manifest.Archive.Digest != "" && manifest.Archive.Digest != digest {
		_, env := rxerr.HTTPStatus(rxerr.New(rxerr.Registry, "digest-mismatch", "manifest digest does not match uploaded content"))
		writeJSON(w, http.StatusBadRequest, env)
		return
	}
	if id.Digest != "" && id.Digest != digest {
		_, env := rxerr.HTTPStatus(rxerr.New(rxerr.Registry, "digest-mismatch", "locator digest does not match uploaded content"))
		writeJSON(w, http.StatusBadRequest, env)
		return
	}
	manifest.Archive.Digest = digest
	manifest.Definition.Tag = id.TagOrDefault()

	if !rxm.MatchesIdentifier(id, &manifest) {
		writeError(w, rxerr.New(rxerr.Manifest, "identity-mismatch", "locator does not match manifest definition"))
		return
	}

	res, err := rxr.New(id, &manifest, archive)
	if err != nil {
		writeError(w, err)
		return
	}

	// Serialize concurrent publishes on the same locator per §5; the
	// underlying blob-put/manifest-write/latest-pointer sequence is
	// itself atomic via rename-into-place (store/fs), this mutex only
	// prevents two publishes for the same tag interleaving.
	lock := s.lockFor(rxid.Format(id.WithoutTag()) + ":" + id.TagOrDefault())
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.Registry.Put(r.Context(), res)
	if err != nil {
		writeError(w, err)
		return
	}

	rxlog.GetLogger(r.Context()).WithField("locator", rxid.Format(stored.ID)).Info("published")
	writeJSON(w, http.StatusCreated, publishResponse{
		Locator: rxid.Format(stored.ID),
		Digest:  stored.Manifest.Archive.Digest,
	})
}
