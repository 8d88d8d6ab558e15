package server

import (
	"net/http"

	"github.com/deepractice/resourcex/internal/rxerr"
	"github.com/deepractice/resourcex/internal/rxlog"
	"github.com/deepractice/resourcex/rxid"
)

// handleResource dispatches GET/HEAD/DELETE /api/v1/resource/{locator}
// per §4.10's table, mirroring the teacher's MethodHandler-per-route
// dispatch in registry/handlers/images.go but collapsed onto one mux
// route since tag resolution (§4.5) is identical across verbs.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	instrument("resource", r.Method)

	id, err := rxid.Parse(locatorVar(r))
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		manifest, err := s.Registry.GetStoredManifest(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, manifest)

	case http.MethodHead:
		ok, err := s.Registry.Has(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		if err := s.Registry.Remove(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		rxlog.GetLogger(r.Context()).WithField("locator", rxid.Format(id)).Info("deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, rxerr.New(rxerr.Transport, "method-not-allowed", "unsupported method "+r.Method))
	}
}
