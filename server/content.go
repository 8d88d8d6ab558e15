package server

import (
	"net/http"

	"github.com/deepractice/resourcex/rxid"
)

// handleContent implements GET /api/v1/content/{locator}: raw archive
// bytes with Content-Type: application/gzip, per §4.10.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	instrument("content", r.Method)

	id, err := rxid.Parse(locatorVar(r))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.Registry.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Archive.Bytes())
}
