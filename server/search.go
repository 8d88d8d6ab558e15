package server

import (
	"net/http"
	"strconv"

	"github.com/deepractice/resourcex/rxid"
)

// handleSearch implements GET /api/v1/search?q&limit&offset: a JSON
// array of canonical locator strings matching a case-insensitive
// substring, per §4.10/§4.5. This is the server-side analogue of the
// CLI's "search" subcommand, which is otherwise out of scope (§1).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	instrument("search", r.Method)

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	ids, err := s.Registry.List(r.Context(), q.Get("q"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	locators := make([]string, len(ids))
	for i, id := range ids {
		locators[i] = rxid.Format(id)
	}
	writeJSON(w, http.StatusOK, locators)
}
