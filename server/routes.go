package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

const apiPrefix = "/api/v1"

// registerRoutes wires the §4.10 endpoint table onto s.router, mirroring
// the teacher's v2.RouterWithPrefix dispatcher table in
// registry/handlers/app.go, generalized from the fixed manifest/blob/tags
// routes to ResourceX's publish/resource/content/search surface.
func (s *Server) registerRoutes() {
	r := s.router.PathPrefix(apiPrefix).Subrouter()

	r.HandleFunc("/publish", s.handlePublish).Methods(http.MethodPost)
	r.HandleFunc("/resource/{locator:.+}", s.handleResource).Methods(http.MethodGet, http.MethodHead, http.MethodDelete)
	r.HandleFunc("/content/{locator:.+}", s.handleContent).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	s.router.HandleFunc("/debug/health", s.handleHealth).Methods(http.MethodGet)

	s.router.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return req.Method == http.MethodOptions
	}).HandlerFunc(s.handleOptions)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func locatorVar(r *http.Request) string {
	return mux.Vars(r)["locator"]
}
