// Package server implements the HTTP registry protocol of §4.10: a thin
// gorilla/mux facade over a server-side cas.Registry, the role the
// teacher's registry/handlers.App plays over registry/storage.registry —
// generalized from the distribution manifest/blob/tags API surface to
// ResourceX's single publish/resource/content/search surface.
package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	metrics "github.com/docker/go-metrics"

	"github.com/deepractice/resourcex/cas"
)

var (
	metricsNS     = metrics.NewNamespace("resourcex", "server", nil)
	requestsTotal = metricsNS.NewLabeledCounter("requests_total", "total HTTP requests handled", "route", "method")
)

func init() {
	metrics.Register(metricsNS)
}

// Server is the HTTP registry application object. It plays the role the
// teacher's handlers.App plays: the per-process object every dispatcher
// closes over.
type Server struct {
	Registry *cas.Registry

	router *mux.Router

	// locks serializes concurrent publishes per-locator, per §5's
	// "Concurrent publish on the same locator is serialised per-locator".
	// The blob-then-manifest-then-latest write sequence is itself made of
	// atomic renames (§5's ordering guarantee lives in store/fs), so this
	// mutex only prevents two publishes for the *same* tag interleaving
	// their rename sequences; it is not a global lock.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Server over reg and wires the §4.10 routes under the
// /api/v1 prefix.
func New(reg *cas.Registry) *Server {
	s := &Server{
		Registry: reg,
		router:   mux.NewRouter(),
		locks:    map[string]*sync.Mutex{},
	}
	s.registerRoutes()
	s.registerMetrics()
	return s
}

// Handler returns the fully wrapped http.Handler: combined logging and
// panic recovery around the router, mirroring the teacher's
// cmd/registry/main.go wrapping of app with handlers.CombinedLoggingHandler
// and handlers.RecoveryHandler.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(logWriter{}, handlers.RecoveryHandler()(s.router))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// lockFor returns the per-locator mutex used to serialize publishes,
// creating it on first use.
func (s *Server) lockFor(locator string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[locator]
	if !ok {
		l = &sync.Mutex{}
		s.locks[locator] = l
	}
	return l
}

func instrument(route, method string) {
	requestsTotal.WithValues(route, method).Inc()
}
