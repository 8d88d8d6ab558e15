package server

import (
	"context"
	"net/http"
	"time"
)

// healthResponse reports store reachability, grounded in the teacher's
// health package pattern (a registry of named checks, each reporting
// ok/error) but collapsed to the one dependency this server has: its
// own cas.Registry.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth implements GET /debug/health: a cheap store-reachability
// probe, by running List with a filter unlikely to ever match so the
// check exercises the manifest store without risking a large response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK

	if _, err := s.Registry.List(ctx, "\x00healthcheck\x00", 1, 0); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, healthResponse{Status: overall, Checks: checks})
}
