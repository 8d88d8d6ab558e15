package server

import "github.com/prometheus/client_golang/prometheus/promhttp"

// registerMetrics wires /metrics onto the default Prometheus registerer
// docker/go-metrics namespaces (cas.*, server.*) register themselves
// into, the way the teacher's metrics/prometheus.go exposes its
// counters — generalized here from a package-init side effect to an
// explicit route on this Server.
func (s *Server) registerMetrics() {
	s.router.Handle("/metrics", promhttp.Handler())
}
