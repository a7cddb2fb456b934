// struct.go holds the Config and Server types shared by the rest of the
// package. Split out the way the teacher's internal/server/struct.go
// separates wire types from handler logic.
package diagnostics

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the diagnostics HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8181).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /readyz.
	// If empty, /readyz returns 200 with no checks.
	Pingers []Pinger
	// Registry is the Prometheus registry metrics are registered against.
	// If nil, prometheus.NewRegistry() is used — never the global default,
	// so repeated calls to New in tests never panic on duplicate registration.
	Registry prometheus.Registerer
}

// Server is the HTTP server exposing liveness, readiness, and metrics
// endpoints for the ingestion daemon.
type Server struct {
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	pingers    []Pinger
	metrics    *serverMetrics
}

// Metrics returns the server's metrics recorder so callers (e.g. the
// ingest CLI command) can report ingestion-run outcomes.
func (s *Server) Metrics() *serverMetrics { return s.metrics }

// ParseAddr splits a "host:port" diagnostics address flag/env value into the
// Host/Port pair Config expects, returning port 0 when addr carries no
// parseable port; New then substitutes its default port 8181.
func ParseAddr(addr string) (host string, port int) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return h, 0
	}
	return h, n
}
