package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPath is where the scrape endpoint is mounted.
const DefaultPath = "/metrics"

// Handler returns a mux serving g on DefaultPath and a /health probe.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(DefaultPath, promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

// Server exposes a Prometheus registry over HTTP.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	mu       sync.Mutex // protects server
	server   *http.Server
}

// NewServer creates a metrics server for addr (e.g. ":9090").
func NewServer(addr string, g prometheus.Gatherer) *Server {
	return &Server{addr: addr, gatherer: g}
}

// Start serves until Stop is called. It returns nil after a clean Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.New("metrics server already running")
	}
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           Handler(s.gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight scrapes until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
