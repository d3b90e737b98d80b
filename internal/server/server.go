// Package server exposes the bot's operational HTTP endpoints: Kubernetes
// style health probes and, when configured, Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/welcomer/internal/health"
)

// Config holds server configuration. Zero durations take the defaults
// noted on each field.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string

	// ShutdownTimeout bounds connection draining. Default 30s.
	ShutdownTimeout time.Duration
	// ReadTimeout default 10s.
	ReadTimeout time.Duration
	// WriteTimeout default 10s.
	WriteTimeout time.Duration
	// IdleTimeout default 60s.
	IdleTimeout time.Duration

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

func (c *Config) defaults() {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Server serves the probe and metrics endpoints.
type Server struct {
	httpServer      *http.Server
	probes          *health.ProbeManager
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// NewServer creates the HTTP server. It does not listen until Start.
//
//	/health/live     liveness
//	/health/ready    readiness, also served as /healthz
//	/health/startup  startup
//	/metrics         Prometheus, when cfg.Metrics is set
func NewServer(probes *health.ProbeManager, cfg Config) *Server {
	cfg.defaults()
	s := &Server{
		probes:          probes,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", s.probe(probes.CheckLiveness, http.StatusOK))
	mux.HandleFunc("GET /health/ready", s.probe(probes.CheckReadiness, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /health/startup", s.probe(probes.CheckStartup, http.StatusServiceUnavailable))
	mux.HandleFunc("GET /healthz", s.probe(probes.CheckReadiness, http.StatusServiceUnavailable))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Start listens until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness, stops keep-alives and drains connections for at
// most the configured ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// IsShuttingDown reports whether Shutdown was called.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// probe adapts a probe check to an HTTP handler. Unhealthy results are
// answered with failStatus; liveness passes http.StatusOK so that a
// draining bot is not restarted.
func (s *Server) probe(check func(context.Context) *health.ProbeResult, failStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if result.Status == health.StatusUnhealthy {
			w.WriteHeader(failStatus)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(result)
	}
}
