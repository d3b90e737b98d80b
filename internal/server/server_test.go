package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/welcomer/internal/health"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
)

type gatewayStub struct{ connected bool }

func (g *gatewayStub) Connected() bool        { return g.connected }
func (g *gatewayStub) Latency() time.Duration { return 40 * time.Millisecond }

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) health.ProbeResult {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var result health.ProbeResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode probe result: %v", err)
	}
	return result
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(health.NewProbeManager("1.0.0"), Config{Address: ":9090"})

	if s.httpServer.Addr != ":9090" {
		t.Errorf("Addr = %q", s.httpServer.Addr)
	}
	if s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v", s.shutdownTimeout)
	}
	if s.httpServer.ReadTimeout != 10*time.Second || s.httpServer.WriteTimeout != 10*time.Second {
		t.Errorf("unexpected read/write timeouts: %v/%v", s.httpServer.ReadTimeout, s.httpServer.WriteTimeout)
	}
	if s.httpServer.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v", s.httpServer.IdleTimeout)
	}
}

func TestProbeEndpoints(t *testing.T) {
	pm := health.NewProbeManager("1.0.0")
	gw := &gatewayStub{}
	pm.AddChecker(health.NewGatewayChecker(gw))
	s := NewServer(pm, Config{Address: ":8080"})

	tests := []struct {
		name     string
		setup    func()
		path     string
		wantCode int
		want     health.Status
	}{
		{"startup before gateway opens", func() {}, "/health/startup", http.StatusServiceUnavailable, health.StatusUnhealthy},
		{"ready while disconnected", func() {}, "/health/ready", http.StatusServiceUnavailable, health.StatusUnhealthy},
		{"live while disconnected", func() {}, "/health/live", http.StatusOK, health.StatusHealthy},
		{"startup after gateway opens", pm.MarkInitialized, "/health/startup", http.StatusOK, health.StatusHealthy},
		{"ready once connected", func() { gw.connected = true }, "/health/ready", http.StatusOK, health.StatusHealthy},
		{"healthz mirrors readiness", func() {}, "/healthz", http.StatusOK, health.StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			w := serve(t, s, http.MethodGet, tt.path)
			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decode(t, w); got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestProbeRejectsPost(t *testing.T) {
	s := NewServer(health.NewProbeManager("1.0.0"), Config{})
	if w := serve(t, s, http.MethodPost, "/health/live"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordSessionStarted("join")
	s := NewServer(health.NewProbeManager("1.0.0"), Config{Metrics: metrics.HandlerFor(reg)})

	w := serve(t, s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `welcomer_sessions_started_total{trigger="join"} 1`) {
		t.Errorf("metrics output missing session counter:\n%s", w.Body.String())
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	s := NewServer(health.NewProbeManager("1.0.0"), Config{})
	if w := serve(t, s, http.MethodGet, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestShutdownFailsReadiness(t *testing.T) {
	pm := health.NewProbeManager("1.0.0")
	pm.MarkInitialized()
	s := NewServer(pm, Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second})

	serverErr := make(chan error, 1)
	go func() { serverErr <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !s.IsShuttingDown() {
		t.Error("expected IsShuttingDown after Shutdown")
	}
	if err := <-serverErr; err != http.ErrServerClosed {
		t.Errorf("Start returned %v, want ErrServerClosed", err)
	}

	w := serve(t, s, http.MethodGet, "/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness after shutdown = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if got := decode(t, serve(t, s, http.MethodGet, "/health/live")); got.Status != health.StatusDegraded {
		t.Errorf("liveness after shutdown = %s, want degraded", got.Status)
	}
}
