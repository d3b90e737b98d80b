package health

import (
	"context"
	"testing"
	"time"
)

type stubChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (c stubChecker) Name() string { return c.name }

func (c stubChecker) Check(ctx context.Context) *Result {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
		}
	}
	return newResult(c.status, c.name)
}

func TestManagerCheckRunsAll(t *testing.T) {
	m := NewManager()
	m.AddChecker(stubChecker{name: "a", status: StatusHealthy})
	m.AddChecker(stubChecker{name: "b", status: StatusDegraded})

	results := m.Check(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("expected b degraded, got %s", results["b"].Status)
	}
	if results["a"].Latency == 0 {
		t.Error("expected latency to be recorded")
	}
}

func TestManagerCheckRunsInParallel(t *testing.T) {
	m := NewManager()
	for _, name := range []string{"a", "b", "c", "d"} {
		m.AddChecker(stubChecker{name: name, status: StatusHealthy, delay: 50 * time.Millisecond})
	}

	start := time.Now()
	m.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("checks appear to run sequentially: %s", elapsed)
	}
}

func TestManagerCheckTimeout(t *testing.T) {
	m := NewManager().WithTimeout(20 * time.Millisecond)
	m.AddChecker(stubChecker{name: "stuck", status: StatusHealthy, delay: time.Second})

	results := m.Check(context.Background())
	if results["stuck"].Status != StatusUnhealthy {
		t.Errorf("expected overrunning check to be unhealthy, got %s", results["stuck"].Status)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := map[string]*Result{}
			for i, s := range tt.statuses {
				results[string(rune('a'+i))] = newResult(s, "")
			}
			if got := OverallStatus(results); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProbeLifecycle(t *testing.T) {
	pm := NewProbeManager("1.2.3")
	pm.AddChecker(stubChecker{name: "discord-gateway", status: StatusHealthy})
	ctx := context.Background()

	if got := pm.CheckStartup(ctx).Status; got != StatusUnhealthy {
		t.Errorf("startup before initialization = %s, want unhealthy", got)
	}

	pm.MarkInitialized()
	if got := pm.CheckStartup(ctx).Status; got != StatusHealthy {
		t.Errorf("startup after initialization = %s, want healthy", got)
	}
	ready := pm.CheckReadiness(ctx)
	if ready.Status != StatusHealthy || len(ready.Checks) != 1 {
		t.Errorf("unexpected readiness: %+v", ready)
	}
	if ready.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", ready.Version)
	}

	pm.MarkShutdown()
	if got := pm.CheckReadiness(ctx).Status; got != StatusUnhealthy {
		t.Errorf("readiness during shutdown = %s, want unhealthy", got)
	}
	if got := pm.CheckLiveness(ctx).Status; got != StatusDegraded {
		t.Errorf("liveness during shutdown = %s, want degraded", got)
	}
}

func TestReadinessFollowsGateway(t *testing.T) {
	pm := NewProbeManager("dev")
	gw := &fakeGateway{}
	pm.AddChecker(NewGatewayChecker(gw))
	pm.MarkInitialized()

	if got := pm.CheckReadiness(context.Background()).Status; got != StatusUnhealthy {
		t.Errorf("readiness while disconnected = %s, want unhealthy", got)
	}
	gw.connected = true
	if got := pm.CheckReadiness(context.Background()).Status; got != StatusHealthy {
		t.Errorf("readiness while connected = %s, want healthy", got)
	}
}
