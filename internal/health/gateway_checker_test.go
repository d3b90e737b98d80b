package health

import (
	"context"
	"testing"
	"time"
)

type fakeGateway struct {
	connected bool
	latency   time.Duration
}

func (g fakeGateway) Connected() bool        { return g.connected }
func (g fakeGateway) Latency() time.Duration { return g.latency }

func TestGatewayChecker(t *testing.T) {
	tests := []struct {
		name    string
		gateway fakeGateway
		want    Status
	}{
		{"disconnected", fakeGateway{}, StatusUnhealthy},
		{"connected", fakeGateway{connected: true, latency: 80 * time.Millisecond}, StatusHealthy},
		{"slow heartbeat", fakeGateway{connected: true, latency: 3 * time.Second}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGatewayChecker(tt.gateway)
			if c.Name() != "discord-gateway" {
				t.Errorf("Name() = %q", c.Name())
			}
			result := c.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", result.Status, tt.want, result.Message)
			}
		})
	}
}

func TestGatewayCheckerCustomThreshold(t *testing.T) {
	c := NewGatewayChecker(fakeGateway{connected: true, latency: 300 * time.Millisecond}).
		WithSlowHeartbeat(100 * time.Millisecond)

	if got := c.Check(context.Background()).Status; got != StatusDegraded {
		t.Errorf("Status = %v, want degraded", got)
	}
}

type fixedCounter int

func (c fixedCounter) Len() int { return int(c) }

func TestSessionsChecker(t *testing.T) {
	if got := NewSessionsChecker(fixedCounter(3), 10).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", got.Status)
	}
	if got := NewSessionsChecker(fixedCounter(11), 10).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", got.Status)
	}
	result := NewSessionsChecker(fixedCounter(5000), 0).Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy without a limit", result.Status)
	}
	if result.Details["active"] != 5000 {
		t.Errorf("active detail = %v", result.Details["active"])
	}
}
