package health

import (
	"context"
	"fmt"
	"time"
)

// DefaultSlowHeartbeat is the heartbeat latency above which the gateway
// is reported as degraded.
const DefaultSlowHeartbeat = 2 * time.Second

// GatewayStatus exposes the connection state of the chat gateway.
type GatewayStatus interface {
	Connected() bool
	Latency() time.Duration
}

// GatewayChecker reports whether the bot is connected to the chat platform.
type GatewayChecker struct {
	gateway GatewayStatus
	slow    time.Duration
}

// NewGatewayChecker creates a gateway checker with DefaultSlowHeartbeat.
func NewGatewayChecker(gateway GatewayStatus) *GatewayChecker {
	return &GatewayChecker{gateway: gateway, slow: DefaultSlowHeartbeat}
}

// WithSlowHeartbeat overrides the degraded threshold.
func (c *GatewayChecker) WithSlowHeartbeat(d time.Duration) *GatewayChecker {
	c.slow = d
	return c
}

// Name returns the name of this health check.
func (c *GatewayChecker) Name() string {
	return "discord-gateway"
}

// Check returns Unhealthy while disconnected and Degraded when heartbeats
// are slow.
func (c *GatewayChecker) Check(ctx context.Context) *Result {
	if !c.gateway.Connected() {
		return Unhealthy("gateway not connected").
			WithDetail("suggestion", "Check the bot token and network access to the platform")
	}

	latency := c.gateway.Latency()
	if latency > c.slow {
		return Degraded(fmt.Sprintf("heartbeat latency %s above %s", latency.Round(time.Millisecond), c.slow)).
			WithDetail("heartbeat_ms", latency.Milliseconds())
	}
	return Healthy("gateway connected").
		WithDetail("heartbeat_ms", latency.Milliseconds())
}

// SessionCounter reports how many onboarding sessions are running.
type SessionCounter interface {
	Len() int
}

// SessionsChecker reports Degraded when more sessions run than expected,
// which usually means cleanup is stuck.
type SessionsChecker struct {
	counter SessionCounter
	limit   int
}

// NewSessionsChecker creates a sessions checker. A non-positive limit
// never degrades.
func NewSessionsChecker(counter SessionCounter, limit int) *SessionsChecker {
	return &SessionsChecker{counter: counter, limit: limit}
}

// Name returns the name of this health check.
func (c *SessionsChecker) Name() string {
	return "onboarding-sessions"
}

// Check compares the active session count with the limit.
func (c *SessionsChecker) Check(ctx context.Context) *Result {
	active := c.counter.Len()
	if c.limit > 0 && active > c.limit {
		return Degraded(fmt.Sprintf("%d active sessions exceed %d", active, c.limit)).
			WithDetail("active", active).
			WithDetail("limit", c.limit)
	}
	return Healthy(fmt.Sprintf("%d active sessions", active)).
		WithDetail("active", active)
}
