// Package health runs the bot's dependency checks and answers the
// Kubernetes liveness, readiness and startup probes.
//
//	probes := health.NewProbeManager(version)
//	probes.AddChecker(health.NewGatewayChecker(gateway))
//	probes.AddChecker(health.NewSessionsChecker(registry, 500))
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency. Check must honour the context deadline.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "discord-gateway".
	Name() string
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// severity orders statuses so aggregation can keep the worst one.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Result is what a Checker reports.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

func newResult(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

// Healthy creates a healthy result.
func Healthy(message string) *Result { return newResult(StatusHealthy, message) }

// Degraded creates a degraded result: the bot works with reduced capability.
func Degraded(message string) *Result { return newResult(StatusDegraded, message) }

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result { return newResult(StatusUnhealthy, message) }

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}
