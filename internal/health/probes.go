package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeManager adds process state to a Manager. The bot is initialized once
// its gateway connection is open and shutting down once it stops accepting
// new sessions.
type ProbeManager struct {
	*Manager

	version     string
	startTime   time.Time
	initialized atomic.Bool
	inShutdown  atomic.Bool
}

// NewProbeManager creates a ProbeManager reporting version.
func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{
		Manager:   NewManager(),
		version:   version,
		startTime: time.Now(),
	}
}

// MarkInitialized lets the startup probe pass.
func (pm *ProbeManager) MarkInitialized() { pm.initialized.Store(true) }

// MarkShutdown fails readiness from now on.
func (pm *ProbeManager) MarkShutdown() { pm.inShutdown.Store(true) }

// IsInitialized reports whether MarkInitialized was called.
func (pm *ProbeManager) IsInitialized() bool { return pm.initialized.Load() }

// IsShuttingDown reports whether MarkShutdown was called.
func (pm *ProbeManager) IsShuttingDown() bool { return pm.inShutdown.Load() }

// ProbeResult is the JSON body of a probe response.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (pm *ProbeManager) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    time.Since(pm.startTime).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// CheckLiveness never runs dependency checks. It reports degraded while
// sessions drain during shutdown, so the container is not restarted mid
// cleanup.
func (pm *ProbeManager) CheckLiveness(ctx context.Context) *ProbeResult {
	if pm.IsShuttingDown() {
		return pm.result(StatusDegraded, nil)
	}
	return pm.result(StatusHealthy, nil)
}

// CheckReadiness aggregates every registered checker. It is unhealthy
// during shutdown without running them.
func (pm *ProbeManager) CheckReadiness(ctx context.Context) *ProbeResult {
	if pm.IsShuttingDown() {
		return pm.result(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.result(OverallStatus(checks), checks)
}

// CheckStartup passes once the gateway connection has been opened.
func (pm *ProbeManager) CheckStartup(ctx context.Context) *ProbeResult {
	if !pm.IsInitialized() {
		return pm.result(StatusUnhealthy, nil)
	}
	return pm.result(StatusHealthy, nil)
}
