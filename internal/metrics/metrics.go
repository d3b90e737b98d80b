package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Welcomer.
// All Record helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Session metrics
	SessionsStarted   *prometheus.CounterVec
	DuplicateTriggers *prometheus.CounterVec
	SessionOutcomes   *prometheus.CounterVec
	SessionDuration   *prometheus.HistogramVec
	ActiveSessions    prometheus.Gauge

	// Collector metrics
	Answers       *prometheus.CounterVec
	IgnoredEvents *prometheus.CounterVec
	DroppedEvents prometheus.Counter

	// Platform side effects
	RoleOperations   *prometheus.CounterVec
	OverrideFailures *prometheus.CounterVec
	PlatformRetries  *prometheus.CounterVec

	// Reconcile metrics
	ReconcileDecisions *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_sessions_started_total",
				Help: "Total number of onboarding sessions started",
			},
			[]string{"trigger"},
		),
		DuplicateTriggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_duplicate_triggers_total",
				Help: "Total number of triggers refused because a session was already active",
			},
			[]string{"trigger"},
		),
		SessionOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_session_outcomes_total",
				Help: "Total number of finished sessions by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "welcomer_session_duration_seconds",
				Help:    "Onboarding session duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"outcome"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "welcomer_active_sessions",
				Help: "Number of sessions currently registered",
			},
		),

		Answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_answers_total",
				Help: "Total number of accepted answers",
			},
			[]string{"question", "choice"},
		),
		IgnoredEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_ignored_events_total",
				Help: "Total number of interaction events that did not answer a prompt",
			},
			[]string{"reason"},
		),
		DroppedEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "welcomer_dropped_events_total",
				Help: "Total number of events dropped because a subscriber was full",
			},
		),

		RoleOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_role_operations_total",
				Help: "Total number of role grants, revokes and creations",
			},
			[]string{"operation", "success"},
		),
		OverrideFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_override_failures_total",
				Help: "Total number of channel permission overwrites that could not be applied",
			},
			[]string{"phase"},
		),
		PlatformRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_platform_retries_total",
				Help: "Total number of retried platform calls",
			},
			[]string{"operation"},
		),

		ReconcileDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_reconcile_decisions_total",
				Help: "Total number of members examined by the startup sweep",
			},
			[]string{"decision"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welcomer_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

func successLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// RecordSessionStarted counts a session accepted by the registry.
func (m *Metrics) RecordSessionStarted(trigger string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(trigger).Inc()
	m.ActiveSessions.Inc()
}

// RecordDuplicateTrigger counts a trigger refused with AlreadyActive.
func (m *Metrics) RecordDuplicateTrigger(trigger string) {
	if m == nil {
		return
	}
	m.DuplicateTriggers.WithLabelValues(trigger).Inc()
}

// RecordSessionFinished records a terminal outcome.
func (m *Metrics) RecordSessionFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SessionOutcomes.WithLabelValues(outcome).Inc()
	m.SessionDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.ActiveSessions.Dec()
}

// RecordAnswer counts an accepted answer.
func (m *Metrics) RecordAnswer(question, choice string) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(question, choice).Inc()
}

// RecordIgnoredEvent counts an event a collector filtered out.
func (m *Metrics) RecordIgnoredEvent(reason string) {
	if m == nil {
		return
	}
	m.IgnoredEvents.WithLabelValues(reason).Inc()
}

// RecordDroppedEvent counts an event lost to a full subscriber buffer.
func (m *Metrics) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

// RecordRoleOperation counts a role grant, revoke or creation.
func (m *Metrics) RecordRoleOperation(operation string, ok bool) {
	if m == nil {
		return
	}
	m.RoleOperations.WithLabelValues(operation, successLabel(ok)).Inc()
}

// RecordOverrideFailure counts a channel overwrite that failed during phase.
func (m *Metrics) RecordOverrideFailure(phase string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OverrideFailures.WithLabelValues(phase).Add(float64(n))
}

// RecordRetry counts a retried platform call.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.PlatformRetries.WithLabelValues(operation).Inc()
}

// RecordReconcileDecision counts a member examined by the startup sweep.
func (m *Metrics) RecordReconcileDecision(decision string) {
	if m == nil {
		return
	}
	m.ReconcileDecisions.WithLabelValues(decision).Inc()
}

// RecordError counts a coded error observed by component.
func (m *Metrics) RecordError(code, component string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
