// Package reconcile starts onboarding for existing members who never
// completed it.
package reconcile

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/session"
	"github.com/felixgeelhaar/welcomer/internal/telemetry"
)

// DefaultInterval is the minimum spacing between two session starts.
const DefaultInterval = time.Second

// Decisions recorded per scanned member.
const (
	DecisionLaunched   = "launched"
	DecisionBot        = "skipped_bot"
	DecisionAdmin      = "skipped_admin"
	DecisionRegistered = "skipped_registered"
	DecisionActive     = "skipped_active"
	DecisionFailed     = "failed"
)

// errInterrupted ends a sweep whose context can no longer pace launches.
var errInterrupted = stderrors.New("reconcile interrupted")

// MemberLister lists a guild's members.
type MemberLister interface {
	Members(ctx context.Context, guildID string) ([]platform.Member, error)
}

// RoleIndex answers role membership questions from a refreshed cache.
type RoleIndex interface {
	Refresh(ctx context.Context, guildID string) error
	HoldsAny(guildID string, member platform.Member, names []string) bool
}

// Launcher starts sessions. *session.Registry satisfies it.
type Launcher interface {
	Launch(ctx context.Context, req session.Request) (*session.Session, error)
}

// Config controls which members are skipped and how fast sessions start.
type Config struct {
	// AdminRole holders are never onboarded.
	AdminRole string
	// RegisteredRoles mark a member as already onboarded.
	RegisteredRoles []string
	Interval        time.Duration
}

// Summary counts the decisions of one sweep.
type Summary struct {
	Scanned  int
	Launched int
	Skipped  map[string]int
	Failed   int
}

func (s *Summary) record(decision string) {
	switch decision {
	case DecisionLaunched:
		s.Launched++
	case DecisionFailed:
		s.Failed++
	default:
		if s.Skipped == nil {
			s.Skipped = make(map[string]int)
		}
		s.Skipped[decision]++
	}
}

// Reconciler sweeps guilds once per process.
type Reconciler struct {
	members  MemberLister
	roles    RoleIndex
	launcher Launcher
	cfg      Config
	limiter  *rate.Limiter
	logger   *log.Logger
	metrics  *metrics.Metrics

	ran atomic.Bool
}

// New creates a Reconciler.
func New(members MemberLister, roles RoleIndex, launcher Launcher, cfg Config, logger *log.Logger, m *metrics.Metrics) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Reconciler{
		members:  members,
		roles:    roles,
		launcher: launcher,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
		logger:   log.OrDiscard(logger).With("component", "reconcile"),
		metrics:  m,
	}
}

// Ran reports whether Run has been called.
func (r *Reconciler) Ran() bool {
	return r.ran.Load()
}

// Run sweeps the given guilds and launches a session for every member who
// still needs onboarding. Only the first call sweeps; later calls fail with
// an ONBOARD-004 error. A guild that cannot be listed is logged and skipped.
func (r *Reconciler) Run(ctx context.Context, guildIDs []string) (Summary, error) {
	var summary Summary
	if !r.ran.CompareAndSwap(false, true) {
		return summary, errors.NewReconcileAlreadyRanError()
	}

	r.logger.InfoContext(ctx, "reconcile started", "guilds", len(guildIDs))
	for _, guildID := range guildIDs {
		if err := r.guild(ctx, guildID, &summary); err != nil {
			if ctx.Err() != nil || stderrors.Is(err, errInterrupted) {
				return summary, err
			}
			r.metrics.RecordError(string(errors.CodeOf(err)), "reconcile")
			r.logger.WithError(err).WarnContext(ctx, "guild sweep failed", "guild_id", guildID)
		}
	}
	r.logger.InfoContext(ctx, "reconcile finished",
		"scanned", summary.Scanned, "launched", summary.Launched, "failed", summary.Failed)
	return summary, nil
}

func (r *Reconciler) guild(ctx context.Context, guildID string, summary *Summary) error {
	ctx, span := telemetry.StartReconcileSpan(ctx, guildID)
	defer span.End()

	members, err := r.members.Members(ctx, guildID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("list members: %w", err)
	}
	if err := r.roles.Refresh(ctx, guildID); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("list roles: %w", err)
	}

	launched := 0
	for _, member := range members {
		summary.Scanned++
		decision := r.decide(guildID, member)
		if decision == DecisionLaunched {
			if err := r.limiter.Wait(ctx); err != nil {
				telemetry.RecordError(span, err)
				return fmt.Errorf("%w: %v", errInterrupted, err)
			}
			decision = r.launch(ctx, guildID, member.ID)
			if decision == DecisionLaunched {
				launched++
			}
		}
		summary.record(decision)
		r.metrics.RecordReconcileDecision(decision)
	}

	telemetry.RecordSuccess(span,
		attribute.Int("reconcile.members", len(members)),
		attribute.Int("reconcile.launched", launched),
	)
	return nil
}

// decide returns DecisionLaunched for members who need a session.
func (r *Reconciler) decide(guildID string, member platform.Member) string {
	switch {
	case member.Bot:
		return DecisionBot
	case r.cfg.AdminRole != "" && r.roles.HoldsAny(guildID, member, []string{r.cfg.AdminRole}):
		return DecisionAdmin
	case r.roles.HoldsAny(guildID, member, r.cfg.RegisteredRoles):
		return DecisionRegistered
	default:
		return DecisionLaunched
	}
}

func (r *Reconciler) launch(ctx context.Context, guildID, memberID string) string {
	_, err := r.launcher.Launch(ctx, session.Request{
		GuildID:  guildID,
		MemberID: memberID,
		Trigger:  session.TriggerReconcile,
	})
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "onboarding existing member", "guild_id", guildID, "member_id", memberID)
		return DecisionLaunched
	case errors.HasCode(err, errors.ErrCodeAlreadyActive):
		return DecisionActive
	default:
		r.logger.WithError(err).WarnContext(ctx, "failed to start session", "guild_id", guildID, "member_id", memberID)
		return DecisionFailed
	}
}
