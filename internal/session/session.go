package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
	"github.com/felixgeelhaar/welcomer/internal/roles"
	"github.com/felixgeelhaar/welcomer/internal/scope"
	"github.com/felixgeelhaar/welcomer/internal/telemetry"
)

// Session is one member's run through the questionnaire. Its steps run
// sequentially on the goroutine that calls Run.
type Session struct {
	ID       string
	GuildID  string
	MemberID string
	Trigger  Trigger
	// RequiresStartRole is set for join-triggered sessions only.
	RequiresStartRole bool
	Questions         []questionnaire.Question
	StartedAt         time.Time

	registry *Registry
	deps     *Deps
	logger   *log.Logger

	mu        sync.Mutex
	channelID string
	current   int
	outcome   Outcome
	reason    string
	answers   []questionnaire.Choice

	runOnce     sync.Once
	releaseOnce sync.Once
	done        chan struct{}
}

func newSession(r *Registry, req Request) *Session {
	id := uuid.NewString()
	return &Session{
		ID:                id,
		GuildID:           req.GuildID,
		MemberID:          req.MemberID,
		Trigger:           req.Trigger,
		RequiresStartRole: req.Trigger == TriggerJoin,
		Questions:         r.deps.Questionnaire.Questions,
		StartedAt:         time.Now(),
		registry:          r,
		deps:              &r.deps,
		logger: r.deps.Logger.With(
			"component", "session",
			"session_id", id,
			"guild_id", req.GuildID,
			"member_id", req.MemberID,
			"trigger", req.Trigger,
		),
		outcome: OutcomePending,
		done:    make(chan struct{}),
	}
}

// ChannelID returns the private channel, or "" before it exists.
func (s *Session) ChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// Current returns the index of the question being asked.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Outcome returns the session's outcome so far.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Reason explains a non-completed outcome.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Answers returns the accepted choices in question order.
func (s *Session) Answers() []questionnaire.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]questionnaire.Choice(nil), s.answers...)
}

// Done is closed once the session has cleaned up and left the registry.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// finish records the terminal outcome. Only the first call has effect.
func (s *Session) finish(o Outcome, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome.Terminal() {
		return false
	}
	s.outcome = o
	s.reason = reason
	return true
}

// Run drives the session to a terminal outcome and performs the cleanup
// that outcome requires. Cancelling ctx ends the session as failed; its
// cleanup still runs. Calling Run again waits for the first run.
func (s *Session) Run(ctx context.Context) Outcome {
	started := false
	s.runOnce.Do(func() {
		started = true
		s.run(ctx)
	})
	if !started {
		<-s.done
	}
	return s.Outcome()
}

func (s *Session) run(ctx context.Context) {
	defer s.release()

	ctx, span := telemetry.StartSessionSpan(ctx, s.ID, s.GuildID, s.MemberID, string(s.Trigger))
	defer span.End()

	s.logger.InfoContext(ctx, "session started", "questions", len(s.Questions))
	s.drive(ctx)
	s.cleanup(ctx)

	outcome, reason := s.Outcome(), s.Reason()
	span.SetAttributes(attribute.String("session.outcome", string(outcome)))
	if outcome == OutcomeFailed {
		telemetry.RecordError(span, fmt.Errorf("session failed: %s", reason))
	} else {
		telemetry.RecordSuccess(span)
	}
	s.logger.InfoContext(ctx, "session finished",
		"outcome", outcome, "reason", reason, "duration", time.Since(s.StartedAt))
}

func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.registry.release(s)
		s.deps.Metrics.RecordSessionFinished(string(s.Outcome()), time.Since(s.StartedAt))
		close(s.done)
	})
}

func (s *Session) drive(ctx context.Context) {
	q := s.deps.Questionnaire

	ch, err := s.deps.Scope.CreatePrivateChannel(ctx, s.GuildID, s.MemberID)
	if err != nil {
		s.fail(ctx, "create channel", err)
		return
	}
	s.mu.Lock()
	s.channelID = ch.ID
	s.mu.Unlock()
	s.logger = s.logger.With("channel_id", ch.ID)

	report, err := s.deps.Scope.HideAllExcept(ctx, s.GuildID, s.MemberID, ch.ID)
	s.logSweep(ctx, "hide", report, err)

	if s.RequiresStartRole && q.StartRole != "" {
		if err := s.deps.Roles.SetAdditive(ctx, s.GuildID, s.MemberID, q.StartRole, true); err != nil {
			s.warn(ctx, "failed to grant start role", err)
		}
	}

	lead := questionnaire.Format(q.Messages.Welcome, platform.Mention(s.MemberID), "")
	for i, question := range s.Questions {
		s.mu.Lock()
		s.current = i
		s.mu.Unlock()

		content := joinParagraphs(lead, fmt.Sprintf("**%d/%d** %s", i+1, len(s.Questions), question.Prompt))
		choice, err := s.ask(ctx, i, question, content)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeTimeout) {
				s.finish(OutcomeTimedOut, err.Error())
				s.logger.InfoContext(ctx, "answer timed out", "question", question.Kind)
				return
			}
			s.fail(ctx, "collect answer", err)
			return
		}

		s.mu.Lock()
		s.answers = append(s.answers, choice)
		s.mu.Unlock()

		if choice.Reject {
			s.finish(OutcomeRejected, fmt.Sprintf("%s answered %s", question.Kind, choice.Key))
			s.logger.InfoContext(ctx, "session rejected", "question", question.Kind, "choice", choice.Key)
			return
		}
		s.apply(ctx, question, choice)
		lead = question.Ack
	}

	s.finish(OutcomeCompleted, "")
}

func (s *Session) ask(ctx context.Context, index int, question questionnaire.Question, content string) (questionnaire.Choice, error) {
	ctx, span := telemetry.StartQuestionSpan(ctx, string(question.Kind), index)
	defer span.End()

	choice, err := s.deps.Collector.Ask(ctx, collector.Prompt{
		GuildID:   s.GuildID,
		ChannelID: s.ChannelID(),
		MemberID:  s.MemberID,
		Content:   content,
		Question:  question,
		Timeout:   s.deps.Timing.AnswerTimeout,
		NotYours:  s.deps.Questionnaire.Messages.NotYours,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return choice, err
	}
	telemetry.RecordSuccess(span, attribute.String("question.choice", choice.Key))
	s.logger.InfoContext(ctx, "answer accepted", "question", question.Kind, "choice", choice.Key)
	return choice, nil
}

// apply turns an accepted answer into role changes. Failures are logged
// and the questionnaire continues.
func (s *Session) apply(ctx context.Context, question questionnaire.Question, choice questionnaire.Choice) {
	category := roles.Category{Name: string(question.Kind), Roles: question.RoleNames()}
	if err := s.deps.Roles.ReconcileExclusive(ctx, s.GuildID, s.MemberID, category, choice.Role); err != nil {
		s.warn(ctx, "failed to reconcile answer role", err, "role", choice.Role)
	}
	if question.Derived != nil {
		if err := s.deps.Roles.SetAdditive(ctx, s.GuildID, s.MemberID, question.Derived.Role, choice.Privileged); err != nil {
			s.warn(ctx, "failed to update derived role", err, "role", question.Derived.Role)
		}
	}
}

func (s *Session) cleanup(ctx context.Context) {
	q := s.deps.Questionnaire
	mention := platform.Mention(s.MemberID)
	channelID := s.ChannelID()

	switch s.Outcome() {
	case OutcomeCompleted:
		if s.RequiresStartRole && q.StartRole != "" {
			s.step(ctx, "revoke start role", func(ctx context.Context) error {
				return s.deps.Roles.SetAdditive(ctx, s.GuildID, s.MemberID, q.StartRole, false)
			})
		}
		s.restore(ctx, channelID)
		s.say(ctx, channelID, questionnaire.Format(q.Messages.Completed, mention, s.lastAnswer()))
		s.pause(ctx, s.deps.Timing.CompletionDelay)
		s.deleteChannel(ctx, channelID)

	case OutcomeRejected:
		s.revokeAnswers(ctx)
		// The channel stays so the member can still reach the staff.
		s.say(ctx, channelID, questionnaire.Format(q.Messages.Rejected, mention, ""))

	case OutcomeTimedOut:
		s.say(ctx, channelID, questionnaire.Format(q.Messages.TimedOut, mention, ""))
		s.pause(ctx, s.deps.Timing.TimeoutGrace)
		s.deleteChannel(ctx, channelID)

	case OutcomeFailed:
		if channelID == "" {
			return
		}
		s.restore(ctx)
		s.deleteChannel(ctx, channelID)
	}
}

// revokeAnswers takes back the roles granted by answers given before a
// rejecting one. Only the start role survives a rejection.
func (s *Session) revokeAnswers(ctx context.Context) {
	s.mu.Lock()
	answers := append([]questionnaire.Choice(nil), s.answers...)
	s.mu.Unlock()

	for i, choice := range answers {
		if choice.Reject || i >= len(s.Questions) {
			continue
		}
		role := choice.Role
		s.step(ctx, "revoke answer role", func(ctx context.Context) error {
			return s.deps.Roles.SetAdditive(ctx, s.GuildID, s.MemberID, role, false)
		})
		if derived := s.Questions[i].Derived; derived != nil && choice.Privileged {
			s.step(ctx, "revoke derived role", func(ctx context.Context) error {
				return s.deps.Roles.SetAdditive(ctx, s.GuildID, s.MemberID, derived.Role, false)
			})
		}
	}
}

// step runs one cleanup action on a context that survives cancellation of
// the session. A failing step never prevents the next one.
func (s *Session) step(ctx context.Context, name string, fn func(context.Context) error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.Timing.CleanupTimeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		s.warn(ctx, "cleanup step failed", err, "step", name)
	}
}

func (s *Session) restore(ctx context.Context, keep ...string) {
	s.step(ctx, "restore visibility", func(ctx context.Context) error {
		report, err := s.deps.Scope.RestoreAll(ctx, s.GuildID, s.MemberID, keep...)
		s.logSweep(ctx, "restore", report, err)
		return nil
	})
}

func (s *Session) deleteChannel(ctx context.Context, channelID string) {
	s.step(ctx, "delete channel", func(ctx context.Context) error {
		return s.deps.Scope.DeleteChannel(ctx, channelID)
	})
}

func (s *Session) say(ctx context.Context, channelID, content string) {
	s.step(ctx, "send message", func(ctx context.Context) error {
		_, err := s.deps.Messenger.SendMessage(ctx, channelID, platform.Message{Content: content})
		return err
	})
}

// pause waits d, or less when ctx is cancelled.
func (s *Session) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *Session) lastAnswer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return ""
	}
	return s.answers[len(s.answers)-1].Label
}

func (s *Session) fail(ctx context.Context, action string, err error) {
	s.finish(OutcomeFailed, fmt.Sprintf("%s: %v", action, err))
	s.deps.Metrics.RecordError(string(errors.CodeOf(err)), "session")
	s.logger.WithError(err).ErrorContext(ctx, "session failed", "action", action)
}

func (s *Session) warn(ctx context.Context, msg string, err error, args ...any) {
	s.deps.Metrics.RecordError(string(errors.CodeOf(err)), "session")
	s.logger.WithError(err).WarnContext(ctx, msg, args...)
}

func (s *Session) logSweep(ctx context.Context, phase string, report scope.Report, err error) {
	if err != nil {
		s.warn(ctx, "channel sweep failed", err, "phase", phase)
		return
	}
	if !report.OK() {
		s.logger.WarnContext(ctx, "channel sweep incomplete",
			"phase", phase, "attempted", report.Attempted, "failed", len(report.Failed))
	}
}

func joinParagraphs(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
