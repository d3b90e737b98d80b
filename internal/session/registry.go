package session

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

// Deps are the collaborators shared by every session of a registry.
type Deps struct {
	Questionnaire questionnaire.Questionnaire
	Scope         ChannelScope
	Roles         RoleDirectory
	Collector     collector.Collector
	Messenger     Messenger
	Timing        Timing
	Logger        *log.Logger
	Metrics       *metrics.Metrics
}

// Registry admits at most one active session per guild member.
type Registry struct {
	deps   Deps
	logger *log.Logger

	mu     sync.Mutex
	active map[string]*Session

	wg sync.WaitGroup
}

// NewRegistry creates a Registry. A zero AnswerTimeout or CleanupTimeout
// falls back to DefaultTiming. TimeoutGrace and CompletionDelay are kept
// as given, so zero deletes the channel without waiting.
func NewRegistry(deps Deps) *Registry {
	def := DefaultTiming()
	if deps.Timing.AnswerTimeout <= 0 {
		deps.Timing.AnswerTimeout = def.AnswerTimeout
	}
	if deps.Timing.CleanupTimeout <= 0 {
		deps.Timing.CleanupTimeout = def.CleanupTimeout
	}
	deps.Logger = log.OrDiscard(deps.Logger)

	return &Registry{
		deps:   deps,
		logger: deps.Logger.With("component", "registry"),
		active: make(map[string]*Session),
	}
}

// TryStart registers a new session for the requested member. It fails with
// an ONBOARD-001 error, and changes nothing, while another session for the
// same member is registered. The caller must Run the returned session.
func (r *Registry) TryStart(req Request) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[req.key()]; busy {
		r.deps.Metrics.RecordDuplicateTrigger(string(req.Trigger))
		r.logger.Debug("session already active",
			"guild_id", req.GuildID, "member_id", req.MemberID, "trigger", req.Trigger)
		return nil, errors.NewAlreadyActiveError(req.MemberID)
	}

	s := newSession(r, req)
	r.active[req.key()] = s
	r.deps.Metrics.RecordSessionStarted(string(req.Trigger))
	return s, nil
}

// Launch registers a session and runs it in the background. The session
// lives as long as ctx, not as long as the caller.
func (r *Registry) Launch(ctx context.Context, req Request) (*Session, error) {
	s, err := r.TryStart(req)
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		s.Run(ctx)
	}()
	return s, nil
}

// Active reports whether a session is registered for the member.
func (r *Registry) Active(guildID, memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[Request{GuildID: guildID, MemberID: memberID}.key()]
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Wait blocks until every launched session has finished its cleanup.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// release removes s if it is still the registered session for its member.
func (r *Registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Request{GuildID: s.GuildID, MemberID: s.MemberID}.key()
	if r.active[key] == s {
		delete(r.active, key)
	}
}
