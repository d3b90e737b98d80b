// Package session runs one member's onboarding questionnaire and keeps at
// most one such run active per member.
package session

import (
	"context"
	"time"

	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/roles"
	"github.com/felixgeelhaar/welcomer/internal/scope"
)

// Trigger records what started a session.
type Trigger string

const (
	TriggerJoin      Trigger = "join"
	TriggerCommand   Trigger = "command"
	TriggerReconcile Trigger = "reconcile"
)

// Outcome is the terminal state of a session.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
)

// Terminal reports whether o ends a session.
func (o Outcome) Terminal() bool {
	return o != OutcomePending && o != ""
}

// Timing holds the session's fixed durations.
type Timing struct {
	// AnswerTimeout bounds the wait for each answer.
	AnswerTimeout time.Duration
	// TimeoutGrace delays channel deletion after a timeout notice. Zero
	// deletes right away.
	TimeoutGrace time.Duration
	// CompletionDelay keeps the closing message readable before deletion.
	// Zero deletes right away.
	CompletionDelay time.Duration
	// CleanupTimeout bounds every cleanup step, which runs even after
	// the session's context is cancelled.
	CleanupTimeout time.Duration
}

// DefaultTiming returns the production durations.
func DefaultTiming() Timing {
	return Timing{
		AnswerTimeout:   300 * time.Second,
		TimeoutGrace:    10 * time.Second,
		CompletionDelay: 5 * time.Second,
		CleanupTimeout:  30 * time.Second,
	}
}

// ChannelScope is the channel side of a session.
type ChannelScope interface {
	CreatePrivateChannel(ctx context.Context, guildID, memberID string) (platform.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	HideAllExcept(ctx context.Context, guildID, memberID, keep string) (scope.Report, error)
	RestoreAll(ctx context.Context, guildID, memberID string, keep ...string) (scope.Report, error)
}

// RoleDirectory is the role side of a session.
type RoleDirectory interface {
	ReconcileExclusive(ctx context.Context, guildID, memberID string, category roles.Category, chosen string) error
	SetAdditive(ctx context.Context, guildID, memberID, name string, present bool) error
}

// Messenger posts plain messages to a channel.
type Messenger interface {
	SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error)
}

// Request asks the registry to start a session.
type Request struct {
	GuildID  string
	MemberID string
	Trigger  Trigger
}

func (r Request) key() string {
	return r.GuildID + "/" + r.MemberID
}
