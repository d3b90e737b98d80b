// Package collector asks a member one question and waits for a valid answer.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

// Mode selects the input modality.
type Mode string

const (
	ModeComponents Mode = "components"
	ModeReactions  Mode = "reactions"
)

// ParseMode converts a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeComponents, "":
		return ModeComponents, nil
	case ModeReactions:
		return ModeReactions, nil
	default:
		return "", fmt.Errorf("unknown modality %q (want components or reactions)", s)
	}
}

// EventKind tells component interactions from reactions.
type EventKind int

const (
	EventComponent EventKind = iota
	EventReaction
)

// Responder answers a component interaction. Reactions carry none.
type Responder interface {
	// Acknowledge confirms the interaction without a visible reply.
	Acknowledge(ctx context.Context) error
	// Deny replies with a notice only the clicking member can see.
	Deny(ctx context.Context, notice string) error
}

// Event is a member's interaction with a message.
type Event struct {
	Kind      EventKind
	GuildID   string
	ChannelID string
	MessageID string
	MemberID  string
	// Key is the choice key for components or the emoji for reactions.
	Key       string
	Responder Responder
}

// Prompt is one question to ask.
type Prompt struct {
	GuildID   string
	ChannelID string
	MemberID  string
	Content   string
	Question  questionnaire.Question
	Timeout   time.Duration
	// NotYours is shown to anyone else who clicks the prompt.
	NotYours string
}

// Collector sends a prompt and returns the target member's answer.
// It fails with an ONBOARD-003 error when the timeout elapses and with the
// context's error when ctx is cancelled first.
type Collector interface {
	Ask(ctx context.Context, p Prompt) (questionnaire.Choice, error)
}

// New returns the collector for mode.
func New(mode Mode, gw platform.Gateway, d *Dispatcher, logger *log.Logger, m *metrics.Metrics) (Collector, error) {
	switch mode {
	case ModeComponents:
		return NewComponentCollector(gw, d, logger, m), nil
	case ModeReactions:
		return NewReactionCollector(gw, d, logger, m), nil
	default:
		return nil, fmt.Errorf("unknown modality %q", mode)
	}
}

// Ignore reasons reported to metrics.
const (
	reasonStale   = "stale_message"
	reasonForeign = "wrong_member"
	reasonUnknown = "unknown_choice"
	reasonLate    = "late"
)

type acceptFunc func(ctx context.Context, ev Event) (questionnaire.Choice, bool)

// ask subscribes before sending so an answer can never arrive unobserved,
// then waits on one fixed deadline.
func ask(ctx context.Context, gw platform.Gateway, d *Dispatcher, p Prompt, msg platform.Message, accept func(messageID string) acceptFunc) (questionnaire.Choice, error) {
	sub := d.Subscribe(p.ChannelID)
	defer sub.Close()

	messageID, err := gw.SendMessage(ctx, p.ChannelID, msg)
	if err != nil {
		return questionnaire.Choice{}, fmt.Errorf("send prompt: %w", err)
	}
	match := accept(messageID)

	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return questionnaire.Choice{}, ctx.Err()
		case <-timer.C:
			return questionnaire.Choice{}, errors.NewTimeoutError(string(p.Question.Kind))
		case ev := <-sub.C:
			if choice, ok := match(ctx, ev); ok {
				return choice, nil
			}
		}
	}
}

func affordances(q questionnaire.Question) []platform.Affordance {
	out := make([]platform.Affordance, 0, len(q.Choices))
	for _, c := range q.Choices {
		out = append(out, platform.Affordance{
			Key:   c.Key,
			Label: c.Label,
			Emoji: c.Emoji,
			Style: string(c.Style),
		})
	}
	return out
}
