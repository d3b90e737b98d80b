package collector

import (
	"context"

	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

// ReactionCollector offers choices as emoji reactions on the prompt.
type ReactionCollector struct {
	gw         platform.Gateway
	dispatcher *Dispatcher
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewReactionCollector creates a ReactionCollector.
func NewReactionCollector(gw platform.Gateway, d *Dispatcher, logger *log.Logger, m *metrics.Metrics) *ReactionCollector {
	return &ReactionCollector{
		gw:         gw,
		dispatcher: d,
		logger:     log.OrDiscard(logger).With("component", "collector", "modality", ModeReactions),
		metrics:    m,
	}
}

// ReactionMessage renders a prompt whose choices are pre-added reactions.
func ReactionMessage(p Prompt) platform.Message {
	return platform.Message{
		Content:     p.Content,
		Kind:        platform.AffordReactions,
		Affordances: affordances(p.Question),
	}
}

// Ask implements Collector.
func (c *ReactionCollector) Ask(ctx context.Context, p Prompt) (questionnaire.Choice, error) {
	return ask(ctx, c.gw, c.dispatcher, p, ReactionMessage(p), func(messageID string) acceptFunc {
		return func(_ context.Context, ev Event) (questionnaire.Choice, bool) {
			return c.accept(p, messageID, ev)
		}
	})
}

func (c *ReactionCollector) accept(p Prompt, messageID string, ev Event) (questionnaire.Choice, bool) {
	if ev.Kind != EventReaction {
		return questionnaire.Choice{}, false
	}

	reason := ""
	choice, ok := p.Question.ChoiceByEmoji(ev.Key)
	switch {
	case ev.MessageID != messageID:
		reason = reasonStale
	case ev.MemberID != p.MemberID:
		reason = reasonForeign
	case !ok:
		reason = reasonUnknown
	}
	if reason != "" {
		c.metrics.RecordIgnoredEvent(reason)
		c.logger.Debug("ignoring reaction", "reason", reason, "channel_id", ev.ChannelID,
			"member_id", ev.MemberID, "emoji", ev.Key)
		return questionnaire.Choice{}, false
	}

	c.metrics.RecordAnswer(string(p.Question.Kind), choice.Key)
	return choice, true
}
