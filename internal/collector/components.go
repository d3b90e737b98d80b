package collector

import (
	"context"

	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

// ComponentCollector offers choices as buttons or a select menu.
type ComponentCollector struct {
	gw         platform.Gateway
	dispatcher *Dispatcher
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewComponentCollector creates a ComponentCollector.
func NewComponentCollector(gw platform.Gateway, d *Dispatcher, logger *log.Logger, m *metrics.Metrics) *ComponentCollector {
	return &ComponentCollector{
		gw:         gw,
		dispatcher: d,
		logger:     log.OrDiscard(logger).With("component", "collector", "modality", ModeComponents),
		metrics:    m,
	}
}

// ComponentMessage renders a prompt with clickable components.
func ComponentMessage(p Prompt) platform.Message {
	kind := platform.AffordButtons
	if p.Question.EffectiveControl() == questionnaire.ControlSelect {
		kind = platform.AffordSelect
	}
	return platform.Message{
		Content:     p.Content,
		Kind:        kind,
		Affordances: affordances(p.Question),
		Placeholder: p.Question.Placeholder,
	}
}

// Ask implements Collector.
func (c *ComponentCollector) Ask(ctx context.Context, p Prompt) (questionnaire.Choice, error) {
	return ask(ctx, c.gw, c.dispatcher, p, ComponentMessage(p), func(messageID string) acceptFunc {
		return func(ctx context.Context, ev Event) (questionnaire.Choice, bool) {
			return c.accept(ctx, p, messageID, ev)
		}
	})
}

func (c *ComponentCollector) accept(ctx context.Context, p Prompt, messageID string, ev Event) (questionnaire.Choice, bool) {
	if ev.Kind != EventComponent {
		return questionnaire.Choice{}, false
	}
	logger := c.logger.With("channel_id", ev.ChannelID, "member_id", ev.MemberID, "message_id", ev.MessageID)

	if ev.MessageID != messageID {
		c.ignore(ctx, logger, ev, reasonStale, "")
		return questionnaire.Choice{}, false
	}
	if ev.MemberID != p.MemberID {
		c.ignore(ctx, logger, ev, reasonForeign, p.NotYours)
		return questionnaire.Choice{}, false
	}
	choice, ok := p.Question.Choice(ev.Key)
	if !ok {
		c.ignore(ctx, logger, ev, reasonUnknown, "")
		return questionnaire.Choice{}, false
	}

	if ev.Responder != nil {
		if err := ev.Responder.Acknowledge(ctx); err != nil {
			logger.WithError(err).Warn("failed to acknowledge answer")
		}
	}
	c.metrics.RecordAnswer(string(p.Question.Kind), choice.Key)
	return choice, true
}

// ignore answers the interaction so the platform does not report it as
// failed. A notice turns the answer into a private denial.
func (c *ComponentCollector) ignore(ctx context.Context, logger *log.Logger, ev Event, reason, notice string) {
	c.metrics.RecordIgnoredEvent(reason)
	logger.Debug("ignoring interaction", "reason", reason, "key", ev.Key)
	if ev.Responder == nil {
		return
	}

	var err error
	if notice != "" {
		err = ev.Responder.Deny(ctx, notice)
	} else {
		err = ev.Responder.Acknowledge(ctx)
	}
	if err != nil {
		logger.WithError(err).Warn("failed to answer ignored interaction", "reason", reason)
	}
}
