// Package bot connects platform triggers to the onboarding core.
package bot

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
	"github.com/felixgeelhaar/welcomer/internal/reconcile"
	"github.com/felixgeelhaar/welcomer/internal/session"
)

// startFailed is the command reply when a session could not be started.
const startFailed = "Nie udało się rozpocząć rejestracji. Spróbuj ponownie za chwilę."

// Sweeper runs the one-time startup sweep.
type Sweeper interface {
	Ran() bool
	Run(ctx context.Context, guildIDs []string) (reconcile.Summary, error)
}

// Handler turns joins, commands and Ready events into sessions.
type Handler struct {
	registry  *session.Registry
	sweeper   Sweeper
	messages  questionnaire.Messages
	guilds    map[string]bool
	reconcile bool
	logger    *log.Logger

	sweeps sync.WaitGroup
}

// HandlerConfig selects the guilds served and whether to sweep on Ready.
type HandlerConfig struct {
	// GuildIDs limits the bot to these guilds. Empty serves every guild.
	GuildIDs         []string
	ReconcileOnStart bool
	Messages         questionnaire.Messages
}

// NewHandler creates a Handler. sweeper may be nil when ReconcileOnStart
// is false.
func NewHandler(registry *session.Registry, sweeper Sweeper, cfg HandlerConfig, logger *log.Logger) *Handler {
	h := &Handler{
		registry:  registry,
		sweeper:   sweeper,
		messages:  cfg.Messages,
		reconcile: cfg.ReconcileOnStart && sweeper != nil,
		logger:    log.OrDiscard(logger).With("component", "bot"),
	}
	if len(cfg.GuildIDs) > 0 {
		h.guilds = make(map[string]bool, len(cfg.GuildIDs))
		for _, id := range cfg.GuildIDs {
			h.guilds[id] = true
		}
	}
	return h
}

func (h *Handler) serves(guildID string) bool {
	return h.guilds == nil || h.guilds[guildID]
}

// MemberJoined starts a join session, which also grants the start role.
func (h *Handler) MemberJoined(ctx context.Context, guildID string, member platform.Member) {
	if member.Bot || !h.serves(guildID) {
		return
	}
	_, err := h.registry.Launch(ctx, session.Request{
		GuildID:  guildID,
		MemberID: member.ID,
		Trigger:  session.TriggerJoin,
	})
	if err != nil {
		h.logger.WithError(err).Debug("join ignored", "guild_id", guildID, "member_id", member.ID)
	}
}

// CommandInvoked starts a command session and returns the private reply.
func (h *Handler) CommandInvoked(ctx context.Context, guildID, memberID string) string {
	if !h.serves(guildID) {
		return startFailed
	}
	_, err := h.registry.Launch(ctx, session.Request{
		GuildID:  guildID,
		MemberID: memberID,
		Trigger:  session.TriggerCommand,
	})
	switch {
	case err == nil:
		return h.messages.Started
	case errors.HasCode(err, errors.ErrCodeAlreadyActive):
		return h.messages.AlreadyActive
	default:
		h.logger.WithError(err).Warn("command could not start a session", "guild_id", guildID, "member_id", memberID)
		return startFailed
	}
}

// Ready starts the startup sweep in the background. Reconnects deliver
// Ready again; only the first one sweeps.
func (h *Handler) Ready(ctx context.Context, guildIDs []string) {
	if !h.reconcile || h.sweeper.Ran() {
		return
	}

	served := make([]string, 0, len(guildIDs))
	for _, id := range guildIDs {
		if h.serves(id) {
			served = append(served, id)
		}
	}

	h.sweeps.Add(1)
	go func() {
		defer h.sweeps.Done()
		summary, err := h.sweeper.Run(ctx, served)
		switch {
		case errors.HasCode(err, errors.ErrCodeReconcileAlreadyRan):
			h.logger.Debug("startup sweep already ran")
		case err != nil:
			h.logger.WithError(err).Warn("startup sweep interrupted", "launched", summary.Launched)
		}
	}()
}

// Wait blocks until the sweep and every session have finished.
func (h *Handler) Wait() {
	h.sweeps.Wait()
	h.registry.Wait()
}
