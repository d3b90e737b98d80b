package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// Listener receives the triggers the router extracts from gateway events.
type Listener interface {
	// MemberJoined is called for every member that joins a guild.
	MemberJoined(ctx context.Context, guildID string, member platform.Member)
	// CommandInvoked handles the registration command and returns the
	// private reply for the invoking member.
	CommandInvoked(ctx context.Context, guildID, memberID string) string
	// Ready is called after every gateway Ready with the visible guilds.
	Ready(ctx context.Context, guildIDs []string)
}

// RouterConfig names the command and the reply for expired prompts.
type RouterConfig struct {
	CommandName        string
	CommandDescription string
	// Expired is shown to members clicking a prompt nobody waits for.
	Expired string
}

type respondFunc func(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error

// Router turns discordgo events into triggers and collector events.
type Router struct {
	ctx        context.Context
	cfg        RouterConfig
	selfID     func() string
	listener   Listener
	dispatcher *collector.Dispatcher
	respond    respondFunc
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewRouter creates a Router. Handlers run with ctx, so cancelling it
// cancels everything started from an event.
func NewRouter(ctx context.Context, gw *Gateway, cfg RouterConfig, listener Listener, d *collector.Dispatcher, logger *log.Logger, m *metrics.Metrics) *Router {
	r := newRouter(ctx, cfg, gw.SelfID, listener, d, logger, m)
	r.respond = func(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
		return gw.session.InteractionRespond(i, resp, discordgo.WithContext(ctx))
	}
	return r
}

func newRouter(ctx context.Context, cfg RouterConfig, selfID func() string, listener Listener, d *collector.Dispatcher, logger *log.Logger, m *metrics.Metrics) *Router {
	return &Router{
		ctx:        ctx,
		cfg:        cfg,
		selfID:     selfID,
		listener:   listener,
		dispatcher: d,
		logger:     log.OrDiscard(logger).With("component", "router"),
		metrics:    m,
	}
}

// Bind registers the router's handlers on the gateway session.
func (r *Router) Bind(gw *Gateway) {
	s := gw.session
	s.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) { r.onMemberAdd(ev) })
	s.AddHandler(func(_ *discordgo.Session, ev *discordgo.InteractionCreate) { r.onInteraction(ev) })
	s.AddHandler(func(_ *discordgo.Session, ev *discordgo.MessageReactionAdd) { r.onReaction(ev) })
	s.AddHandler(func(_ *discordgo.Session, ev *discordgo.Ready) { r.onReady(ev) })
}

// RegisterCommand creates the registration command in each guild, or
// globally when guildIDs is empty.
func (r *Router) RegisterCommand(ctx context.Context, gw *Gateway, guildIDs []string) error {
	cmd := &discordgo.ApplicationCommand{
		Name:        r.cfg.CommandName,
		Description: r.cfg.CommandDescription,
		Type:        discordgo.ChatApplicationCommand,
	}
	appID := gw.SelfID()
	if len(guildIDs) == 0 {
		guildIDs = []string{""}
	}
	for _, guildID := range guildIDs {
		if _, err := gw.session.ApplicationCommandCreate(appID, guildID, cmd, discordgo.WithContext(ctx)); err != nil {
			return classify("register command "+r.cfg.CommandName, err)
		}
	}
	return nil
}

func (r *Router) onMemberAdd(ev *discordgo.GuildMemberAdd) {
	if ev.Member == nil || ev.User == nil {
		return
	}
	member := fromMember(ev.Member)
	if member.Bot {
		r.metrics.RecordIgnoredEvent("bot_member")
		return
	}
	r.listener.MemberJoined(r.ctx, ev.GuildID, member)
}

func (r *Router) onReady(ev *discordgo.Ready) {
	ids := make([]string, 0, len(ev.Guilds))
	for _, g := range ev.Guilds {
		ids = append(ids, g.ID)
	}
	r.listener.Ready(r.ctx, ids)
}

func (r *Router) onInteraction(ev *discordgo.InteractionCreate) {
	i := ev.Interaction
	if i == nil || i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name != r.cfg.CommandName {
			return
		}
		reply := r.listener.CommandInvoked(r.ctx, i.GuildID, i.Member.User.ID)
		if err := r.respond(i, ephemeral(reply)); err != nil {
			r.logger.WithError(err).Warn("failed to reply to command", "member_id", i.Member.User.ID)
		}

	case discordgo.InteractionMessageComponent:
		key, ok := componentKey(i.MessageComponentData())
		if !ok || i.Message == nil {
			return
		}
		responder := &interactionResponder{interaction: i, respond: r.respond}
		claimed := r.dispatcher.Publish(collector.Event{
			Kind:      collector.EventComponent,
			GuildID:   i.GuildID,
			ChannelID: i.ChannelID,
			MessageID: i.Message.ID,
			MemberID:  i.Member.User.ID,
			Key:       key,
			Responder: responder,
		})
		if !claimed {
			r.metrics.RecordIgnoredEvent("unclaimed")
			if err := responder.Deny(r.ctx, r.cfg.Expired); err != nil {
				r.logger.WithError(err).Warn("failed to answer expired prompt", "channel_id", i.ChannelID)
			}
		}
	}
}

func (r *Router) onReaction(ev *discordgo.MessageReactionAdd) {
	if ev.MessageReaction == nil || ev.GuildID == "" || ev.UserID == r.selfID() {
		return
	}
	if ev.Member != nil && ev.Member.User != nil && ev.Member.User.Bot {
		return
	}
	r.dispatcher.Publish(collector.Event{
		Kind:      collector.EventReaction,
		GuildID:   ev.GuildID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
		MemberID:  ev.UserID,
		Key:       ev.Emoji.Name,
	})
}

// componentKey extracts the choice key from one of our components.
func componentKey(data discordgo.MessageComponentInteractionData) (string, bool) {
	if !strings.HasPrefix(data.CustomID, CustomIDPrefix) {
		return "", false
	}
	if data.CustomID == selectCustomID {
		if len(data.Values) == 0 {
			return "", false
		}
		return data.Values[0], true
	}
	return strings.TrimPrefix(data.CustomID, CustomIDPrefix), true
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// interactionResponder answers one component interaction.
type interactionResponder struct {
	interaction *discordgo.Interaction
	respond     respondFunc
}

func (r *interactionResponder) Acknowledge(context.Context) error {
	return classify("acknowledge interaction", r.respond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}))
}

func (r *interactionResponder) Deny(_ context.Context, notice string) error {
	return classify("deny interaction", r.respond(r.interaction, ephemeral(notice)))
}
