// Package discord implements the platform gateway on top of discordgo.
package discord

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// Intents the bot subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessageReactions

// membersPage is the largest page the member list endpoint returns.
const membersPage = 1000

// Gateway is a platform.Gateway backed by a discordgo session.
type Gateway struct {
	session *discordgo.Session
	logger  *log.Logger

	mu        sync.RWMutex
	selfID    string
	connected atomic.Bool
	readyAt   atomic.Int64
}

var _ platform.Gateway = (*Gateway)(nil)

// New creates a Gateway for a bot token. The connection is opened by Open.
func New(token string, logger *log.Logger) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, classify("create session", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true

	g := &Gateway{
		session: s,
		logger:  log.OrDiscard(logger).With("component", "discord"),
	}
	s.AddHandler(g.onReady)
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { g.connected.Store(true) })
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		g.connected.Store(false)
		g.logger.Warn("gateway disconnected")
	})
	return g, nil
}

// Session exposes the underlying discordgo session to the event router.
func (g *Gateway) Session() *discordgo.Session {
	return g.session
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return classify("open gateway", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	g.connected.Store(false)
	return g.session.Close()
}

// Connected reports whether the gateway is ready to serve events.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// Latency is the last heartbeat round trip.
func (g *Gateway) Latency() time.Duration {
	return g.session.HeartbeatLatency()
}

// ReadySince returns when the last Ready event arrived.
func (g *Gateway) ReadySince() time.Time {
	n := g.readyAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		g.mu.Lock()
		g.selfID = r.User.ID
		g.mu.Unlock()
	}
	g.connected.Store(true)
	g.readyAt.Store(time.Now().UnixNano())
	g.logger.Info("gateway ready", "guilds", len(r.Guilds))
}

func (g *Gateway) SelfID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.selfID != "" {
		return g.selfID
	}
	if g.session.State != nil && g.session.State.User != nil {
		return g.session.State.User.ID
	}
	return ""
}

func (g *Gateway) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	chs, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list channels", err)
	}
	out := make([]platform.Channel, 0, len(chs))
	for _, ch := range chs {
		out = append(out, fromChannel(ch))
	}
	return out, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, guildID string, spec platform.ChannelSpec) (platform.Channel, error) {
	ch, err := g.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 toChannelType(spec.Type),
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overrides),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Channel{}, classify("create channel "+spec.Name, err)
	}
	return fromChannel(ch), nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return classify("delete channel "+channelID, err)
	}
	return nil
}

func (g *Gateway) SetChannelOverride(ctx context.Context, channelID, memberID string, canView *bool) error {
	var err error
	switch {
	case canView == nil:
		err = g.session.ChannelPermissionDelete(channelID, memberID, discordgo.WithContext(ctx))
	case *canView:
		err = g.session.ChannelPermissionSet(channelID, memberID, discordgo.PermissionOverwriteTypeMember,
			discordgo.PermissionViewChannel, 0, discordgo.WithContext(ctx))
	default:
		err = g.session.ChannelPermissionSet(channelID, memberID, discordgo.PermissionOverwriteTypeMember,
			0, discordgo.PermissionViewChannel, discordgo.WithContext(ctx))
	}
	if err != nil {
		return classify("set override on "+channelID, err)
	}
	return nil
}

// SendMessage posts msg. Reaction affordances are added one by one after
// the message exists; a failing reaction fails the send.
func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	sent, err := g.session.ChannelMessageSendComplex(channelID, render(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("send message", err)
	}
	if msg.Kind == platform.AffordReactions {
		for _, a := range msg.Affordances {
			if err := g.session.MessageReactionAdd(channelID, sent.ID, a.Emoji, discordgo.WithContext(ctx)); err != nil {
				return sent.ID, classify("add reaction "+a.Emoji, err)
			}
		}
	}
	return sent.ID, nil
}

func (g *Gateway) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	rs, err := g.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list roles", err)
	}
	out := make([]platform.Role, 0, len(rs))
	for _, r := range rs {
		out = append(out, platform.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (g *Gateway) CreateRole(ctx context.Context, guildID, name string) (platform.Role, error) {
	r, err := g.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Role{}, classify("create role "+name, err)
	}
	return platform.Role{ID: r.ID, Name: r.Name}, nil
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.session.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify("grant role "+roleID, err)
	}
	return nil
}

func (g *Gateway) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.session.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify("revoke role "+roleID, err)
	}
	return nil
}

func (g *Gateway) Member(ctx context.Context, guildID, memberID string) (platform.Member, error) {
	m, err := g.session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.Member{}, classify("get member "+memberID, err)
	}
	return fromMember(m), nil
}

func (g *Gateway) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	var out []platform.Member
	after := ""
	for {
		page, err := g.session.GuildMembers(guildID, after, membersPage, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classify("list members", err)
		}
		for _, m := range page {
			out = append(out, fromMember(m))
		}
		if len(page) < membersPage {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}
