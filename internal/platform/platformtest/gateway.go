// Package platformtest provides an in-memory platform.Gateway for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// Op names a Gateway method for failure injection and call counting.
type Op string

const (
	OpChannels      Op = "channels"
	OpCreateChannel Op = "create_channel"
	OpDeleteChannel Op = "delete_channel"
	OpSetOverride   Op = "set_override"
	OpSendMessage   Op = "send_message"
	OpRoles         Op = "roles"
	OpCreateRole    Op = "create_role"
	OpGrantRole     Op = "grant_role"
	OpRevokeRole    Op = "revoke_role"
	OpMember        Op = "member"
	OpMembers       Op = "members"
)

// SentMessage is a message recorded by SendMessage.
type SentMessage struct {
	ID        string
	ChannelID string
	platform.Message
}

type guild struct {
	channels map[string]*platform.Channel
	roles    map[string]platform.Role
	members  map[string]*platform.Member
}

// Gateway is a concurrency-safe fake of the chat platform.
type Gateway struct {
	mu           sync.Mutex
	selfID       string
	nextID       int
	guilds       map[string]*guild
	channelGuild map[string]string
	messages     []SentMessage
	failNext     map[Op][]error
	failAlways   map[Op]error
	failChannel  map[string]error
	calls        map[Op]int
	delays       map[Op]time.Duration
	onSend       func(SentMessage)
}

// New creates an empty fake whose bot user is selfID.
func New(selfID string) *Gateway {
	return &Gateway{
		selfID:       selfID,
		nextID:       1000,
		guilds:       make(map[string]*guild),
		channelGuild: make(map[string]string),
		failNext:     make(map[Op][]error),
		failAlways:   make(map[Op]error),
		failChannel:  make(map[string]error),
		calls:        make(map[Op]int),
		delays:       make(map[Op]time.Duration),
	}
}

var _ platform.Gateway = (*Gateway)(nil)

// FailNext queues err as the result of the next call to op.
func (g *Gateway) FailNext(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[op] = append(g.failNext[op], err)
}

// FailAlways makes every call to op fail with err. A nil err clears it.
func (g *Gateway) FailAlways(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failAlways, op)
		return
	}
	g.failAlways[op] = err
}

// FailOverride makes SetChannelOverride fail for one channel.
func (g *Gateway) FailOverride(channelID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failChannel[channelID] = err
}

// Delay makes op sleep before doing its work.
func (g *Gateway) Delay(op Op, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delays[op] = d
}

// OnSend registers fn to run after every successful SendMessage.
func (g *Gateway) OnSend(fn func(SentMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSend = fn
}

// Calls returns how many times op was invoked.
func (g *Gateway) Calls(op Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *Gateway) enter(ctx context.Context, op Op) error {
	g.mu.Lock()
	g.calls[op]++
	delay := g.delays[op]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if queue := g.failNext[op]; len(queue) > 0 {
		g.failNext[op] = queue[1:]
		return queue[0]
	}
	return g.failAlways[op]
}

func (g *Gateway) id() string {
	g.nextID++
	return strconv.Itoa(g.nextID)
}

func (g *Gateway) guild(guildID string) *guild {
	gd, ok := g.guilds[guildID]
	if !ok {
		gd = &guild{
			channels: make(map[string]*platform.Channel),
			roles:    make(map[string]platform.Role),
			members:  make(map[string]*platform.Member),
		}
		g.guilds[guildID] = gd
	}
	return gd
}

// AddMember seeds a guild member.
func (g *Gateway) AddMember(guildID string, m platform.Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m.RoleIDs = append([]string(nil), m.RoleIDs...)
	g.guild(guildID).members[m.ID] = &m
}

// AddRole seeds a role and returns it.
func (g *Gateway) AddRole(guildID, name string) platform.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := platform.Role{ID: g.id(), Name: name}
	g.guild(guildID).roles[r.ID] = r
	return r
}

// AddChannel seeds a channel and returns it with its assigned id.
func (g *Gateway) AddChannel(guildID string, spec platform.ChannelSpec) platform.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addChannel(guildID, spec)
}

func (g *Gateway) addChannel(guildID string, spec platform.ChannelSpec) platform.Channel {
	ch := &platform.Channel{
		ID:        g.id(),
		Name:      spec.Name,
		Type:      spec.Type,
		ParentID:  spec.ParentID,
		Overrides: append([]platform.Override(nil), spec.Overrides...),
	}
	g.guild(guildID).channels[ch.ID] = ch
	g.channelGuild[ch.ID] = guildID
	return copyChannel(ch)
}

// Channel returns a snapshot of a channel.
func (g *Gateway) Channel(channelID string) (platform.Channel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	guildID, ok := g.channelGuild[channelID]
	if !ok {
		return platform.Channel{}, false
	}
	return copyChannel(g.guilds[guildID].channels[channelID]), true
}

// ChannelByName returns a snapshot of the named channel.
func (g *Gateway) ChannelByName(guildID, name string) (platform.Channel, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.guild(guildID).channels {
		if ch.Name == name {
			return copyChannel(ch), true
		}
	}
	return platform.Channel{}, false
}

// RoleByName returns the first role with the given name.
func (g *Gateway) RoleByName(guildID, name string) (platform.Role, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.guild(guildID).roles {
		if r.Name == name {
			return r, true
		}
	}
	return platform.Role{}, false
}

// RoleCount counts roles with the given name.
func (g *Gateway) RoleCount(guildID, name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.guild(guildID).roles {
		if r.Name == name {
			n++
		}
	}
	return n
}

// MemberRoles returns the sorted role names a member holds.
func (g *Gateway) MemberRoles(guildID, memberID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	gd := g.guild(guildID)
	m, ok := gd.members[memberID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(m.RoleIDs))
	for _, id := range m.RoleIDs {
		names = append(names, gd.roles[id].Name)
	}
	sort.Strings(names)
	return names
}

// MemberOverrides returns the ids of channels carrying an overwrite for memberID.
func (g *Gateway) MemberOverrides(guildID, memberID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for _, ch := range g.guild(guildID).channels {
		if _, ok := ch.Override(memberID); ok {
			ids = append(ids, ch.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Messages returns every message sent to channelID, in order.
func (g *Gateway) Messages(channelID string) []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []SentMessage
	for _, m := range g.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (g *Gateway) SelfID() string {
	return g.selfID
}

func (g *Gateway) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	if err := g.enter(ctx, OpChannels); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]platform.Channel, 0, len(g.guild(guildID).channels))
	for _, ch := range g.guild(guildID).channels {
		out = append(out, copyChannel(ch))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, guildID string, spec platform.ChannelSpec) (platform.Channel, error) {
	if err := g.enter(ctx, OpCreateChannel); err != nil {
		return platform.Channel{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addChannel(guildID, spec), nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	if err := g.enter(ctx, OpDeleteChannel); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	guildID, ok := g.channelGuild[channelID]
	if !ok {
		return errors.NewNotFoundError("channel "+channelID, nil)
	}
	delete(g.guilds[guildID].channels, channelID)
	delete(g.channelGuild, channelID)
	return nil
}

func (g *Gateway) SetChannelOverride(ctx context.Context, channelID, memberID string, canView *bool) error {
	if err := g.enter(ctx, OpSetOverride); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failChannel[channelID]; err != nil {
		return err
	}
	guildID, ok := g.channelGuild[channelID]
	if !ok {
		return errors.NewNotFoundError("channel "+channelID, nil)
	}
	ch := g.guilds[guildID].channels[channelID]

	kept := ch.Overrides[:0]
	for _, o := range ch.Overrides {
		if o.TargetID != memberID {
			kept = append(kept, o)
		}
	}
	ch.Overrides = kept
	if canView == nil {
		return nil
	}
	o := platform.Override{TargetID: memberID, Target: platform.TargetMember}
	if *canView {
		o.Allow = platform.PermView
	} else {
		o.Deny = platform.PermView
	}
	ch.Overrides = append(ch.Overrides, o)
	return nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	if err := g.enter(ctx, OpSendMessage); err != nil {
		return "", err
	}
	g.mu.Lock()
	if _, ok := g.channelGuild[channelID]; !ok {
		g.mu.Unlock()
		return "", errors.NewNotFoundError("channel "+channelID, nil)
	}
	sent := SentMessage{ID: g.id(), ChannelID: channelID, Message: msg}
	g.messages = append(g.messages, sent)
	hook := g.onSend
	g.mu.Unlock()

	if hook != nil {
		hook(sent)
	}
	return sent.ID, nil
}

func (g *Gateway) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	if err := g.enter(ctx, OpRoles); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]platform.Role, 0, len(g.guild(guildID).roles))
	for _, r := range g.guild(guildID).roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) CreateRole(ctx context.Context, guildID, name string) (platform.Role, error) {
	if err := g.enter(ctx, OpCreateRole); err != nil {
		return platform.Role{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r := platform.Role{ID: g.id(), Name: name}
	g.guild(guildID).roles[r.ID] = r
	return r, nil
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.enter(ctx, OpGrantRole); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, err := g.member(guildID, memberID)
	if err != nil {
		return err
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (g *Gateway) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	if err := g.enter(ctx, OpRevokeRole); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, err := g.member(guildID, memberID)
	if err != nil {
		return err
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	return nil
}

func (g *Gateway) Member(ctx context.Context, guildID, memberID string) (platform.Member, error) {
	if err := g.enter(ctx, OpMember); err != nil {
		return platform.Member{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m, err := g.member(guildID, memberID)
	if err != nil {
		return platform.Member{}, err
	}
	return copyMember(m), nil
}

func (g *Gateway) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	if err := g.enter(ctx, OpMembers); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]platform.Member, 0, len(g.guild(guildID).members))
	for _, m := range g.guild(guildID).members {
		out = append(out, copyMember(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) member(guildID, memberID string) (*platform.Member, error) {
	m, ok := g.guild(guildID).members[memberID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("member %s", memberID), nil)
	}
	return m, nil
}

func copyChannel(ch *platform.Channel) platform.Channel {
	out := *ch
	out.Overrides = append([]platform.Override(nil), ch.Overrides...)
	return out
}

func copyMember(m *platform.Member) platform.Member {
	out := *m
	out.RoleIDs = append([]string(nil), m.RoleIDs...)
	return out
}
