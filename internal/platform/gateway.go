// Package platform defines the narrow view of the chat platform the
// onboarding core depends on.
package platform

import (
	"context"
)

// ChannelType distinguishes text channels from categories.
type ChannelType int

const (
	ChannelText ChannelType = iota
	ChannelCategory
	ChannelVoice
	ChannelOther
)

// OverrideTarget is the subject of a permission overwrite.
type OverrideTarget int

const (
	TargetRole OverrideTarget = iota
	TargetMember
)

// Permission is a bitmask of channel permissions.
type Permission int64

const (
	PermView Permission = 1 << iota
	PermSend
	PermHistory
	PermManage
	PermManageMessages
)

// Override is a permission overwrite on a channel. Allow and Deny never
// share bits.
type Override struct {
	TargetID string
	Target   OverrideTarget
	Allow    Permission
	Deny     Permission
}

// Channel is a guild channel.
type Channel struct {
	ID        string
	Name      string
	Type      ChannelType
	ParentID  string
	Overrides []Override
}

// Override returns the overwrite for targetID, if any.
func (c Channel) Override(targetID string) (Override, bool) {
	for _, o := range c.Overrides {
		if o.TargetID == targetID {
			return o, true
		}
	}
	return Override{}, false
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	Name      string
	Type      ChannelType
	ParentID  string
	Overrides []Override
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Member is a guild member.
type Member struct {
	ID      string
	Bot     bool
	RoleIDs []string
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Mention renders the platform mention for a member id.
func Mention(memberID string) string {
	return "<@" + memberID + ">"
}

// AffordanceKind selects how a message offers its choices.
type AffordanceKind int

const (
	AffordNone AffordanceKind = iota
	AffordButtons
	AffordSelect
	AffordReactions
)

// Affordance is one answer option attached to a message.
type Affordance struct {
	Key   string
	Label string
	Emoji string
	Style string
}

// Message is an outgoing channel message.
type Message struct {
	Content     string
	Kind        AffordanceKind
	Affordances []Affordance
	Placeholder string
}

// Gateway is the set of platform operations the onboarding core uses.
// Implementations classify failures with the PLATFORM-* error codes.
type Gateway interface {
	// SelfID returns the bot's own user id.
	SelfID() string

	Channels(ctx context.Context, guildID string) ([]Channel, error)
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// SetChannelOverride sets the member's view permission on a channel.
	// A nil canView removes the member's overwrite.
	SetChannelOverride(ctx context.Context, channelID, memberID string, canView *bool) error
	// SendMessage posts msg and returns the new message id.
	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)

	Roles(ctx context.Context, guildID string) ([]Role, error)
	CreateRole(ctx context.Context, guildID, name string) (Role, error)
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID string) error

	Member(ctx context.Context, guildID, memberID string) (Member, error)
	// Members lists every member of the guild.
	Members(ctx context.Context, guildID string) ([]Member, error)
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
