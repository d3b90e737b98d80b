package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// CustomIDPrefix marks components owned by this bot.
const CustomIDPrefix = "welcomer:"

// selectCustomID identifies the select menu; its value carries the key.
const selectCustomID = CustomIDPrefix + "select"

// buttonsPerRow is the platform's limit for one action row.
const buttonsPerRow = 5

var permissionBits = []struct {
	ours   platform.Permission
	theirs int64
}{
	{platform.PermView, discordgo.PermissionViewChannel},
	{platform.PermSend, discordgo.PermissionSendMessages},
	{platform.PermHistory, discordgo.PermissionReadMessageHistory},
	{platform.PermManage, discordgo.PermissionManageChannels},
	{platform.PermManageMessages, discordgo.PermissionManageMessages},
}

func toPermissions(p platform.Permission) int64 {
	var out int64
	for _, b := range permissionBits {
		if p&b.ours != 0 {
			out |= b.theirs
		}
	}
	return out
}

func fromPermissions(bits int64) platform.Permission {
	var out platform.Permission
	for _, b := range permissionBits {
		if bits&b.theirs != 0 {
			out |= b.ours
		}
	}
	return out
}

func toChannelType(t platform.ChannelType) discordgo.ChannelType {
	switch t {
	case platform.ChannelCategory:
		return discordgo.ChannelTypeGuildCategory
	case platform.ChannelVoice:
		return discordgo.ChannelTypeGuildVoice
	default:
		return discordgo.ChannelTypeGuildText
	}
}

func fromChannelType(t discordgo.ChannelType) platform.ChannelType {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return platform.ChannelText
	case discordgo.ChannelTypeGuildCategory:
		return platform.ChannelCategory
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return platform.ChannelVoice
	default:
		return platform.ChannelOther
	}
}

func toOverwrites(overrides []platform.Override) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(overrides))
	for _, o := range overrides {
		typ := discordgo.PermissionOverwriteTypeRole
		if o.Target == platform.TargetMember {
			typ = discordgo.PermissionOverwriteTypeMember
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    o.TargetID,
			Type:  typ,
			Allow: toPermissions(o.Allow),
			Deny:  toPermissions(o.Deny),
		})
	}
	return out
}

func fromChannel(ch *discordgo.Channel) platform.Channel {
	out := platform.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     fromChannelType(ch.Type),
		ParentID: ch.ParentID,
	}
	for _, o := range ch.PermissionOverwrites {
		target := platform.TargetRole
		if o.Type == discordgo.PermissionOverwriteTypeMember {
			target = platform.TargetMember
		}
		out.Overrides = append(out.Overrides, platform.Override{
			TargetID: o.ID,
			Target:   target,
			Allow:    fromPermissions(o.Allow),
			Deny:     fromPermissions(o.Deny),
		})
	}
	return out
}

func fromMember(m *discordgo.Member) platform.Member {
	out := platform.Member{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.ID = m.User.ID
		out.Bot = m.User.Bot
	}
	return out
}

func buttonStyle(style string) discordgo.ButtonStyle {
	switch style {
	case "primary":
		return discordgo.PrimaryButton
	case "success":
		return discordgo.SuccessButton
	case "danger":
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

// render builds the outgoing message. Emoji are part of the label so the
// same text works in buttons and select options.
func render(msg platform.Message) *discordgo.MessageSend {
	out := &discordgo.MessageSend{Content: msg.Content}

	switch msg.Kind {
	case platform.AffordButtons:
		var row []discordgo.MessageComponent
		for _, a := range msg.Affordances {
			row = append(row, discordgo.Button{
				Label:    label(a),
				Style:    buttonStyle(a.Style),
				CustomID: CustomIDPrefix + a.Key,
			})
			if len(row) == buttonsPerRow {
				out.Components = append(out.Components, discordgo.ActionsRow{Components: row})
				row = nil
			}
		}
		if len(row) > 0 {
			out.Components = append(out.Components, discordgo.ActionsRow{Components: row})
		}

	case platform.AffordSelect:
		options := make([]discordgo.SelectMenuOption, 0, len(msg.Affordances))
		for _, a := range msg.Affordances {
			options = append(options, discordgo.SelectMenuOption{Label: a.Label, Value: a.Key})
		}
		out.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    selectCustomID,
					Placeholder: msg.Placeholder,
					Options:     options,
				},
			}},
		}
	}
	return out
}

func label(a platform.Affordance) string {
	if a.Emoji == "" {
		return a.Label
	}
	return a.Emoji + " " + a.Label
}
