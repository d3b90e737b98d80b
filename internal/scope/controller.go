// Package scope controls which channels a member being onboarded can see.
package scope

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
)

// Permission sets applied to a new registration channel.
const (
	memberPerms = platform.PermView | platform.PermSend | platform.PermHistory
	adminPerms  = platform.PermView | platform.PermSend | platform.PermHistory
	botPerms    = platform.PermView | platform.PermSend | platform.PermHistory |
		platform.PermManage | platform.PermManageMessages
)

// RoleFinder looks a role up without creating it.
type RoleFinder interface {
	Find(ctx context.Context, guildID, name string) (platform.Role, bool, error)
}

// Config names the channels and roles the controller works with.
type Config struct {
	CategoryName  string
	ChannelPrefix string
	// AdminRole may see every registration channel. Optional.
	AdminRole string
}

// Report summarizes a best-effort sweep over a guild's channels.
type Report struct {
	Attempted int
	Failed    map[string]error
}

// OK reports whether every channel was updated.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

func (r *Report) fail(channelID string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[channelID] = err
}

// Controller creates registration channels and toggles per-member
// visibility of the rest of the guild.
type Controller struct {
	gw      platform.Gateway
	roles   RoleFinder
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Metrics
	retry   platform.RetryPolicy

	categories singleflight.Group
}

// NewController creates a Controller.
func NewController(gw platform.Gateway, roles RoleFinder, cfg Config, logger *log.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		gw:      gw,
		roles:   roles,
		cfg:     cfg,
		logger:  log.OrDiscard(logger).With("component", "scope"),
		metrics: m,
		retry:   platform.DefaultRetryPolicy(),
	}
}

// WithRetryPolicy overrides the retry policy used for channel creation.
func (c *Controller) WithRetryPolicy(p platform.RetryPolicy) *Controller {
	c.retry = p
	return c
}

// ChannelName returns the registration channel name for a member.
func (c *Controller) ChannelName(memberID string) string {
	return c.cfg.ChannelPrefix + memberID
}

// CreatePrivateChannel returns the member's registration channel, creating
// it inside the registration category when it does not exist yet. Only the
// member, the bot and the admin role can see it.
func (c *Controller) CreatePrivateChannel(ctx context.Context, guildID, memberID string) (platform.Channel, error) {
	channels, err := c.gw.Channels(ctx, guildID)
	if err != nil {
		return platform.Channel{}, errors.NewChannelUnavailableError(memberID, err)
	}

	name := c.ChannelName(memberID)
	for _, ch := range channels {
		if ch.Type == platform.ChannelText && ch.Name == name {
			c.logger.Info("reusing registration channel", "guild_id", guildID, "member_id", memberID, "channel_id", ch.ID)
			return ch, nil
		}
	}

	category, err := c.ensureCategory(ctx, guildID, channels)
	if err != nil {
		return platform.Channel{}, errors.NewChannelUnavailableError(memberID, err)
	}

	overrides, err := c.overrides(ctx, guildID, memberID)
	if err != nil {
		return platform.Channel{}, errors.NewChannelUnavailableError(memberID, err)
	}

	spec := platform.ChannelSpec{
		Name:      name,
		Type:      platform.ChannelText,
		ParentID:  category.ID,
		Overrides: overrides,
	}
	ch, err := c.create(ctx, guildID, spec)
	if err != nil {
		return platform.Channel{}, errors.NewChannelUnavailableError(memberID, err)
	}

	c.logger.Info("created registration channel", "guild_id", guildID, "member_id", memberID, "channel_id", ch.ID)
	return ch, nil
}

func (c *Controller) overrides(ctx context.Context, guildID, memberID string) ([]platform.Override, error) {
	out := []platform.Override{
		// The @everyone role shares the guild's id.
		{TargetID: guildID, Target: platform.TargetRole, Deny: platform.PermView},
		{TargetID: memberID, Target: platform.TargetMember, Allow: memberPerms},
		{TargetID: c.gw.SelfID(), Target: platform.TargetMember, Allow: botPerms},
	}
	if c.cfg.AdminRole == "" || c.roles == nil {
		return out, nil
	}

	admin, ok, err := c.roles.Find(ctx, guildID, c.cfg.AdminRole)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, platform.Override{TargetID: admin.ID, Target: platform.TargetRole, Allow: adminPerms})
	}
	return out, nil
}

func (c *Controller) ensureCategory(ctx context.Context, guildID string, channels []platform.Channel) (platform.Channel, error) {
	for _, ch := range channels {
		if ch.Type == platform.ChannelCategory && ch.Name == c.cfg.CategoryName {
			return ch, nil
		}
	}

	v, err, _ := c.categories.Do(guildID, func() (interface{}, error) {
		// A concurrent session may have created it since the listing above.
		fresh, err := c.gw.Channels(ctx, guildID)
		if err != nil {
			return platform.Channel{}, err
		}
		for _, ch := range fresh {
			if ch.Type == platform.ChannelCategory && ch.Name == c.cfg.CategoryName {
				return ch, nil
			}
		}
		cat, err := c.create(ctx, guildID, platform.ChannelSpec{Name: c.cfg.CategoryName, Type: platform.ChannelCategory})
		if err != nil {
			return platform.Channel{}, fmt.Errorf("create category %q: %w", c.cfg.CategoryName, err)
		}
		c.logger.Info("created registration category", "guild_id", guildID, "category", c.cfg.CategoryName)
		return cat, nil
	})
	if err != nil {
		return platform.Channel{}, err
	}
	return v.(platform.Channel), nil
}

func (c *Controller) create(ctx context.Context, guildID string, spec platform.ChannelSpec) (platform.Channel, error) {
	return platform.RetryTransient(ctx, c.retry, func() (platform.Channel, error) {
		return c.gw.CreateChannel(ctx, guildID, spec)
	}, func(err error) {
		c.metrics.RecordRetry("create_channel")
		c.logger.WithError(err).Warn("retrying channel creation", "guild_id", guildID, "channel", spec.Name)
	})
}

// DeleteChannel removes a channel. A channel that is already gone counts
// as deleted.
func (c *Controller) DeleteChannel(ctx context.Context, channelID string) error {
	err := c.gw.DeleteChannel(ctx, channelID)
	if err != nil && !platform.IsNotFound(err) {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

// HideAllExcept denies the member's view of every guild channel but keep.
// Failures on single channels are collected, not returned.
func (c *Controller) HideAllExcept(ctx context.Context, guildID, memberID, keep string) (Report, error) {
	return c.sweep(ctx, "hide", guildID, memberID, platform.Bool(false), keep)
}

// RestoreAll removes the member's overwrite from every guild channel
// except the ones listed in keep.
func (c *Controller) RestoreAll(ctx context.Context, guildID, memberID string, keep ...string) (Report, error) {
	return c.sweep(ctx, "restore", guildID, memberID, nil, keep...)
}

func (c *Controller) sweep(ctx context.Context, phase, guildID, memberID string, canView *bool, keep ...string) (Report, error) {
	var report Report
	channels, err := c.gw.Channels(ctx, guildID)
	if err != nil {
		return report, fmt.Errorf("list channels: %w", err)
	}

	skip := make(map[string]bool, len(keep))
	for _, id := range keep {
		skip[id] = true
	}

	for _, ch := range channels {
		if skip[ch.ID] {
			continue
		}
		if canView == nil {
			if _, has := ch.Override(memberID); !has {
				continue
			}
		}
		report.Attempted++
		if err := c.gw.SetChannelOverride(ctx, ch.ID, memberID, canView); err != nil {
			report.fail(ch.ID, err)
			if ctx.Err() != nil {
				break
			}
			c.logger.WithError(err).Warn("channel overwrite failed",
				"phase", phase, "guild_id", guildID, "member_id", memberID, "channel_id", ch.ID)
		}
	}

	c.metrics.RecordOverrideFailure(phase, len(report.Failed))
	return report, nil
}
