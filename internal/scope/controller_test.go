package scope

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/platform/platformtest"
	"github.com/felixgeelhaar/welcomer/internal/roles"
)

const guildID = "g1"

func newController(gw *platformtest.Gateway) *Controller {
	cfg := Config{CategoryName: "Rejestracja", ChannelPrefix: "rejestracja-", AdminRole: "Administracja"}
	return NewController(gw, roles.NewDirectory(gw, nil, nil), cfg, nil, nil).
		WithRetryPolicy(platform.RetryPolicy{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
}

func TestCreatePrivateChannel(t *testing.T) {
	gw := platformtest.New("bot")
	admin := gw.AddRole(guildID, "Administracja")
	c := newController(gw)

	ch, err := c.CreatePrivateChannel(context.Background(), guildID, "42")
	require.NoError(t, err)
	assert.Equal(t, "rejestracja-42", ch.Name)
	assert.Equal(t, platform.ChannelText, ch.Type)

	category, ok := gw.ChannelByName(guildID, "Rejestracja")
	require.True(t, ok)
	assert.Equal(t, platform.ChannelCategory, category.Type)
	assert.Equal(t, category.ID, ch.ParentID)

	everyone, ok := ch.Override(guildID)
	require.True(t, ok)
	assert.Equal(t, platform.PermView, everyone.Deny)

	member, ok := ch.Override("42")
	require.True(t, ok)
	assert.Equal(t, memberPerms, member.Allow)

	self, ok := ch.Override("bot")
	require.True(t, ok)
	assert.NotZero(t, self.Allow&platform.PermManage)

	adminOverride, ok := ch.Override(admin.ID)
	require.True(t, ok)
	assert.Equal(t, adminPerms, adminOverride.Allow)
}

func TestCreatePrivateChannelWithoutAdminRole(t *testing.T) {
	gw := platformtest.New("bot")
	c := newController(gw)

	ch, err := c.CreatePrivateChannel(context.Background(), guildID, "42")
	require.NoError(t, err)
	assert.Len(t, ch.Overrides, 3)
	assert.Equal(t, 0, gw.RoleCount(guildID, "Administracja"))
}

func TestCreatePrivateChannelReusesExisting(t *testing.T) {
	gw := platformtest.New("bot")
	existing := gw.AddChannel(guildID, platform.ChannelSpec{Name: "rejestracja-42", Type: platform.ChannelText})
	c := newController(gw)

	ch, err := c.CreatePrivateChannel(context.Background(), guildID, "42")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, ch.ID)
	assert.Zero(t, gw.Calls(platformtest.OpCreateChannel))
}

func TestCreatePrivateChannelSharesCategory(t *testing.T) {
	gw := platformtest.New("bot")
	gw.Delay(platformtest.OpCreateChannel, 10*time.Millisecond)
	c := newController(gw)

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.CreatePrivateChannel(context.Background(), guildID, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	channels, err := gw.Channels(context.Background(), guildID)
	require.NoError(t, err)
	categories := 0
	for _, ch := range channels {
		if ch.Type == platform.ChannelCategory {
			categories++
		}
	}
	assert.Equal(t, 1, categories)
}

func TestCreatePrivateChannelRetriesOnce(t *testing.T) {
	gw := platformtest.New("bot")
	gw.AddChannel(guildID, platform.ChannelSpec{Name: "Rejestracja", Type: platform.ChannelCategory})
	gw.FailNext(platformtest.OpCreateChannel, errors.NewTransientError("create channel", nil))
	c := newController(gw)

	_, err := c.CreatePrivateChannel(context.Background(), guildID, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Calls(platformtest.OpCreateChannel))
}

func TestCreatePrivateChannelFailure(t *testing.T) {
	gw := platformtest.New("bot")
	gw.FailAlways(platformtest.OpCreateChannel, errors.NewPermissionDeniedError("create channel", nil))
	c := newController(gw)

	_, err := c.CreatePrivateChannel(context.Background(), guildID, "42")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelUnavailable))
	assert.True(t, platform.IsPermissionDenied(err))
	assert.Equal(t, 1, gw.Calls(platformtest.OpCreateChannel))
}

func TestHideAndRestore(t *testing.T) {
	gw := platformtest.New("bot")
	general := gw.AddChannel(guildID, platform.ChannelSpec{Name: "general", Type: platform.ChannelText})
	rules := gw.AddChannel(guildID, platform.ChannelSpec{Name: "rules", Type: platform.ChannelText})
	c := newController(gw)
	ctx := context.Background()

	own, err := c.CreatePrivateChannel(ctx, guildID, "42")
	require.NoError(t, err)

	report, err := c.HideAllExcept(ctx, guildID, "42", own.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())
	// general, rules and the category.
	assert.Equal(t, 3, report.Attempted)

	for _, id := range []string{general.ID, rules.ID} {
		ch, _ := gw.Channel(id)
		o, ok := ch.Override("42")
		require.True(t, ok)
		assert.Equal(t, platform.PermView, o.Deny)
	}
	ownNow, _ := gw.Channel(own.ID)
	o, _ := ownNow.Override("42")
	assert.Equal(t, memberPerms, o.Allow)

	report, err = c.RestoreAll(ctx, guildID, "42", own.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{own.ID}, gw.MemberOverrides(guildID, "42"))
}

func TestHideIsBestEffort(t *testing.T) {
	gw := platformtest.New("bot")
	broken := gw.AddChannel(guildID, platform.ChannelSpec{Name: "broken", Type: platform.ChannelText})
	fine := gw.AddChannel(guildID, platform.ChannelSpec{Name: "fine", Type: platform.ChannelText})
	gw.FailOverride(broken.ID, errors.NewPermissionDeniedError("set override", nil))
	c := newController(gw)

	report, err := c.HideAllExcept(context.Background(), guildID, "42", "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed, broken.ID)
	assert.Equal(t, []string{fine.ID}, gw.MemberOverrides(guildID, "42"))
}

func TestSweepListFailure(t *testing.T) {
	gw := platformtest.New("bot")
	gw.FailNext(platformtest.OpChannels, fmt.Errorf("gateway down"))
	c := newController(gw)

	_, err := c.RestoreAll(context.Background(), guildID, "42")
	require.Error(t, err)
}

func TestDeleteChannel(t *testing.T) {
	gw := platformtest.New("bot")
	ch := gw.AddChannel(guildID, platform.ChannelSpec{Name: "rejestracja-42"})
	c := newController(gw)
	ctx := context.Background()

	require.NoError(t, c.DeleteChannel(ctx, ch.ID))
	_, ok := gw.Channel(ch.ID)
	assert.False(t, ok)

	// Already gone counts as success.
	require.NoError(t, c.DeleteChannel(ctx, ch.ID))

	gw.FailNext(platformtest.OpDeleteChannel, errors.NewPermissionDeniedError("delete", nil))
	require.Error(t, c.DeleteChannel(ctx, "other"))
}
