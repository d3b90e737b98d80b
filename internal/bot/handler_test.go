package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/config"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
	"github.com/felixgeelhaar/welcomer/internal/platform"
	"github.com/felixgeelhaar/welcomer/internal/platform/platformtest"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
	"github.com/felixgeelhaar/welcomer/internal/session"
)

const guildID = "g1"

func testConfig() config.Config {
	return config.Config{
		GuildIDs:          []string{guildID},
		Modality:          string(collector.ModeComponents),
		AnswerTimeout:     150 * time.Millisecond,
		TimeoutGrace:      5 * time.Millisecond,
		CompletionDelay:   5 * time.Millisecond,
		CleanupTimeout:    time.Second,
		ReconcileOnStart:  true,
		ReconcileInterval: time.Millisecond,
	}
}

type fixture struct {
	gw      *platformtest.Gateway
	core    *Core
	metrics *metrics.Metrics

	mu      sync.Mutex
	answers map[string][]string
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	q := questionnaire.AgeRegionPreset()

	gw := platformtest.New("bot")
	gw.AddRole(guildID, q.AdminRole)
	gw.AddChannel(guildID, platform.ChannelSpec{Name: "ogolny", Type: platform.ChannelText})

	m := metrics.NewMetrics(prometheus.NewRegistry())
	core, err := Assemble(cfg, q, gw, nil, m)
	require.NoError(t, err)

	f := &fixture{gw: gw, core: core, metrics: m, answers: map[string][]string{}}
	gw.OnSend(f.onSend)
	return f
}

// script makes memberID click keys, one per prompt in their channel.
func (f *fixture) script(memberID string, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[memberID] = keys
}

func (f *fixture) onSend(sent platformtest.SentMessage) {
	if sent.Kind == platform.AffordNone {
		return
	}
	ch, ok := f.gw.Channel(sent.ChannelID)
	if !ok {
		return
	}
	memberID := ch.Name[len(questionnaire.DefaultChannelPrefix):]

	f.mu.Lock()
	keys := f.answers[memberID]
	if len(keys) == 0 {
		f.mu.Unlock()
		return
	}
	f.answers[memberID] = keys[1:]
	f.mu.Unlock()

	f.core.Dispatcher.Publish(collector.Event{
		Kind:      collector.EventComponent,
		GuildID:   guildID,
		ChannelID: sent.ChannelID,
		MessageID: sent.ID,
		MemberID:  memberID,
		Key:       keys[0],
	})
}

func (f *fixture) started(trigger session.Trigger) float64 {
	return testutil.ToFloat64(f.metrics.SessionsStarted.WithLabelValues(string(trigger)))
}

func TestMemberJoinedRunsSession(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gw.AddMember(guildID, platform.Member{ID: "m1"})
	f.script("m1", "16-18", "Pomorskie")

	f.core.Handler.MemberJoined(context.Background(), guildID, platform.Member{ID: "m1"})
	f.core.Handler.Wait()

	assert.ElementsMatch(t, []string{"16-18", "Pomorskie"}, f.gw.MemberRoles(guildID, "m1"))
	assert.Equal(t, 1.0, f.started(session.TriggerJoin))
	_, ok := f.gw.ChannelByName(guildID, "rejestracja-m1")
	assert.False(t, ok, "completed session deletes its channel")
}

func TestMemberJoinedFiltersBotsAndGuilds(t *testing.T) {
	f := newFixture(t, testConfig())

	f.core.Handler.MemberJoined(context.Background(), guildID, platform.Member{ID: "b1", Bot: true})
	f.core.Handler.MemberJoined(context.Background(), "other", platform.Member{ID: "m1"})
	f.core.Handler.Wait()

	assert.Zero(t, f.gw.Calls(platformtest.OpCreateChannel))
	assert.Zero(t, f.started(session.TriggerJoin))
}

func TestCommandReplies(t *testing.T) {
	f := newFixture(t, testConfig())
	f.gw.AddMember(guildID, platform.Member{ID: "m1"})
	messages := questionnaire.AgeRegionPreset().Messages

	first := f.core.Handler.CommandInvoked(context.Background(), guildID, "m1")
	second := f.core.Handler.CommandInvoked(context.Background(), guildID, "m1")
	f.core.Handler.Wait()

	assert.Equal(t, messages.Started, first)
	assert.Equal(t, messages.AlreadyActive, second)
	assert.Equal(t, 1.0, f.started(session.TriggerCommand))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DuplicateTriggers.WithLabelValues(string(session.TriggerCommand))))
	assert.Equal(t, startFailed, f.core.Handler.CommandInvoked(context.Background(), "other", "m1"))
}

func TestReadySweepsOnce(t *testing.T) {
	f := newFixture(t, testConfig())
	registered := f.gw.AddRole(guildID, "19-24")
	admin, ok := f.gw.RoleByName(guildID, questionnaire.DefaultAdminRole)
	require.True(t, ok)

	f.gw.AddMember(guildID, platform.Member{ID: "fresh"})
	f.gw.AddMember(guildID, platform.Member{ID: "done", RoleIDs: []string{registered.ID}})
	f.gw.AddMember(guildID, platform.Member{ID: "admin", RoleIDs: []string{admin.ID}})
	f.gw.AddMember(guildID, platform.Member{ID: "bot2", Bot: true})
	f.script("fresh", "25+", "Opolskie")

	f.core.Handler.Ready(context.Background(), []string{guildID, "other"})
	f.core.Handler.Wait()
	f.core.Handler.Ready(context.Background(), []string{guildID})
	f.core.Handler.Wait()

	assert.Equal(t, 1.0, f.started(session.TriggerReconcile))
	assert.ElementsMatch(t, []string{"25+", "Opolskie", questionnaire.DefaultAdultRole}, f.gw.MemberRoles(guildID, "fresh"))
	assert.Equal(t, 1, f.gw.Calls(platformtest.OpMembers), "the foreign guild is never listed")
}

func TestReadyWithoutReconcile(t *testing.T) {
	cfg := testConfig()
	cfg.ReconcileOnStart = false
	f := newFixture(t, cfg)
	f.gw.AddMember(guildID, platform.Member{ID: "fresh"})

	f.core.Handler.Ready(context.Background(), []string{guildID})
	f.core.Handler.Wait()

	assert.Zero(t, f.gw.Calls(platformtest.OpMembers))
}

func TestAssembleRejectsUnknownModality(t *testing.T) {
	cfg := testConfig()
	cfg.Modality = "telepathy"
	_, err := Assemble(cfg, questionnaire.AgeRegionPreset(), platformtest.New("bot"), nil, nil)
	assert.Error(t, err)
}

func TestListenerRegistersOnce(t *testing.T) {
	f := newFixture(t, testConfig())
	calls := 0
	l := &listener{Handler: f.core.Handler, register: func(context.Context, []string) { calls++ }}

	l.Ready(context.Background(), []string{guildID})
	l.Ready(context.Background(), []string{guildID})
	f.core.Handler.Wait()

	assert.Equal(t, 1, calls)
}
