package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"WELCOMER_TOKEN": "secret"})
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "components", cfg.Modality)
	assert.Equal(t, "default", cfg.Preset)
	assert.Equal(t, 300*time.Second, cfg.AnswerTimeout)
	assert.Equal(t, 10*time.Second, cfg.TimeoutGrace)
	assert.Equal(t, 5*time.Second, cfg.CompletionDelay)
	assert.Equal(t, 30*time.Second, cfg.CleanupTimeout)
	assert.Equal(t, time.Second, cfg.ReconcileInterval)
	assert.True(t, cfg.ReconcileOnStart)
	assert.Equal(t, "rejestracja", cfg.CommandName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.GuildIDs)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"WELCOMER_TOKEN":              "secret",
		"WELCOMER_GUILD_IDS":          "1,2",
		"WELCOMER_MODALITY":           "reactions",
		"WELCOMER_ANSWER_TIMEOUT":     "90s",
		"WELCOMER_RECONCILE_ON_START": "false",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, cfg.GuildIDs)
	assert.Equal(t, collector.ModeReactions, cfg.Mode())
	assert.Equal(t, 90*time.Second, cfg.AnswerTimeout)
	assert.False(t, cfg.ReconcileOnStart)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"WELCOMER_ANSWER_TIMEOUT": "soon"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := LoadFrom(map[string]string{"WELCOMER_TOKEN": "secret"})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{"missing token", func(c *Config) { c.Token = " " }, errors.ErrCodeConfigMissing},
		{"unknown modality", func(c *Config) { c.Modality = "telepathy" }, errors.ErrCodeConfigInvalid},
		{"zero answer timeout", func(c *Config) { c.AnswerTimeout = 0 }, errors.ErrCodeConfigInvalid},
		{"negative grace", func(c *Config) { c.TimeoutGrace = -time.Second }, errors.ErrCodeConfigInvalid},
		{"empty buffer", func(c *Config) { c.EventBuffer = 0 }, errors.ErrCodeConfigInvalid},
		{"uppercase command", func(c *Config) { c.CommandName = "Rejestracja" }, errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadQuestionnaire(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"WELCOMER_TOKEN": "secret", "WELCOMER_PRESET": "age-region"})
	require.NoError(t, err)
	q, err := cfg.LoadQuestionnaire()
	require.NoError(t, err)
	assert.Equal(t, "age-region", q.Name)

	cfg.Preset = "nope"
	_, err = cfg.LoadQuestionnaire()
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestLoadQuestionnaireReactionsNeedEmoji(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: plain
questions:
  - kind: gender
    prompt: Płeć?
    choices:
      - {key: m, label: M, role: M}
      - {key: k, label: K, role: K}
`), 0o600))

	cfg, err := LoadFrom(map[string]string{
		"WELCOMER_TOKEN":         "secret",
		"WELCOMER_QUESTIONNAIRE": path,
	})
	require.NoError(t, err)
	_, err = cfg.LoadQuestionnaire()
	require.NoError(t, err)

	cfg.Modality = "reactions"
	_, err = cfg.LoadQuestionnaire()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeQuestionnaireInvalid))
}
