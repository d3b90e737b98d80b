// Package config loads the bot's runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/felixgeelhaar/welcomer/internal/collector"
	"github.com/felixgeelhaar/welcomer/internal/errors"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

// Config is the runtime configuration of the bot.
type Config struct {
	Token    string   `env:"WELCOMER_TOKEN"`
	GuildIDs []string `env:"WELCOMER_GUILD_IDS" envSeparator:","`
	Modality string   `env:"WELCOMER_MODALITY" envDefault:"components"`

	// QuestionnairePath points at a YAML questionnaire. Empty selects Preset.
	QuestionnairePath string `env:"WELCOMER_QUESTIONNAIRE"`
	Preset            string `env:"WELCOMER_PRESET" envDefault:"default"`

	AnswerTimeout   time.Duration `env:"WELCOMER_ANSWER_TIMEOUT" envDefault:"300s"`
	TimeoutGrace    time.Duration `env:"WELCOMER_TIMEOUT_GRACE" envDefault:"10s"`
	CompletionDelay time.Duration `env:"WELCOMER_COMPLETION_DELAY" envDefault:"5s"`
	CleanupTimeout  time.Duration `env:"WELCOMER_CLEANUP_TIMEOUT" envDefault:"30s"`
	EventBuffer     int           `env:"WELCOMER_EVENT_BUFFER" envDefault:"16"`

	ReconcileOnStart  bool          `env:"WELCOMER_RECONCILE_ON_START" envDefault:"true"`
	ReconcileInterval time.Duration `env:"WELCOMER_RECONCILE_INTERVAL" envDefault:"1s"`

	CommandName        string `env:"WELCOMER_COMMAND_NAME" envDefault:"rejestracja"`
	CommandDescription string `env:"WELCOMER_COMMAND_DESCRIPTION" envDefault:"Rozpocznij rejestrację od nowa"`
	ExpiredNotice      string `env:"WELCOMER_EXPIRED_NOTICE" envDefault:"Ta rejestracja już wygasła. Użyj /rejestracja, aby zacząć od nowa."`

	HTTPAddr     string `env:"WELCOMER_HTTP_ADDR" envDefault:":8080"`
	OTelEndpoint string `env:"WELCOMER_OTEL_ENDPOINT"`
	Environment  string `env:"WELCOMER_ENVIRONMENT" envDefault:"production"`

	LogLevel  string `env:"WELCOMER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WELCOMER_LOG_FORMAT" envDefault:"json"`
}

// Load parses the environment. It does not validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfigInvalid, "parse environment", err)
	}
	return cfg, nil
}

// LoadFrom parses a fixed environment instead of the process one.
func LoadFrom(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfigInvalid, "parse environment", err)
	}
	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.NewConfigMissingError("WELCOMER_TOKEN")
	}
	if _, err := collector.ParseMode(c.Modality); err != nil {
		return errors.NewConfigInvalidError("WELCOMER_MODALITY", err.Error())
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"WELCOMER_ANSWER_TIMEOUT", c.AnswerTimeout},
		{"WELCOMER_CLEANUP_TIMEOUT", c.CleanupTimeout},
		{"WELCOMER_RECONCILE_INTERVAL", c.ReconcileInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return errors.NewConfigInvalidError(d.key, "must be positive")
		}
	}
	if c.TimeoutGrace < 0 || c.CompletionDelay < 0 {
		return errors.NewConfigInvalidError("WELCOMER_TIMEOUT_GRACE", "delays must not be negative")
	}
	if c.EventBuffer < 1 {
		return errors.NewConfigInvalidError("WELCOMER_EVENT_BUFFER", "must be at least 1")
	}
	if c.CommandName == "" || c.CommandName != strings.ToLower(c.CommandName) || strings.ContainsAny(c.CommandName, " \t") {
		return errors.NewConfigInvalidError("WELCOMER_COMMAND_NAME", "must be a non-empty lowercase word")
	}
	return nil
}

// Mode returns the parsed answer modality.
func (c Config) Mode() collector.Mode {
	mode, _ := collector.ParseMode(c.Modality)
	return mode
}

// LoadQuestionnaire returns the configured questionnaire, validated for
// the configured modality.
func (c Config) LoadQuestionnaire() (questionnaire.Questionnaire, error) {
	var (
		q   questionnaire.Questionnaire
		err error
	)
	if c.QuestionnairePath != "" {
		q, err = questionnaire.Load(c.QuestionnairePath)
	} else {
		q, err = questionnaire.Preset(c.Preset)
		if err != nil {
			err = errors.NewConfigInvalidError("WELCOMER_PRESET", err.Error())
		}
	}
	if err != nil {
		return questionnaire.Questionnaire{}, err
	}

	if c.Mode() == collector.ModeReactions {
		if err := q.ValidateReactions(); err != nil {
			return questionnaire.Questionnaire{}, fmt.Errorf("questionnaire %q: %w", q.Name, err)
		}
	}
	return q, nil
}
