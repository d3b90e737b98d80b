package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/welcomer/internal/config"
	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "welcomer",
	Short: "Member onboarding bot for Discord",
	Long: `welcomer greets every new member of a Discord server in a private channel,
asks a short questionnaire (age bracket, gender, region) and assigns the
matching roles. Members can restart the questionnaire with a slash command.

Runtime settings come from WELCOMER_* environment variables; flags override
them where offered.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	logLevel  string
	logFormat string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelled on shutdown signals.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from WELCOMER_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text (default from WELCOMER_LOG_FORMAT)")
}

// newLogger builds the process logger from cfg and the global flags and
// installs it as the default.
func newLogger(cfg config.Config) *log.Logger {
	level, format := cfg.LogLevel, cfg.LogFormat
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	logger := log.New(log.FromSettings(level, format, version.GetInfo().Short()))
	log.SetDefaultLogger(logger)
	return logger
}
