package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/welcomer/internal/bot"
	"github.com/felixgeelhaar/welcomer/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and onboard members",
	Long: `Connect to the Discord gateway and serve onboarding sessions until
interrupted.

The process also serves health probes and Prometheus metrics:
  /health/live    - Liveness probe
  /health/ready   - Readiness probe (gateway connected)
  /health/startup - Startup probe
  /metrics        - Prometheus metrics

On SIGINT or SIGTERM running sessions are cancelled and clean up their
channels before the process exits.

Example:
  # Use the default questionnaire
  WELCOMER_TOKEN=... welcomer run

  # Answer with reactions and a custom questionnaire
  WELCOMER_TOKEN=... welcomer run --modality reactions --questionnaire ./onboarding.yaml`,
	RunE: runBot,
}

var (
	runPreset        string
	runQuestionnaire string
	runModality      string
	runHTTPAddr      string
	runNoReconcile   bool
)

func init() {
	runCmd.Flags().StringVar(&runPreset, "preset", "", "built-in questionnaire to use")
	runCmd.Flags().StringVar(&runQuestionnaire, "questionnaire", "", "path to a YAML questionnaire (overrides --preset)")
	runCmd.Flags().StringVar(&runModality, "modality", "", "answer modality: components or reactions")
	runCmd.Flags().StringVar(&runHTTPAddr, "http-addr", "", "address of the health and metrics server")
	runCmd.Flags().BoolVar(&runNoReconcile, "no-reconcile", false, "skip the startup sweep of unregistered members")

	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)

	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	q, err := cfg.LoadQuestionnaire()
	if err != nil {
		return QuestionnaireLoadError(questionnaireSource(cfg), err)
	}

	return bot.New(cfg, q, logger).Run(cmd.Context())
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("preset") {
		cfg.Preset = runPreset
		cfg.QuestionnairePath = ""
	}
	if flags.Changed("questionnaire") {
		cfg.QuestionnairePath = runQuestionnaire
	}
	if flags.Changed("modality") {
		cfg.Modality = runModality
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = runHTTPAddr
	}
	if runNoReconcile {
		cfg.ReconcileOnStart = false
	}
}

func questionnaireSource(cfg config.Config) string {
	if cfg.QuestionnairePath != "" {
		return cfg.QuestionnairePath
	}
	return "preset " + cfg.Preset
}
