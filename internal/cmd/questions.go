package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/welcomer/internal/config"
	"github.com/felixgeelhaar/welcomer/internal/questionnaire"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Inspect and validate onboarding questionnaires",
	Long: `Inspect the built-in questionnaires and validate custom ones before
deploying them.

Examples:
  welcomer questions list
  welcomer questions show --preset age-region
  welcomer questions validate --file onboarding.yaml --modality reactions
  welcomer questions export --preset default > onboarding.yaml`,
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in questionnaires",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsList,
}

var questionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the questions, choices and roles of a questionnaire",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsShow,
}

var questionsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a questionnaire for the selected modality",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsValidate,
}

var questionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print a questionnaire as YAML",
	Args:  cobra.NoArgs,
	RunE:  runQuestionsExport,
}

var (
	questionsPreset   string
	questionsFile     string
	questionsModality string
)

func init() {
	for _, c := range []*cobra.Command{questionsShowCmd, questionsValidateCmd, questionsExportCmd} {
		c.Flags().StringVar(&questionsPreset, "preset", "default", "built-in questionnaire")
		c.Flags().StringVarP(&questionsFile, "file", "f", "", "path to a YAML questionnaire (overrides --preset)")
	}
	questionsValidateCmd.Flags().StringVar(&questionsModality, "modality", "components", "answer modality to validate for: components or reactions")

	questionsCmd.AddCommand(questionsListCmd, questionsShowCmd, questionsValidateCmd, questionsExportCmd)
	rootCmd.AddCommand(questionsCmd)
}

func loadQuestionnaire(modality string) (questionnaire.Questionnaire, error) {
	cfg := config.Config{
		Preset:            questionsPreset,
		QuestionnairePath: questionsFile,
		Modality:          modality,
	}
	q, err := cfg.LoadQuestionnaire()
	if err != nil {
		return questionnaire.Questionnaire{}, QuestionnaireLoadError(questionnaireSource(cfg), err)
	}
	return q, nil
}

func runQuestionsList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Built-in questionnaires"))
	for _, q := range questionnaire.ListPresets() {
		fmt.Fprintf(out, "  %s  %s\n", keyStyle.Render(fmt.Sprintf("%-12s", q.Name)), mutedStyle.Render(q.Description))
	}
	return nil
}

func runQuestionsShow(cmd *cobra.Command, args []string) error {
	q, err := loadQuestionnaire("components")
	if err != nil {
		return err
	}
	renderQuestionnaire(cmd.OutOrStdout(), q)
	return nil
}

func runQuestionsValidate(cmd *cobra.Command, args []string) error {
	q, err := loadQuestionnaire(questionsModality)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), dangerStyle.Render("✗ invalid"))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d questions, valid for %s\n",
		successStyle.Render("✓"), q.Name, len(q.Questions), questionsModality)
	return nil
}

func runQuestionsExport(cmd *cobra.Command, args []string) error {
	q, err := loadQuestionnaire("components")
	if err != nil {
		return err
	}
	data, err := questionnaire.Marshal(q)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// renderQuestionnaire writes a human-readable summary of q.
func renderQuestionnaire(w io.Writer, q questionnaire.Questionnaire) {
	var header strings.Builder
	header.WriteString(titleStyle.Render(q.Name))
	if q.Description != "" {
		header.WriteString("\n" + mutedStyle.Render(q.Description))
	}
	fmt.Fprintf(&header, "\nchannel: %s<member>  category: %s", q.ChannelPrefix, q.CategoryName)
	if q.AdminRole != "" {
		fmt.Fprintf(&header, "\nadmin role: %s", q.AdminRole)
	}
	if q.StartRole != "" {
		fmt.Fprintf(&header, "\nstart role: %s", q.StartRole)
	}
	fmt.Fprintln(w, boxStyle.Render(header.String()))

	for i, question := range q.Questions {
		fmt.Fprintf(w, "\n%s %s %s\n",
			keyStyle.Render(fmt.Sprintf("%d/%d", i+1, len(q.Questions))),
			question.Prompt,
			mutedStyle.Render(fmt.Sprintf("[%s, %s]", question.Kind, question.EffectiveControl())))
		for _, c := range question.Choices {
			fmt.Fprintf(w, "    %s\n", describeChoice(c))
		}
		if question.Derived != nil {
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render("privileged answers also grant "+question.Derived.Role))
		}
	}
}

func describeChoice(c questionnaire.Choice) string {
	label := c.Label
	if c.Emoji != "" {
		label = c.Emoji + " " + label
	}
	switch {
	case c.Reject:
		return label + " " + dangerStyle.Render("→ ends onboarding")
	case c.Privileged:
		return label + " → " + c.Role + " *"
	default:
		return label + " → " + c.Role
	}
}
