package questionnaire

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

// Load reads and validates a questionnaire from a YAML file.
func Load(path string) (Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Questionnaire{}, errors.NewFileNotFoundError(path)
		}
		return Questionnaire{}, errors.Wrap(errors.ErrCodeFileReadFailed, "read questionnaire", err)
	}

	q, err := Parse(data)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeQuestionnaireInvalid) {
			return Questionnaire{}, err
		}
		return Questionnaire{}, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return q, nil
}

// Parse decodes a questionnaire document, fills defaults and validates it.
func Parse(data []byte) (Questionnaire, error) {
	var q Questionnaire
	if err := yaml.Unmarshal(data, &q); err != nil {
		return Questionnaire{}, fmt.Errorf("unmarshal questionnaire: %w", err)
	}
	q.applyDefaults()
	if err := q.Validate(); err != nil {
		return Questionnaire{}, err
	}
	return q, nil
}

// Marshal encodes q as YAML.
func Marshal(q Questionnaire) ([]byte, error) {
	data, err := yaml.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal questionnaire: %w", err)
	}
	return data, nil
}

func (q *Questionnaire) applyDefaults() {
	if q.ChannelPrefix == "" {
		q.ChannelPrefix = DefaultChannelPrefix
	}
	if q.CategoryName == "" {
		q.CategoryName = DefaultCategoryName
	}
	defaults := defaultMessages()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&q.Messages.Welcome, defaults.Welcome)
	fill(&q.Messages.Rejected, defaults.Rejected)
	fill(&q.Messages.TimedOut, defaults.TimedOut)
	fill(&q.Messages.Completed, defaults.Completed)
	fill(&q.Messages.NotYours, defaults.NotYours)
	fill(&q.Messages.AlreadyActive, defaults.AlreadyActive)
	fill(&q.Messages.Started, defaults.Started)
}

// Validate checks the structural rules every questionnaire must satisfy.
func (q Questionnaire) Validate() error {
	if len(q.Questions) == 0 {
		return errors.NewQuestionnaireInvalidError("at least one question is required")
	}
	if q.ChannelPrefix == "" || strings.ContainsAny(q.ChannelPrefix, " \t") ||
		strings.ToLower(q.ChannelPrefix) != q.ChannelPrefix {
		return errors.NewQuestionnaireInvalidError("channel_prefix must be non-empty, lowercase and without spaces")
	}
	if strings.TrimSpace(q.CategoryName) == "" {
		return errors.NewQuestionnaireInvalidError("category_name is required")
	}

	kinds := map[Kind]bool{}
	owners := map[string]Kind{}
	for i, question := range q.Questions {
		where := fmt.Sprintf("question %d (%s)", i+1, question.Kind)
		switch question.Kind {
		case KindAge, KindGender, KindRegion:
		default:
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: unknown kind", where))
		}
		if kinds[question.Kind] {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: duplicate kind", where))
		}
		kinds[question.Kind] = true

		if strings.TrimSpace(question.Prompt) == "" {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: prompt is required", where))
		}
		if err := validateChoices(where, question, owners); err != nil {
			return err
		}

		switch question.EffectiveControl() {
		case ControlButtons:
			if len(question.Choices) > MaxButtons {
				return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: at most %d buttons", where, MaxButtons))
			}
		case ControlSelect:
			if len(question.Choices) > MaxSelect {
				return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: at most %d select options", where, MaxSelect))
			}
		default:
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: unknown control %q", where, question.Control))
		}
	}

	for i, question := range q.Questions {
		if question.Derived == nil {
			continue
		}
		if question.Derived.Role == "" {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("question %d: derived role name is required", i+1))
		}
		if _, taken := owners[question.Derived.Role]; taken {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("question %d: derived role %q collides with an answer role", i+1, question.Derived.Role))
		}
	}
	if q.StartRole != "" {
		if _, taken := owners[q.StartRole]; taken {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("start_role %q collides with an answer role", q.StartRole))
		}
	}
	return nil
}

func validateChoices(where string, question Question, owners map[string]Kind) error {
	if len(question.Choices) < 2 {
		return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: at least two choices are required", where))
	}
	keys := map[string]bool{}
	answerable := 0
	for _, c := range question.Choices {
		if c.Key == "" || c.Label == "" {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: every choice needs a key and a label", where))
		}
		if keys[c.Key] {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: duplicate choice key %q", where, c.Key))
		}
		keys[c.Key] = true

		switch {
		case c.Reject && c.Role != "":
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: rejecting choice %q must not grant a role", where, c.Key))
		case !c.Reject && c.Role == "":
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: choice %q needs a role", where, c.Key))
		}
		if c.Reject {
			continue
		}
		answerable++
		if owner, taken := owners[c.Role]; taken && owner != question.Kind {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: role %q already belongs to %s", where, c.Role, owner))
		}
		owners[c.Role] = question.Kind
	}
	if answerable == 0 {
		return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: at least one choice must grant a role", where))
	}
	return nil
}

// ValidateReactions checks the extra rules of the reaction modality: every
// choice carries a distinct emoji and the platform's reaction cap holds.
func (q Questionnaire) ValidateReactions() error {
	for i, question := range q.Questions {
		where := fmt.Sprintf("question %d (%s)", i+1, question.Kind)
		if len(question.Choices) > MaxReactions {
			return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: at most %d reactions per message", where, MaxReactions))
		}
		seen := map[string]bool{}
		for _, c := range question.Choices {
			if c.Emoji == "" {
				return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: choice %q has no emoji", where, c.Key))
			}
			if seen[c.Emoji] {
				return errors.NewQuestionnaireInvalidError(fmt.Sprintf("%s: emoji %s used twice", where, c.Emoji))
			}
			seen[c.Emoji] = true
		}
	}
	return nil
}
