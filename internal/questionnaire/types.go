package questionnaire

import (
	"strings"
)

// Kind identifies what a question asks about. Each kind maps to one
// exclusive role category.
type Kind string

const (
	KindAge    Kind = "age"
	KindGender Kind = "gender"
	KindRegion Kind = "region"
)

// Control selects how a question is rendered when answered through
// clickable components.
type Control string

const (
	ControlAuto    Control = ""
	ControlButtons Control = "buttons"
	ControlSelect  Control = "select"
)

// Style is a rendering hint for button choices.
type Style string

const (
	StylePrimary   Style = "primary"
	StyleSecondary Style = "secondary"
	StyleSuccess   Style = "success"
	StyleDanger    Style = "danger"
)

// Limits imposed by the chat platform on a single message.
const (
	MaxButtons   = 25
	MaxSelect    = 25
	MaxReactions = 20
	// autoSelectThreshold is the choice count above which ControlAuto
	// renders a select menu instead of buttons.
	autoSelectThreshold = 5
)

// Choice is one answer option.
type Choice struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Emoji string `yaml:"emoji,omitempty"`
	Style Style  `yaml:"style,omitempty"`
	// Role is the exclusive role granted for this answer. Empty only for
	// rejecting choices.
	Role string `yaml:"role,omitempty"`
	// Reject ends the session without further grants.
	Reject bool `yaml:"reject,omitempty"`
	// Privileged drives the question's derived role, if any.
	Privileged bool `yaml:"privileged,omitempty"`
}

// DerivedRole is an additive role whose presence follows the Privileged
// flag of the chosen answer.
type DerivedRole struct {
	Role string `yaml:"role"`
}

// Question represents a single step of the onboarding questionnaire
type Question struct {
	Kind        Kind         `yaml:"kind"`
	Prompt      string       `yaml:"prompt"`
	Ack         string       `yaml:"ack,omitempty"`
	Placeholder string       `yaml:"placeholder,omitempty"`
	Control     Control      `yaml:"control,omitempty"`
	Choices     []Choice     `yaml:"choices"`
	Derived     *DerivedRole `yaml:"derived,omitempty"`
}

// Choice returns the choice with the given key.
func (q Question) Choice(key string) (Choice, bool) {
	for _, c := range q.Choices {
		if c.Key == key {
			return c, true
		}
	}
	return Choice{}, false
}

// ChoiceByEmoji returns the choice bound to emoji.
func (q Question) ChoiceByEmoji(emoji string) (Choice, bool) {
	if emoji == "" {
		return Choice{}, false
	}
	for _, c := range q.Choices {
		if c.Emoji == emoji {
			return c, true
		}
	}
	return Choice{}, false
}

// RoleNames lists the exclusive roles this question can grant, in choice order.
func (q Question) RoleNames() []string {
	names := make([]string, 0, len(q.Choices))
	for _, c := range q.Choices {
		if c.Role != "" {
			names = append(names, c.Role)
		}
	}
	return names
}

// EffectiveControl resolves ControlAuto against the number of choices.
func (q Question) EffectiveControl() Control {
	if q.Control != ControlAuto {
		return q.Control
	}
	if len(q.Choices) > autoSelectThreshold {
		return ControlSelect
	}
	return ControlButtons
}

// Messages holds the user-facing texts of a session. Templates may use
// {mention} and {answer}.
type Messages struct {
	Welcome       string `yaml:"welcome"`
	Rejected      string `yaml:"rejected"`
	TimedOut      string `yaml:"timed_out"`
	Completed     string `yaml:"completed"`
	NotYours      string `yaml:"not_yours"`
	AlreadyActive string `yaml:"already_active"`
	Started       string `yaml:"started"`
}

// Questionnaire is the static onboarding configuration. It is built once at
// startup and treated as read-only afterwards.
type Questionnaire struct {
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description,omitempty"`
	ChannelPrefix string     `yaml:"channel_prefix"`
	CategoryName  string     `yaml:"category_name"`
	AdminRole     string     `yaml:"admin_role,omitempty"`
	StartRole     string     `yaml:"start_role,omitempty"`
	Questions     []Question `yaml:"questions"`
	Messages      Messages   `yaml:"messages"`
}

// ChannelName is the deterministic private channel name for a member.
func (q Questionnaire) ChannelName(memberID string) string {
	return q.ChannelPrefix + memberID
}

// Question returns the question of the given kind.
func (q Questionnaire) Question(kind Kind) (Question, bool) {
	for _, question := range q.Questions {
		if question.Kind == kind {
			return question, true
		}
	}
	return Question{}, false
}

// RegisteredRoles lists the roles whose presence marks a member as already
// onboarded: any age or region role. Questionnaires without either kind fall
// back to every exclusive role.
func (q Questionnaire) RegisteredRoles() []string {
	var names []string
	for _, question := range q.Questions {
		if question.Kind == KindAge || question.Kind == KindRegion {
			names = append(names, question.RoleNames()...)
		}
	}
	if len(names) > 0 {
		return names
	}
	for _, question := range q.Questions {
		names = append(names, question.RoleNames()...)
	}
	return names
}

// Clone returns a deep copy so callers can hand out questions without
// sharing backing arrays.
func (q Questionnaire) Clone() Questionnaire {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Choices = append([]Choice(nil), question.Choices...)
		if question.Derived != nil {
			derived := *question.Derived
			question.Derived = &derived
		}
		out.Questions[i] = question
	}
	return out
}

// Format expands {mention} and {answer} in tmpl.
func Format(tmpl, mention, answer string) string {
	return strings.NewReplacer("{mention}", mention, "{answer}", answer).Replace(tmpl)
}
