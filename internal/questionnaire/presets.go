package questionnaire

import (
	"fmt"
	"sort"
)

// Role names shared by the built-in presets.
const (
	DefaultAdminRole     = "Administracja"
	DefaultStartRole     = "Niezarejestrowany"
	DefaultAdultRole     = "Pełnoletni"
	DefaultChannelPrefix = "rejestracja-"
	DefaultCategoryName  = "Rejestracja"
)

// Voivodeships is the region choice set of the built-in presets.
var Voivodeships = []string{
	"Dolnośląskie",
	"Kujawsko-Pomorskie",
	"Lubelskie",
	"Lubuskie",
	"Łódzkie",
	"Małopolskie",
	"Mazowieckie",
	"Opolskie",
	"Podkarpackie",
	"Podlaskie",
	"Pomorskie",
	"Śląskie",
	"Świętokrzyskie",
	"Warmińsko-Mazurskie",
	"Wielkopolskie",
	"Zachodniopomorskie",
}

// GetPresets returns all built-in questionnaires keyed by name
func GetPresets() map[string]Questionnaire {
	return map[string]Questionnaire{
		"default":    DefaultPreset(),
		"reactions":  ReactionsPreset(),
		"age-region": AgeRegionPreset(),
	}
}

// Preset returns a copy of the named built-in questionnaire.
func Preset(name string) (Questionnaire, error) {
	p, ok := GetPresets()[name]
	if !ok {
		return Questionnaire{}, fmt.Errorf("unknown preset: %s", name)
	}
	return p, nil
}

// ListPresets returns all built-in questionnaires sorted by name
func ListPresets() []Questionnaire {
	presets := GetPresets()
	result := make([]Questionnaire, 0, len(presets))
	for _, p := range presets {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func defaultMessages() Messages {
	return Messages{
		Welcome: "Hej {mention}! 👋\n\nWitaj na serwerze! Zanim odblokuję Ci cały serwer, " +
			"odpowiedz proszę na kilka pytań.",
		Rejected: "❌ Niestety, aby korzystać z tego serwera musisz mieć **co najmniej 13 lat**.\n\n" +
			"Twoje konto nie otrzyma dostępu do pozostałych kanałów. " +
			"Jeśli to pomyłka, skontaktuj się z administracją.",
		TimedOut: "⌛ Czas na odpowiedź minął. Ten kanał zostanie za chwilę usunięty. " +
			"Aby spróbować ponownie, użyj komendy /rejestracja.",
		Completed: "✅ Zapisano: **{answer}**.\n\nTwoja rejestracja została zakończona, {mention}! 🎉\n" +
			"Za chwilę ten kanał zostanie usunięty.",
		NotYours:      "To nie jest Twoja rejestracja 😉",
		AlreadyActive: "Twoja rejestracja już trwa. Sprawdź swój kanał rejestracyjny.",
		Started:       "Rozpoczęto rejestrację. Sprawdź nowy kanał rejestracyjny.",
	}
}

func genderQuestion() Question {
	return Question{
		Kind:    KindGender,
		Prompt:  "Jaka jest Twoja płeć?",
		Ack:     "✅ Zapisano płeć.",
		Control: ControlButtons,
		Choices: []Choice{
			{Key: "male", Label: "Mężczyzna", Emoji: "👨", Role: "Mężczyzna", Style: StylePrimary},
			{Key: "female", Label: "Kobieta", Emoji: "👩", Role: "Kobieta", Style: StylePrimary},
			{Key: "other", Label: "Inna", Emoji: "🧑", Role: "Inna", Style: StyleSecondary},
		},
	}
}

func ageQuestion() Question {
	return Question{
		Kind:    KindAge,
		Prompt:  "Ile masz lat?",
		Ack:     "✅ Zapisano wiek.",
		Control: ControlButtons,
		Choices: []Choice{
			{Key: "under-13", Label: "Mam mniej niż 13 lat", Emoji: "⛔", Reject: true, Style: StyleDanger},
			{Key: "13-15", Label: "13-15", Emoji: "1️⃣", Role: "13-15", Style: StyleSuccess},
			{Key: "16-18", Label: "16-18", Emoji: "2️⃣", Role: "16-18", Style: StyleSuccess},
			{Key: "19-24", Label: "19-24", Emoji: "3️⃣", Role: "19-24", Privileged: true, Style: StylePrimary},
			{Key: "25+", Label: "25+", Emoji: "4️⃣", Role: "25+", Privileged: true, Style: StyleSecondary},
		},
		Derived: &DerivedRole{Role: DefaultAdultRole},
	}
}

func regionQuestion() Question {
	choices := make([]Choice, 0, len(Voivodeships))
	for i, name := range Voivodeships {
		choices = append(choices, Choice{
			Key:   name,
			Label: name,
			// Regional indicator letters A..P.
			Emoji: string(rune(0x1F1E6 + i)),
			Role:  name,
		})
	}
	return Question{
		Kind:        KindRegion,
		Prompt:      "Z jakiego województwa jesteś?",
		Ack:         "✅ Zapisano województwo.",
		Placeholder: "Wybierz swoje województwo...",
		Control:     ControlSelect,
		Choices:     choices,
	}
}

// DefaultPreset asks gender, age and region with clickable components.
func DefaultPreset() Questionnaire {
	return Questionnaire{
		Name:          "default",
		Description:   "Gender, age bracket and voivodeship answered with buttons and a select menu",
		ChannelPrefix: DefaultChannelPrefix,
		CategoryName:  DefaultCategoryName,
		AdminRole:     DefaultAdminRole,
		StartRole:     DefaultStartRole,
		Questions:     []Question{genderQuestion(), ageQuestion(), regionQuestion()},
		Messages:      defaultMessages(),
	}
}

// ReactionsPreset asks the same questions answered by emoji reactions.
func ReactionsPreset() Questionnaire {
	q := DefaultPreset()
	q.Name = "reactions"
	q.Description = "Gender, age bracket and voivodeship answered with emoji reactions"
	for i, question := range q.Questions {
		question.Prompt = question.Prompt + "\n" + reactionLegend(question)
		q.Questions[i] = question
	}
	return q
}

// AgeRegionPreset asks only age bracket and region.
func AgeRegionPreset() Questionnaire {
	q := DefaultPreset()
	q.Name = "age-region"
	q.Description = "Age bracket and voivodeship only"
	q.Questions = []Question{ageQuestion(), regionQuestion()}
	return q
}

func reactionLegend(question Question) string {
	legend := ""
	for _, c := range question.Choices {
		legend += fmt.Sprintf("\n%s %s", c.Emoji, c.Label)
	}
	return legend
}
