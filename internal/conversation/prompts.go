package conversation

import (
	"fmt"
	"strings"

	"psymatch/internal/models"
)

// SkipToken is the choice token that skips an optional step.
const SkipToken = "skip"

const (
	finishToken = "finish"

	rolePromptText    = "Hi! I help psychologists and clients find each other.\n\nAre you a psychologist or a client?"
	notUnderstoodText = "I did not understand that. Please try again."
	intakeDoneText    = "Your profile is saved!"
	editDoneText      = "Editing finished."
	cancelledText     = "Cancelled. Use /start to open the menu."
	failedText        = "Something went wrong and the conversation was closed. Use /start to try again."
	noProfileText     = "You do not have a profile yet. Use /start to create one."
	editMenuText      = "What would you like to change?"
	photoRemovedText  = "Photo removed."
)

var skipChoice = models.Choice{Token: SkipToken, Label: "Skip"}

var fieldLabels = map[models.Field]string{
	models.FieldName:      "Name",
	models.FieldGender:    "Gender",
	models.FieldAge:       "Age",
	models.FieldEducation: "Education",
	models.FieldAbout:     "About",
	models.FieldApproach:  "Approach",
	models.FieldFocus:     "Focus",
	models.FieldPrice:     "Price",
	models.FieldPhoto:     "Photo",
	models.FieldRequest:   "Request",
}

// FieldLabel is the human name of a profile field.
func FieldLabel(f models.Field) string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// fieldChoices are the suggested replies for fields with a catalog.
func fieldChoices(f models.Field) []models.Choice {
	switch f {
	case models.FieldGender:
		return models.GenderChoices
	case models.FieldApproach:
		return models.ApproachChoices
	case models.FieldPrice:
		return models.PriceChoices
	case models.FieldPhoto:
		return []models.Choice{skipChoice}
	}
	return nil
}

var intakeQuestions = map[State]string{
	StateProviderName:      "Great, you are a psychologist. Let's fill in your profile.\n\nWhat is your name?",
	StateProviderGender:    "Select your gender:",
	StateProviderAge:       "How old are you?",
	StateProviderEducation: "Tell us about your education, including any additional training:",
	StateProviderAbout:     "Tell clients a little about yourself:",
	StateProviderApproach:  "Which therapeutic approach do you work in?",
	StateProviderFocus:     "Which requests do you work with?",
	StateProviderPrice:     "How much does a session cost?",
	StateProviderPhoto:     "Send a photo for your profile, or /skip to continue without one.",
	StateSeekerName:        "Great, you are looking for a psychologist. Let's fill in your profile.\n\nWhat is your name?",
	StateSeekerGender:      "Select your gender:",
	StateSeekerAge:         "How old are you?",
	StateSeekerRequest:     "Describe what you would like help with:",
}

func editMenuChoices(role models.Role) []models.Choice {
	fields := models.FieldsFor(role)
	out := make([]models.Choice, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, models.Choice{Token: string(f), Label: FieldLabel(f)})
	}
	return append(out, models.Choice{Token: finishToken, Label: "Finish editing"})
}

// promptFor renders the question asked on entering state s.
func promptFor(s *Session) (string, []models.Choice) {
	switch s.State {
	case StateAwaitingRole:
		return rolePromptText, models.RoleChoices
	case StateEditMenu:
		return editMenuText, editMenuChoices(s.Role)
	}

	if q, ok := intakeQuestions[s.State]; ok {
		return q, fieldChoices(transitions[s.State].Field)
	}

	t, ok := transitions[s.State]
	if !ok {
		return notUnderstoodText, nil
	}
	if t.Field == models.FieldPhoto {
		return "Send a new photo, or /skip to remove the current one.", fieldChoices(t.Field)
	}
	current := s.Draft[t.Field]
	if current == "" {
		current = "not set"
	}
	return fmt.Sprintf("Current %s: %s\nEnter a new value:", strings.ToLower(FieldLabel(t.Field)), current), fieldChoices(t.Field)
}

func updatedText(f models.Field) string {
	return FieldLabel(f) + " updated."
}

// matchChoice resolves text against the tokens and labels of choices.
func matchChoice(text string, choices []models.Choice) (string, bool) {
	text = strings.TrimSpace(text)
	for _, c := range choices {
		if strings.EqualFold(text, c.Token) || strings.EqualFold(text, c.Label) {
			return c.Token, true
		}
	}
	return "", false
}

func parseRole(text string) (models.Role, bool) {
	if tok, ok := matchChoice(text, models.RoleChoices); ok {
		return models.Role(tok), true
	}
	for _, r := range []models.Role{models.RoleProvider, models.RoleSeeker} {
		if strings.EqualFold(strings.TrimSpace(text), r.Label()) {
			return r, true
		}
	}
	return "", false
}
