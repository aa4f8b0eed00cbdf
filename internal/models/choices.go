package models

// Choice is one reply token offered with a prompt. Label is what the user sees.
type Choice struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

// TextChoices turns plain labels into choices whose token is the label itself.
func TextChoices(labels ...string) []Choice {
	out := make([]Choice, len(labels))
	for i, l := range labels {
		out[i] = Choice{Token: l, Label: l}
	}
	return out
}

// RoleChoices are offered at the start of intake.
var RoleChoices = []Choice{
	{Token: string(RoleProvider), Label: "I am a psychologist"},
	{Token: string(RoleSeeker), Label: "I am looking for a psychologist"},
}

// GenderChoices are suggested for the gender prompt.
var GenderChoices = TextChoices("Male", "Female")

// ApproachChoices are suggested for the provider approach prompt.
var ApproachChoices = TextChoices(
	"CBT",
	"Psychoanalysis",
	"Gestalt",
	"Existential-humanistic",
	"Third-wave CBT",
	"Psychodrama",
	"Body-oriented therapy",
	"Other",
)

// PriceChoices are suggested for the provider price prompt.
var PriceChoices = TextChoices(
	"Free first consultation",
	"1000-2000 rub/session",
	"2000-3000 rub/session",
	"3000-5000 rub/session",
	"Negotiable",
)
