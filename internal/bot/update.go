package bot

import (
	"errors"
	"strings"

	"psymatch/internal/models"

	"github.com/go-playground/validator/v10"
)

// UpdateKind is the shape of an inbound transport event.
type UpdateKind string

const (
	KindCommand UpdateKind = "command"
	KindText    UpdateKind = "text"
	KindPhoto   UpdateKind = "photo"
	KindButton  UpdateKind = "button"
)

// Update is one inbound event as the transport gateway delivers it.
type Update struct {
	UserID    int64      `json:"user_id" validate:"required,gt=0"`
	Handle    string     `json:"handle,omitempty" validate:"max=64"`
	FirstName string     `json:"first_name,omitempty" validate:"max=128"`
	LastName  string     `json:"last_name,omitempty" validate:"max=128"`
	Kind      UpdateKind `json:"kind" validate:"required,oneof=command text photo button"`
	Command   string     `json:"command,omitempty" validate:"required_if=Kind command,max=32"`
	Text      string     `json:"text,omitempty" validate:"max=4096"`
	PhotoRef  string     `json:"photo_ref,omitempty" validate:"required_if=Kind photo,max=256"`
	Data      string     `json:"data,omitempty" validate:"required_if=Kind button,max=64"`
}

var validate = validator.New()

// Validate checks the update's shape. Failures are validation AppErrors.
func (u *Update) Validate() error {
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.NewValidationError("invalid update: "+strings.ToLower(fe.Field())+" failed "+fe.Tag(), err)
		}
		return models.NewValidationError("invalid update", err)
	}
	return nil
}

// Contact returns the sender identity carried by the update.
func (u *Update) Contact() models.Contact {
	return models.Contact{
		Handle:    models.StringPtr(strings.TrimPrefix(strings.TrimSpace(u.Handle), "@")),
		FirstName: models.StringPtr(strings.TrimSpace(u.FirstName)),
		LastName:  models.StringPtr(strings.TrimSpace(u.LastName)),
	}
}

// command normalizes "/Start@psymatch_bot" to "start".
func (u *Update) command() string {
	c := strings.TrimSpace(u.Command)
	c = strings.TrimPrefix(c, "/")
	if i := strings.IndexByte(c, '@'); i >= 0 {
		c = c[:i]
	}
	return strings.ToLower(c)
}
