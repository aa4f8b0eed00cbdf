package service

import (
	"fmt"

	"psymatch/internal/models"
)

// card is the minimum needed to mention a user in a notification.
type card struct {
	ID    int64
	Role  models.Role
	Name  string
	Owner models.Owner
}

func (c card) title() string {
	name := c.Name
	if name == "" {
		name = c.Owner.DisplayName()
	}
	if name == "" {
		name = "Someone"
	}
	return name
}

func contactLine(c card) string {
	if h := c.Owner.HandleOrEmpty(); h != "" {
		return "Contact: @" + h
	}
	return fmt.Sprintf("%s has no public handle, so no contact is available yet. They can write to you directly.", c.title())
}

func matchNotice(partner card) string {
	return fmt.Sprintf("It's a match! %s (%s) liked you too.\n%s", partner.title(), partner.Role.Label(), contactLine(partner))
}

func newLikeNotice(liker card) string {
	return fmt.Sprintf("You have a new like from %s (%s). Open the deck to find them.", liker.title(), liker.Role.Label())
}

const (
	likeSentNotice     = "Like sent! We will tell you if it becomes mutual."
	alreadyLikedNotice = "You have already liked this profile."
)
