// Package service holds the matching logic: the candidate deck and the like flow.
package service

import (
	"context"

	"psymatch/internal/models"
	"psymatch/internal/observability"
	"psymatch/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Draw is the result of asking the deck for the next candidate.
// A nil Candidate means the deck is exhausted for this viewer.
type Draw struct {
	Candidate *models.Candidate
}

// Exhausted reports whether no candidate is left until views are reset or new
// profiles register.
func (d Draw) Exhausted() bool {
	return d.Candidate == nil
}

// Deck selects the next unseen, not-yet-liked candidate of the opposite role.
type Deck struct {
	profiles repository.ProfileRepository
	likes    repository.LikeRepository
	viewed   repository.ViewedRepository
}

// NewDeck returns a new Deck.
func NewDeck(profiles repository.ProfileRepository, likes repository.LikeRepository, viewed repository.ViewedRepository) *Deck {
	return &Deck{profiles: profiles, likes: likes, viewed: viewed}
}

// Next returns the first eligible candidate in primary key order and marks it as
// viewed before returning it.
func (d *Deck) Next(ctx context.Context, viewer *models.User) (Draw, error) {
	span, ctx := observability.StartSpan(ctx, "deck.next",
		attribute.Int64("viewer.id", viewer.ID),
		attribute.String("viewer.role", string(viewer.Role)),
	)
	defer span.End()

	seen, err := d.viewed.Viewed(ctx, viewer.ID)
	if err != nil {
		span.SetError(err)
		return Draw{}, err
	}
	liked, err := d.likes.OutgoingTargets(ctx, viewer.ID)
	if err != nil {
		span.SetError(err)
		return Draw{}, err
	}

	eligible := func(id int64) bool {
		return id != viewer.ID && !seen.Has(id) && !liked.Has(id)
	}

	var candidate *models.Candidate
	switch viewer.Role.Complement() {
	case models.RoleProvider:
		pool, err := d.profiles.ListProviders(ctx)
		if err != nil {
			span.SetError(err)
			return Draw{}, err
		}
		for i := range pool {
			if eligible(pool[i].UserID) {
				candidate = &models.Candidate{UserID: pool[i].UserID, Role: models.RoleProvider, Provider: &pool[i]}
				break
			}
		}
	case models.RoleSeeker:
		pool, err := d.profiles.ListSeekers(ctx)
		if err != nil {
			span.SetError(err)
			return Draw{}, err
		}
		for i := range pool {
			if eligible(pool[i].UserID) {
				candidate = &models.Candidate{UserID: pool[i].UserID, Role: models.RoleSeeker, Seeker: &pool[i]}
				break
			}
		}
	}

	if candidate == nil {
		observability.DeckDrawsTotal.WithLabelValues("exhausted").Inc()
		return Draw{}, nil
	}

	if err := d.viewed.MarkViewed(ctx, viewer.ID, candidate.UserID); err != nil {
		span.SetError(err)
		return Draw{}, err
	}
	observability.DeckDrawsTotal.WithLabelValues("candidate").Inc()
	span.AddAttributes(attribute.Int64("candidate.id", candidate.UserID))
	return Draw{Candidate: candidate}, nil
}

// ResetViews makes every previously shown candidate eligible again for the viewer.
func (d *Deck) ResetViews(ctx context.Context, viewerID int64) (int64, error) {
	return d.viewed.ResetViewed(ctx, viewerID)
}
