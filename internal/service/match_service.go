package service

import (
	"context"
	"log/slog"

	"psymatch/internal/models"
	"psymatch/internal/observability"
	"psymatch/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Notifier delivers plain text to a user. Delivery failures are the notifier's
// concern; callers never see them.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string)
}

// IncomingLike is a like received by the user, with the liker's profile name.
type IncomingLike struct {
	models.Liker
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

// MatchService runs the like flow and answers match and statistics queries.
type MatchService struct {
	profiles repository.ProfileRepository
	likes    repository.LikeRepository
	notifier Notifier
}

// NewMatchService returns a new MatchService.
func NewMatchService(profiles repository.ProfileRepository, likes repository.LikeRepository, notifier Notifier) *MatchService {
	return &MatchService{profiles: profiles, likes: likes, notifier: notifier}
}

// Like records likerID → targetID and tells the users involved. On a new mutual
// like both sides get a match notice; on a one-sided like the target learns who
// liked them. The like is kept even when a notification cannot be delivered.
func (s *MatchService) Like(ctx context.Context, likerID, targetID int64) (models.LikeResult, error) {
	span, ctx := observability.StartSpan(ctx, "match.like",
		attribute.Int64("liker.id", likerID),
		attribute.Int64("target.id", targetID),
	)
	defer span.End()

	res, err := s.likes.CreateLike(ctx, likerID, targetID)
	if err != nil {
		observability.LikesTotal.WithLabelValues("error").Inc()
		span.SetError(err)
		return res, err
	}

	switch {
	case !res.Created:
		observability.LikesTotal.WithLabelValues("duplicate").Inc()
		s.notifier.Notify(ctx, likerID, alreadyLikedNotice)
		return res, nil
	case res.Mutual:
		observability.LikesTotal.WithLabelValues("mutual").Inc()
	default:
		observability.LikesTotal.WithLabelValues("created").Inc()
	}
	span.AddAttributes(attribute.Bool("like.mutual", res.Mutual))

	liker, err := s.card(ctx, likerID)
	if err != nil {
		s.logNoticeSkipped(ctx, err)
		return res, nil
	}
	target, err := s.card(ctx, targetID)
	if err != nil {
		s.logNoticeSkipped(ctx, err)
		return res, nil
	}

	if res.Mutual {
		s.notifier.Notify(ctx, likerID, matchNotice(target))
		s.notifier.Notify(ctx, targetID, matchNotice(liker))
		return res, nil
	}
	s.notifier.Notify(ctx, likerID, likeSentNotice)
	s.notifier.Notify(ctx, targetID, newLikeNotice(liker))
	return res, nil
}

// The like is already committed; failing to load names must not turn it into an error.
func (s *MatchService) logNoticeSkipped(ctx context.Context, err error) {
	observability.LogAsyncOperationError(ctx, "like_notice", err, slog.String("reason", "card lookup failed"))
}

func (s *MatchService) card(ctx context.Context, userID int64) (card, error) {
	user, err := s.profiles.GetUser(ctx, userID)
	if err != nil {
		return card{}, err
	}
	if user == nil {
		return card{}, models.NewNotFoundError("User", userID, models.ErrUserMissing)
	}
	c := card{
		ID:    user.ID,
		Role:  user.Role,
		Owner: models.Owner{Handle: user.Handle, FirstName: user.FirstName, LastName: user.LastName},
	}

	switch user.Role {
	case models.RoleProvider:
		p, err := s.profiles.GetProviderProfile(ctx, userID)
		if err != nil {
			return card{}, err
		}
		if p != nil {
			c.Name = p.Name
		}
	case models.RoleSeeker:
		p, err := s.profiles.GetSeekerProfile(ctx, userID)
		if err != nil {
			return card{}, err
		}
		if p != nil {
			c.Name = p.Name
		}
	}
	return c, nil
}

// Matches lists the user's mutual partners, newest first.
func (s *MatchService) Matches(ctx context.Context, userID int64) ([]models.MutualPartner, error) {
	return s.likes.MutualPartners(ctx, userID)
}

// IncomingLikes lists who liked the user, newest first, with their profile names.
func (s *MatchService) IncomingLikes(ctx context.Context, userID int64) ([]IncomingLike, error) {
	likers, err := s.likes.IncomingLikers(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]IncomingLike, 0, len(likers))
	for _, l := range likers {
		c, err := s.card(ctx, l.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, IncomingLike{Liker: l, Name: c.title(), Role: c.Role})
	}
	return out, nil
}

// UserStats returns the per-user aggregates.
func (s *MatchService) UserStats(ctx context.Context, user *models.User) (models.UserStats, error) {
	given, received, mutual, err := s.likes.UserCounts(ctx, user.ID)
	if err != nil {
		return models.UserStats{}, err
	}
	return models.UserStats{
		Role:          user.Role,
		LikesGiven:    given,
		LikesReceived: received,
		Mutual:        mutual,
	}, nil
}

// GlobalStats returns service-wide counts. They are read without locking and may
// lag concurrent writes slightly.
func (s *MatchService) GlobalStats(ctx context.Context) (models.GlobalStats, error) {
	providers, seekers, err := s.profiles.CountProfiles(ctx)
	if err != nil {
		return models.GlobalStats{}, err
	}
	total, err := s.likes.CountLikes(ctx)
	if err != nil {
		return models.GlobalStats{}, err
	}
	pairs, err := s.likes.CountMutualPairs(ctx)
	if err != nil {
		return models.GlobalStats{}, err
	}
	return models.GlobalStats{
		Providers:   providers,
		Seekers:     seekers,
		TotalLikes:  total,
		MutualPairs: pairs,
	}, nil
}
