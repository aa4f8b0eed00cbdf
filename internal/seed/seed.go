package seed

import (
	"context"
	"log/slog"
)

// Summary counts what a seeding run created.
type Summary struct {
	Providers int
	Seekers   int
	Likes     int
	Mutual    int
}

// Seeder applies fixtures and generated data through a Factory.
type Seeder struct {
	factory *Factory
}

// NewSeeder creates a Seeder.
func NewSeeder(f *Factory) *Seeder {
	return &Seeder{factory: f}
}

// ApplyFixtures writes every fixture user, profile and like. Reapplying the
// same fixtures updates profiles and leaves existing likes alone.
func (s *Seeder) ApplyFixtures(ctx context.Context, fx *Fixtures) (Summary, error) {
	var sum Summary
	if err := fx.Validate(); err != nil {
		return sum, err
	}

	for _, p := range fx.Providers {
		if err := s.factory.saveProvider(ctx, p.contact(), p.profile()); err != nil {
			return sum, err
		}
		sum.Providers++
	}
	for _, sk := range fx.Seekers {
		if err := s.factory.saveSeeker(ctx, sk.contact(), sk.profile()); err != nil {
			return sum, err
		}
		sum.Seekers++
	}
	for _, l := range fx.Likes {
		if err := s.like(ctx, &sum, l.From, l.To); err != nil {
			return sum, err
		}
	}

	s.factory.log.InfoContext(ctx, "fixtures applied", summaryAttrs(sum)...)
	return sum, nil
}

// SeedRandom creates generated providers and seekers. Each seeker likes each
// provider with probability likeRatio and each liked provider likes back with
// the same probability.
func (s *Seeder) SeedRandom(ctx context.Context, providers, seekers int, likeRatio float64) (Summary, error) {
	var sum Summary

	providerIDs := make([]int64, 0, providers)
	for range providers {
		p, err := s.factory.CreateProvider(ctx)
		if err != nil {
			return sum, err
		}
		providerIDs = append(providerIDs, p.UserID)
		sum.Providers++
	}

	for range seekers {
		sk, err := s.factory.CreateSeeker(ctx)
		if err != nil {
			return sum, err
		}
		sum.Seekers++

		for _, pid := range providerIDs {
			if !s.factory.Chance(likeRatio) {
				continue
			}
			if err := s.like(ctx, &sum, sk.UserID, pid); err != nil {
				return sum, err
			}
			if s.factory.Chance(likeRatio) {
				if err := s.like(ctx, &sum, pid, sk.UserID); err != nil {
					return sum, err
				}
			}
		}
	}

	s.factory.log.InfoContext(ctx, "random data seeded", summaryAttrs(sum)...)
	return sum, nil
}

func (s *Seeder) like(ctx context.Context, sum *Summary, from, to int64) error {
	res, err := s.factory.CreateLike(ctx, from, to)
	if err != nil {
		return err
	}
	if res.Created {
		sum.Likes++
	}
	if res.Mutual {
		sum.Mutual++
	}
	return nil
}

func summaryAttrs(sum Summary) []any {
	return []any{
		slog.Int("providers", sum.Providers),
		slog.Int("seekers", sum.Seekers),
		slog.Int("likes", sum.Likes),
		slog.Int("mutual", sum.Mutual),
	}
}
