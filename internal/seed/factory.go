// Package seed creates demo users, profiles and likes for development
// databases. Profiles are written through the repositories so seeded rows look
// exactly like ones produced by intake.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"psymatch/internal/models"
	"psymatch/internal/observability"
	"psymatch/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultStartID is the first synthetic user id handed out by a Factory.
const DefaultStartID int64 = 1_000_000

// Options tunes a Factory.
type Options struct {
	// Seed makes generated content reproducible. Zero uses the clock.
	Seed int64
	// StartID is the first synthetic user id.
	StartID int64
	// DryRun builds entities without writing them.
	DryRun bool
}

// Factory builds users and profiles and persists them.
type Factory struct {
	profiles repository.ProfileRepository
	likes    repository.LikeRepository
	fake     *gofakeit.Faker
	opts     Options
	nextID   int64
	log      *slog.Logger
}

// NewFactory creates a Factory writing through the given repositories.
func NewFactory(profiles repository.ProfileRepository, likes repository.LikeRepository, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.StartID <= 0 {
		opts.StartID = DefaultStartID
	}
	return &Factory{
		profiles: profiles,
		likes:    likes,
		fake:     gofakeit.New(seed),
		opts:     opts,
		nextID:   opts.StartID,
		log:      observability.GlobalLogger,
	}
}

var (
	educations = []string{
		"Moscow State University, clinical psychology",
		"Saint Petersburg State University, psychology",
		"HSE University, counselling psychology",
		"Institute of Practical Psychology",
		"Kazan Federal University, psychology",
	}

	focusAreas = []string{
		"anxiety and panic attacks",
		"relationships and family conflicts",
		"burnout and work stress",
		"grief and loss",
		"self-esteem",
		"depression",
		"parenting",
	}

	requests = []string{
		"I feel anxious most of the day",
		"Trouble in my relationship",
		"Burnout at work",
		"I want to understand myself better",
		"Coping with a loss",
		"Sleep problems and constant worry",
	}
)

func (f *Factory) next() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *Factory) contact() models.Contact {
	handle := f.fake.Username() + strconv.Itoa(f.fake.Number(10, 99))
	first := f.fake.FirstName()
	last := f.fake.LastName()
	return models.Contact{Handle: &handle, FirstName: &first, LastName: &last}
}

func labels(choices []models.Choice) []string {
	out := make([]string, len(choices))
	for i, c := range choices {
		out[i] = c.Label
	}
	return out
}

// BuildProvider returns a generated provider profile without persisting it.
func (f *Factory) BuildProvider(id int64) *models.ProviderProfile {
	p := &models.ProviderProfile{
		UserID:    id,
		Name:      f.fake.FirstName(),
		Gender:    f.fake.RandomString(labels(models.GenderChoices)),
		Age:       strconv.Itoa(f.fake.Number(25, 65)),
		Education: f.fake.RandomString(educations),
		About:     f.fake.Sentence(12),
		Approach:  f.fake.RandomString(labels(models.ApproachChoices)),
		Focus:     f.fake.RandomString(focusAreas),
		Price:     f.fake.RandomString(labels(models.PriceChoices)),
	}
	if f.fake.Bool() {
		p.PhotoRef = models.StringPtr("seed-photo-" + f.fake.UUID())
	}
	return p
}

// BuildSeeker returns a generated seeker profile without persisting it.
func (f *Factory) BuildSeeker(id int64) *models.SeekerProfile {
	return &models.SeekerProfile{
		UserID:  id,
		Name:    f.fake.FirstName(),
		Gender:  f.fake.RandomString(labels(models.GenderChoices)),
		Age:     strconv.Itoa(f.fake.Number(18, 70)),
		Request: f.fake.RandomString(requests),
	}
}

// CreateProvider registers a provider user with a generated profile.
// Overrides run before the profile is saved.
func (f *Factory) CreateProvider(ctx context.Context, overrides ...func(*models.ProviderProfile)) (*models.ProviderProfile, error) {
	p := f.BuildProvider(f.next())
	for _, override := range overrides {
		override(p)
	}
	return p, f.saveProvider(ctx, f.contact(), p)
}

// CreateSeeker registers a seeker user with a generated profile.
func (f *Factory) CreateSeeker(ctx context.Context, overrides ...func(*models.SeekerProfile)) (*models.SeekerProfile, error) {
	s := f.BuildSeeker(f.next())
	for _, override := range overrides {
		override(s)
	}
	return s, f.saveSeeker(ctx, f.contact(), s)
}

func (f *Factory) saveProvider(ctx context.Context, contact models.Contact, p *models.ProviderProfile) error {
	if f.opts.DryRun {
		f.log.InfoContext(ctx, "[dry-run] provider", slog.Int64("user_id", p.UserID), slog.String("name", p.Name))
		return nil
	}
	if _, err := f.profiles.CreateOrReplaceUser(ctx, p.UserID, contact, models.RoleProvider); err != nil {
		return fmt.Errorf("create provider user %d: %w", p.UserID, err)
	}
	if err := f.profiles.UpsertProviderProfile(ctx, p); err != nil {
		return fmt.Errorf("save provider profile %d: %w", p.UserID, err)
	}
	return nil
}

func (f *Factory) saveSeeker(ctx context.Context, contact models.Contact, s *models.SeekerProfile) error {
	if f.opts.DryRun {
		f.log.InfoContext(ctx, "[dry-run] seeker", slog.Int64("user_id", s.UserID), slog.String("name", s.Name))
		return nil
	}
	if _, err := f.profiles.CreateOrReplaceUser(ctx, s.UserID, contact, models.RoleSeeker); err != nil {
		return fmt.Errorf("create seeker user %d: %w", s.UserID, err)
	}
	if err := f.profiles.UpsertSeekerProfile(ctx, s); err != nil {
		return fmt.Errorf("save seeker profile %d: %w", s.UserID, err)
	}
	return nil
}

// CreateLike records a like through the like graph.
func (f *Factory) CreateLike(ctx context.Context, from, to int64) (models.LikeResult, error) {
	if f.opts.DryRun {
		return models.LikeResult{Created: true}, nil
	}
	res, err := f.likes.CreateLike(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("like %d -> %d: %w", from, to, err)
	}
	return res, nil
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.fake.Float64() < p
}
