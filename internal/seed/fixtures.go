package seed

import (
	"errors"
	"fmt"
	"io"
	"os"

	"psymatch/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written data set loaded from YAML.
type Fixtures struct {
	Providers []ProviderFixture `yaml:"providers"`
	Seekers   []SeekerFixture   `yaml:"seekers"`
	Likes     []LikeFixture     `yaml:"likes"`
}

// ProviderFixture describes one psychologist.
type ProviderFixture struct {
	ID        int64  `yaml:"id"`
	Handle    string `yaml:"handle"`
	Name      string `yaml:"name"`
	Gender    string `yaml:"gender"`
	Age       string `yaml:"age"`
	Education string `yaml:"education"`
	About     string `yaml:"about"`
	Approach  string `yaml:"approach"`
	Focus     string `yaml:"focus"`
	Price     string `yaml:"price"`
	Photo     string `yaml:"photo"`
}

// SeekerFixture describes one client.
type SeekerFixture struct {
	ID      int64  `yaml:"id"`
	Handle  string `yaml:"handle"`
	Name    string `yaml:"name"`
	Gender  string `yaml:"gender"`
	Age     string `yaml:"age"`
	Request string `yaml:"request"`
}

// LikeFixture is a directed like between two fixture users.
type LikeFixture struct {
	From int64 `yaml:"from"`
	To   int64 `yaml:"to"`
}

// LoadFixtures decodes fixtures from r. Unknown keys are rejected.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixtureFile reads fixtures from a YAML file.
func LoadFixtureFile(path string) (*Fixtures, error) {
	f, err := os.Open(path) // #nosec G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadFixtures(f)
}

// Validate checks ids are positive and unique and that likes join known users.
func (fx *Fixtures) Validate() error {
	seen := make(map[int64]struct{}, len(fx.Providers)+len(fx.Seekers))
	add := func(kind string, id int64) error {
		if id <= 0 {
			return fmt.Errorf("%s fixture has invalid id %d", kind, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("fixture id %d is used twice", id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, p := range fx.Providers {
		if err := add("provider", p.ID); err != nil {
			return err
		}
	}
	for _, s := range fx.Seekers {
		if err := add("seeker", s.ID); err != nil {
			return err
		}
	}
	for _, l := range fx.Likes {
		if l.From == l.To {
			return fmt.Errorf("like fixture %d -> %d: %w", l.From, l.To, models.ErrSelfLike)
		}
		for _, id := range []int64{l.From, l.To} {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("like fixture references unknown user %d", id)
			}
		}
	}
	return nil
}

func (p ProviderFixture) contact() models.Contact {
	return models.Contact{Handle: models.StringPtr(p.Handle), FirstName: models.StringPtr(p.Name)}
}

func (p ProviderFixture) profile() *models.ProviderProfile {
	return &models.ProviderProfile{
		UserID:    p.ID,
		Name:      p.Name,
		Gender:    p.Gender,
		Age:       p.Age,
		Education: p.Education,
		About:     p.About,
		Approach:  p.Approach,
		Focus:     p.Focus,
		Price:     p.Price,
		PhotoRef:  models.StringPtr(p.Photo),
	}
}

func (s SeekerFixture) contact() models.Contact {
	return models.Contact{Handle: models.StringPtr(s.Handle), FirstName: models.StringPtr(s.Name)}
}

func (s SeekerFixture) profile() *models.SeekerProfile {
	return &models.SeekerProfile{
		UserID:  s.ID,
		Name:    s.Name,
		Gender:  s.Gender,
		Age:     s.Age,
		Request: s.Request,
	}
}
