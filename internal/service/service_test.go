package service

import (
	"context"
	"sync"
	"testing"

	"psymatch/internal/models"
	"psymatch/internal/repository"
	"psymatch/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentNotice struct {
	UserID int64
	Text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{UserID: userID, Text: text})
}

func (n *recordingNotifier) to(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s.Text)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	profiles repository.ProfileRepository
	likes    repository.LikeRepository
	viewed   repository.ViewedRepository
	notifier *recordingNotifier
	deck     *Deck
	matches  *MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &fixture{
		db:       db,
		profiles: repository.NewProfileRepository(db),
		likes:    repository.NewLikeRepository(db),
		viewed:   repository.NewViewedRepository(db),
		notifier: &recordingNotifier{},
	}
	f.deck = NewDeck(f.profiles, f.likes, f.viewed)
	f.matches = NewMatchService(f.profiles, f.likes, f.notifier)
	return f
}

func (f *fixture) provider(t *testing.T, id int64, name, handle string) *models.User {
	t.Helper()
	u := testutil.SeedUser(t, f.db, id, models.RoleProvider, handle)
	require.NoError(t, f.profiles.UpsertProviderProfile(context.Background(), &models.ProviderProfile{
		UserID: id, Name: name, Gender: "Female", Age: "40", Education: "e", About: "a",
		Approach: "CBT", Focus: "f", Price: "Negotiable",
	}))
	return u
}

func (f *fixture) seeker(t *testing.T, id int64, name, handle string) *models.User {
	t.Helper()
	u := testutil.SeedUser(t, f.db, id, models.RoleSeeker, handle)
	require.NoError(t, f.profiles.UpsertSeekerProfile(context.Background(), &models.SeekerProfile{
		UserID: id, Name: name, Gender: "Male", Age: "30", Request: "r",
	}))
	return u
}
