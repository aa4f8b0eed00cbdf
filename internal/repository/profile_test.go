package repository

import (
	"context"
	"testing"

	"psymatch/internal/models"
	"psymatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func sampleProvider(id int64) *models.ProviderProfile {
	return &models.ProviderProfile{
		UserID:    id,
		Name:      "Anna",
		Gender:    "Female",
		Age:       "35",
		Education: "MSU, clinical psychology",
		About:     "Ten years of practice",
		Approach:  "CBT",
		Focus:     "Anxiety",
		Price:     "2000-3000 rub/session",
		PhotoRef:  strp("photo-abc"),
	}
}

func TestProfileRepository_Users(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	t.Run("GetUser on unknown id returns nil", func(t *testing.T) {
		u, err := repo.GetUser(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("create then refresh keeps role and registration time", func(t *testing.T) {
		created, err := repo.CreateOrReplaceUser(ctx, 1, models.Contact{Handle: strp("anna"), FirstName: strp("Anna")}, models.RoleProvider)
		require.NoError(t, err)
		assert.Equal(t, models.RoleProvider, created.Role)

		refreshed, err := repo.CreateOrReplaceUser(ctx, 1, models.Contact{FirstName: strp("Anna"), LastName: strp("P")}, models.RoleProvider)
		require.NoError(t, err)
		assert.Nil(t, refreshed.Handle)
		assert.Equal(t, "P", *refreshed.LastName)
		assert.True(t, created.RegisteredAt.Equal(refreshed.RegisteredAt))

		got, err := repo.GetUser(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.Handle)
	})

	t.Run("role cannot change", func(t *testing.T) {
		_, err := repo.CreateOrReplaceUser(ctx, 1, models.Contact{}, models.RoleSeeker)
		require.ErrorIs(t, err, models.ErrRoleMismatch)
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := repo.CreateOrReplaceUser(ctx, 2, models.Contact{}, models.Role("admin"))
		assert.True(t, models.HasCode(err, models.CodeValidation))
	})

	t.Run("TouchLastActive moves the timestamp forward", func(t *testing.T) {
		before, err := repo.GetUser(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, repo.TouchLastActive(ctx, 1))
		after, err := repo.GetUser(ctx, 1)
		require.NoError(t, err)
		assert.False(t, after.LastActiveAt.Before(before.LastActiveAt))
		assert.NoError(t, repo.TouchLastActive(ctx, 999))
	})
}

func TestProfileRepository_Profiles(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	testutil.SeedUser(t, db, 10, models.RoleProvider, "doc")
	testutil.SeedUser(t, db, 20, models.RoleSeeker, "")

	t.Run("provider upsert and read joins owner", func(t *testing.T) {
		require.NoError(t, repo.UpsertProviderProfile(ctx, sampleProvider(10)))

		p, err := repo.GetProviderProfile(ctx, 10)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Anna", p.Name)
		assert.Equal(t, "photo-abc", *p.PhotoRef)
		assert.Equal(t, "doc", p.Owner.HandleOrEmpty())
		assert.Equal(t, "User10", p.Owner.DisplayName())
	})

	t.Run("upsert replaces the whole record", func(t *testing.T) {
		next := sampleProvider(10)
		next.Price = "Negotiable"
		next.PhotoRef = nil
		require.NoError(t, repo.UpsertProviderProfile(ctx, next))

		p, err := repo.GetProviderProfile(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "Negotiable", p.Price)
		assert.Nil(t, p.PhotoRef)

		var count int64
		require.NoError(t, db.Model(&models.ProviderProfile{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("profile kind must match role", func(t *testing.T) {
		err := repo.UpsertProviderProfile(ctx, sampleProvider(20))
		assert.ErrorIs(t, err, models.ErrRoleMismatch)

		err = repo.UpsertSeekerProfile(ctx, &models.SeekerProfile{UserID: 10, Name: "x"})
		assert.ErrorIs(t, err, models.ErrRoleMismatch)
	})

	t.Run("profile for unknown user", func(t *testing.T) {
		err := repo.UpsertSeekerProfile(ctx, &models.SeekerProfile{UserID: 77})
		assert.ErrorIs(t, err, models.ErrUserMissing)
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("seeker upsert and read", func(t *testing.T) {
		require.NoError(t, repo.UpsertSeekerProfile(ctx, &models.SeekerProfile{
			UserID: 20, Name: "Ivan", Gender: "Male", Age: "28", Request: "burnout",
		}))
		s, err := repo.GetSeekerProfile(ctx, 20)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "burnout", s.Request)
		assert.Nil(t, s.Owner.Handle)

		missing, err := repo.GetSeekerProfile(ctx, 10)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("count profiles", func(t *testing.T) {
		providers, seekers, err := repo.CountProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), providers)
		assert.Equal(t, int64(1), seekers)
	})
}

func TestProfileRepository_ListInPrimaryKeyOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	for _, id := range []int64{30, 5, 17} {
		testutil.SeedUser(t, db, id, models.RoleProvider, "")
		require.NoError(t, repo.UpsertProviderProfile(ctx, sampleProvider(id)))
	}
	testutil.SeedUser(t, db, 3, models.RoleSeeker, "")
	require.NoError(t, repo.UpsertSeekerProfile(ctx, &models.SeekerProfile{UserID: 3, Name: "S"}))

	providers, err := repo.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 3)
	assert.Equal(t, []int64{5, 17, 30}, []int64{providers[0].UserID, providers[1].UserID, providers[2].UserID})
	assert.Equal(t, "User17", providers[1].Owner.DisplayName())

	seekers, err := repo.ListSeekers(ctx)
	require.NoError(t, err)
	require.Len(t, seekers, 1)
	assert.Equal(t, int64(3), seekers[0].UserID)
}

func TestProfileRepository_PurgeUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	profiles := NewProfileRepository(db)
	likes := NewLikeRepository(db)
	viewed := NewViewedRepository(db)
	ctx := context.Background()

	testutil.SeedUser(t, db, 1, models.RoleProvider, "")
	testutil.SeedUser(t, db, 2, models.RoleSeeker, "")
	testutil.SeedUser(t, db, 3, models.RoleSeeker, "")
	require.NoError(t, profiles.UpsertProviderProfile(ctx, sampleProvider(1)))

	_, err := likes.CreateLike(ctx, 1, 2)
	require.NoError(t, err)
	_, err = likes.CreateLike(ctx, 3, 1)
	require.NoError(t, err)
	require.NoError(t, viewed.MarkViewed(ctx, 1, 2))
	require.NoError(t, viewed.MarkViewed(ctx, 2, 1))

	require.NoError(t, profiles.PurgeUser(ctx, 1))

	u, err := profiles.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, u)

	p, err := profiles.GetProviderProfile(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p)

	out, err := likes.OutgoingTargets(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, out)

	in, err := likes.IncomingLikers(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, in)

	seen, err := viewed.Viewed(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, seen)

	// Records of other viewers pointing at the purged user are gone too.
	seen, err = viewed.Viewed(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, seen)

	// Other users survive and purging twice is harmless.
	other, err := profiles.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.NoError(t, profiles.PurgeUser(ctx, 1))
}
