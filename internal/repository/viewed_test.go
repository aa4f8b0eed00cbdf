package repository

import (
	"context"
	"testing"

	"psymatch/internal/keylock"
	"psymatch/internal/models"
	"psymatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keylockPair(a, b int64) keylock.Pair { return keylock.PairOf(a, b) }

func TestViewedRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewViewedRepository(db)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		testutil.SeedUser(t, db, id, models.RoleSeeker, "")
	}

	t.Run("MarkViewed is idempotent", func(t *testing.T) {
		require.NoError(t, repo.MarkViewed(ctx, 1, 2))
		require.NoError(t, repo.MarkViewed(ctx, 1, 2))

		var count int64
		require.NoError(t, db.Model(&models.ViewedRecord{}).Where("viewer_id = ?", 1).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Viewed returns the viewer's set", func(t *testing.T) {
		require.NoError(t, repo.MarkViewed(ctx, 1, 3))
		require.NoError(t, repo.MarkViewed(ctx, 2, 1))

		seen, err := repo.Viewed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.IDSet{2: {}, 3: {}}, seen)
	})

	t.Run("ResetViewed only touches one viewer", func(t *testing.T) {
		removed, err := repo.ResetViewed(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		seen, err := repo.Viewed(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, seen)

		other, err := repo.Viewed(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, models.IDSet{1: {}}, other)
	})
}
