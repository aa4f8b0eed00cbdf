package service

import (
	"context"
	"testing"

	"psymatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchService_OneSidedLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seeker(t, 1, "Ivan", "ivan")
	f.provider(t, 2, "Anna", "anna")

	res, err := f.matches.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Created: true}, res)

	assert.Equal(t, []string{likeSentNotice}, f.notifier.to(1))
	require.Len(t, f.notifier.to(2), 1)
	assert.Contains(t, f.notifier.to(2)[0], "new like from Ivan (Client)")
}

func TestMatchService_DuplicateLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seeker(t, 1, "Ivan", "")
	f.provider(t, 2, "Anna", "")

	_, err := f.matches.Like(ctx, 1, 2)
	require.NoError(t, err)
	res, err := f.matches.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Mutual)

	liker := f.notifier.to(1)
	assert.Equal(t, alreadyLikedNotice, liker[len(liker)-1])
	assert.Len(t, f.notifier.to(2), 1)
}

func TestMatchService_MutualLikeNotifiesBothSides(t *testing.T) {
	for _, order := range [][2]int64{{1, 2}, {2, 1}} {
		f := newFixture(t)
		ctx := context.Background()
		f.seeker(t, 1, "Ivan", "ivan")
		f.provider(t, 2, "Anna", "")

		_, err := f.matches.Like(ctx, order[0], order[1])
		require.NoError(t, err)
		res, err := f.matches.Like(ctx, order[1], order[0])
		require.NoError(t, err)
		assert.True(t, res.Mutual)

		seekerNotes := f.notifier.to(1)
		providerNotes := f.notifier.to(2)
		require.NotEmpty(t, seekerNotes)
		require.NotEmpty(t, providerNotes)

		toSeeker := seekerNotes[len(seekerNotes)-1]
		assert.Contains(t, toSeeker, "It's a match! Anna (Psychologist)")
		assert.Contains(t, toSeeker, "Anna has no public handle")

		toProvider := providerNotes[len(providerNotes)-1]
		assert.Contains(t, toProvider, "It's a match! Ivan (Client)")
		assert.Contains(t, toProvider, "Contact: @ivan")

		matches, err := f.matches.Matches(ctx, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, int64(2), matches[0].PartnerID)
	}
}

func TestMatchService_LikeErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	f.seeker(t, 1, "Ivan", "")

	_, err := f.matches.Like(context.Background(), 1, 1)
	assert.ErrorIs(t, err, models.ErrSelfLike)
	_, err = f.matches.Like(context.Background(), 1, 50)
	assert.ErrorIs(t, err, models.ErrUserMissing)
	assert.Empty(t, f.notifier.to(1))
}

func TestMatchService_IncomingLikesAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := f.provider(t, 10, "Anna", "")
	f.seeker(t, 1, "Ivan", "")
	f.seeker(t, 2, "Petr", "")

	_, err := f.matches.Like(ctx, 1, 10)
	require.NoError(t, err)
	_, err = f.matches.Like(ctx, 2, 10)
	require.NoError(t, err)
	_, err = f.matches.Like(ctx, 10, 2)
	require.NoError(t, err)

	incoming, err := f.matches.IncomingLikes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, "Petr", incoming[0].Name)
	assert.True(t, incoming[0].Mutual)
	assert.Equal(t, "Ivan", incoming[1].Name)
	assert.Equal(t, models.RoleSeeker, incoming[1].Role)

	stats, err := f.matches.UserStats(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Role: models.RoleProvider, LikesGiven: 1, LikesReceived: 2, Mutual: 1}, stats)

	global, err := f.matches.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.GlobalStats{Providers: 1, Seekers: 2, TotalLikes: 3, MutualPairs: 1}, global)
}
