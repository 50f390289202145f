package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/testutil"
)

func TestSeedKeepsCountersConsistent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	s := NewSeeder(db, 42)
	sum, err := s.Seed(ctx, Counts{Users: 6, VideosPerUser: 2, Posts: 4, Likes: 20, Subscriptions: 8, Comments: 10, Views: 30})
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 12, sum.Videos)
	assert.Equal(t, 4, sum.Posts)
	assert.Positive(t, sum.Likes)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(6), users)

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(sum.Likes), likes)

	drift, err := engagement.NewService(db).FindDrift(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestCleanEmptiesTables(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	s := NewSeeder(db, 7)
	_, err := s.Seed(ctx, Counts{Users: 3, VideosPerUser: 1, Likes: 3, Views: 3})
	require.NoError(t, err)
	require.NoError(t, s.Clean(ctx))

	var n int64
	require.NoError(t, db.Unscoped().Model(&models.Video{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Unscoped().Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "annlee", sanitizeUsername("Ann-Lee"))
	assert.Equal(t, "userx", sanitizeUsername("X!"))
	assert.Len(t, sanitizeUsername("abcdefghijklmnopqrstuvwxyz0123"), 24)
}
