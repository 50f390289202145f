package history

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/testutil"
)

func ids(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("v%d", i))
	}
	return out
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func TestPushKeepsMostRecentHundred(t *testing.T) {
	var list []string
	for _, id := range ids(1, 150) {
		list = Push(list, id, models.MaxWatchHistory)
	}

	require.Len(t, list, 100)
	assert.Equal(t, reversed(ids(51, 150)), list)

	seen := map[string]bool{}
	for _, id := range list {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestPushMovesExistingToFront(t *testing.T) {
	list := reversed(ids(1, 100))
	next := Push(list, "v40", models.MaxWatchHistory)

	assert.Len(t, next, 100)
	assert.Equal(t, "v40", next[0])
	assert.Equal(t, "v100", next[1])
	assert.Equal(t, "v1", next[99], "nothing is evicted when the id was already present")
	assert.Equal(t, "v100", list[0], "input slice is untouched")
}

func TestPushTable(t *testing.T) {
	tests := []struct {
		name  string
		list  []string
		id    string
		limit int
		want  []string
	}{
		{"empty", nil, "a", 3, []string{"a"}},
		{"already first", []string{"a", "b"}, "a", 3, []string{"a", "b"}},
		{"middle", []string{"a", "b", "c"}, "b", 3, []string{"b", "a", "c"}},
		{"evicts oldest", []string{"a", "b", "c"}, "d", 3, []string{"d", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Push(tt.list, tt.id, tt.limit))
		})
	}
}

func TestServiceAddAndList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "viewer")

	for _, id := range ids(1, 150) {
		require.NoError(t, svc.Add(ctx, user.ID, id))
	}
	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, reversed(ids(51, 150)), list)

	require.NoError(t, svc.Add(ctx, user.ID, "v60"))
	list, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 100)
	assert.Equal(t, "v60", list[0])

	require.NoError(t, svc.Clear(ctx, user.ID))
	list, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceConcurrentAddsKeepEveryVideo(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "binger")

	var wg sync.WaitGroup
	for _, id := range ids(1, 20) {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, svc.Add(ctx, user.ID, id))
		}(id)
	}
	wg.Wait()

	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(1, 20), list)
}

func TestVideosKeepsHistoryOrder(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "creator")
	viewer := testutil.CreateUser(t, db, "viewer")

	a := testutil.CreateVideo(t, db, owner, "a")
	b := testutil.CreateVideo(t, db, owner, "b")
	c := testutil.CreateVideo(t, db, owner, "c")
	require.NoError(t, db.Model(c).Update("is_published", false).Error)

	for _, v := range []*models.Video{a, b, c} {
		require.NoError(t, svc.Add(ctx, viewer.ID, v.ID))
	}

	videos, err := svc.Videos(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, b.ID, videos[0].ID)
	assert.Equal(t, a.ID, videos[1].ID)
	assert.Equal(t, owner.ID, videos[0].Owner.ID)
}
