package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/testutil"
)

func TestSQLIndex_SearchVideos(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	cats := testutil.CreateVideo(t, db, owner, "Funny Cats")
	dogs := testutil.CreateVideo(t, db, owner, "dogs compilation")
	draft := testutil.CreateVideo(t, db, owner, "cats draft")
	require.NoError(t, db.Model(draft).Update("is_published", false).Error)
	require.NoError(t, db.Model(dogs).Update("views", 10).Error)

	tag := &models.Tag{Name: "cats"}
	require.NoError(t, db.Create(tag).Error)
	require.NoError(t, db.Model(dogs).Association("Tags").Append(tag))

	idx := NewSQLIndex(db)
	res, err := idx.SearchVideos(context.Background(), Query{Text: "CATS", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Total)
	// Ordered by views: the tag match has more.
	assert.Equal(t, []string{dogs.ID, cats.ID}, res.IDs)

	res, err = idx.SearchVideos(context.Background(), Query{Text: "100%", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.IDs, "LIKE wildcards in the query are literal")
}

type fakeIndex struct {
	res     *Result
	err     error
	indexed []string
	deleted []string
}

func (f *fakeIndex) IndexVideo(ctx context.Context, doc VideoDoc) error {
	f.indexed = append(f.indexed, doc.ID)
	return f.err
}

func (f *fakeIndex) DeleteVideo(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeIndex) SearchVideos(ctx context.Context, q Query) (*Result, error) {
	return f.res, f.err
}

func TestService_FallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeIndex{err: errors.New("cluster red")}
	fallback := &fakeIndex{res: &Result{IDs: []string{"v1"}, Total: 1}}

	res, err := NewService(primary, fallback).Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, res.IDs)

	res, err = NewService(nil, fallback).Search(context.Background(), Query{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestService_Sync(t *testing.T) {
	primary := &fakeIndex{}
	svc := NewService(primary, nil)

	svc.Sync(context.Background(), &models.Video{ID: "pub", IsPublished: true})
	svc.Sync(context.Background(), &models.Video{ID: "draft"})
	svc.Remove(context.Background(), "gone")

	assert.Equal(t, []string{"pub"}, primary.indexed)
	assert.Equal(t, []string{"draft", "gone"}, primary.deleted)
}

func TestService_Reindex(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	testutil.CreateVideo(t, db, owner, "one")
	testutil.CreateVideo(t, db, owner, "two")

	primary := &fakeIndex{}
	n, err := NewService(primary, NewSQLIndex(db)).Reindex(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, primary.indexed, 2)
}

func TestDocFromVideo(t *testing.T) {
	v := &models.Video{
		ID:      "v1",
		Title:   "Title",
		OwnerID: "u1",
		Owner:   &models.User{ID: "u1", Username: "alice"},
		Tags:    []models.Tag{{Name: "go"}, {Name: "tutorial"}},
	}
	doc := DocFromVideo(v)
	assert.Equal(t, "alice", doc.OwnerUsername)
	assert.False(t, doc.SubscribersOnly)
	assert.Equal(t, []string{"go", "tutorial"}, doc.Tags)
}

func TestESIndex_SearchVideos(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/videos/_search", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[{"_id":"b"},{"_id":"a"}]}}`))
	}))
	defer srv.Close()

	idx, err := NewESIndex(srv.URL, "videos")
	require.NoError(t, err)

	res, err := idx.SearchVideos(context.Background(), Query{Text: "cats", Offset: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.IDs)
	assert.Equal(t, int64(2), res.Total)

	assert.Equal(t, float64(20), gotBody["from"])
	assert.Equal(t, float64(10), gotBody["size"])
	assert.Contains(t, gotBody["query"], "bool")
}

func TestESIndex_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"no shards"}`))
	}))
	defer srv.Close()

	idx, err := NewESIndex(srv.URL, "videos")
	require.NoError(t, err)

	_, err = idx.SearchVideos(context.Background(), Query{Text: "x", Limit: 1})
	assert.Error(t, err)
}

func TestSQLIndex_SubscribersOnlyVisibility(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	stranger := testutil.CreateUser(t, db, "stranger")
	public := testutil.CreateVideo(t, db, owner, "public talk")
	members := testutil.CreateVideo(t, db, owner, "members talk")
	require.NoError(t, db.Model(members).Update("subscribers_only", true).Error)
	require.NoError(t, db.Create(&models.Subscription{SubscriberID: fan.ID, ChannelID: owner.ID}).Error)

	idx := NewSQLIndex(db)
	search := func(viewerID string) *Result {
		res, err := idx.SearchVideos(context.Background(), Query{Text: "talk", Limit: 10, ViewerID: viewerID})
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, []string{public.ID}, search("").IDs)
	assert.Equal(t, []string{public.ID}, search(stranger.ID).IDs)
	assert.Equal(t, int64(1), search(stranger.ID).Total)
	assert.ElementsMatch(t, []string{public.ID, members.ID}, search(fan.ID).IDs)
	assert.ElementsMatch(t, []string{public.ID, members.ID}, search(owner.ID).IDs)

	// An ended subscription no longer counts.
	require.NoError(t, db.Where("subscriber_id = ?", fan.ID).Delete(&models.Subscription{}).Error)
	assert.Equal(t, []string{public.ID}, search(fan.ID).IDs)
}

func TestBuildVideoQuery_VisibilityFilter(t *testing.T) {
	anon := buildVideoQuery(Query{Text: "cats", Limit: 10})
	should := anon["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].(map[string]interface{})["bool"].(map[string]interface{})["should"].([]interface{})
	assert.Len(t, should, 1)

	viewer := buildVideoQuery(Query{Text: "cats", Limit: 10, ViewerID: "u1", Channels: []string{"c1", "u1"}})
	body, err := json.Marshal(viewer)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"terms":{"owner_id":["c1","u1"]}`)
	assert.Contains(t, string(body), `"must_not":{"term":{"subscribers_only":true}}`)
	assert.Contains(t, string(body), `"minimum_should_match":1`)
}
