package handlers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/testutil"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"errors"`
	Meta *util.Meta `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

// headerAuth trusts X-User-ID. It stands in for the JWT middleware.
func headerAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(util.ContextUserID, id)
		} else if required {
			util.RespondUnauthorized(c)
			return
		}
		c.Next()
	}
}

// HandlersTestSuite runs the resource endpoints against an in-memory database.
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	uploader *testutil.FakeUploader
	owner    *models.User
	alice    *models.User
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	validation.Register()

	s.db = testutil.NewDB(s.T())
	s.uploader = testutil.NewFakeUploader()
	s.handlers = NewHandlers(s.db, s.uploader)

	s.router = gin.New()
	s.handlers.RegisterRoutes(s.router.Group("/api/v1"), RouteMiddleware{
		Auth:         headerAuth(true),
		OptionalAuth: headerAuth(false),
	})

	s.owner = testutil.CreateUser(s.T(), s.db, "owner")
	s.alice = testutil.CreateUser(s.T(), s.db, "alice")
}

func (s *HandlersTestSuite) request(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) multipartRequest(method, path, userID string, fields, files map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	for field, filename := range files {
		part, err := mw.CreateFormFile(field, filename)
		s.Require().NoError(err)
		_, err = part.Write([]byte("fake media bytes for " + filename))
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlersTestSuite) videoPath(id string, rest ...string) string {
	p := "/api/v1/videos/" + id
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (s *HandlersTestSuite) reloadVideo(id string) models.Video {
	var v models.Video
	s.Require().NoError(s.db.First(&v, "id = ?", id).Error)
	return v
}

func (s *HandlersTestSuite) TestPublishAndFetchVideo() {
	w := s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": "  Learning Go  ", "description": "intro", "tags": "Go, #go, tutorials"},
		map[string]string{"video": "clip.mp4", "thumbnail": "thumb.png"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var created VideoResponse
	env := decode(s.T(), w, &created)
	s.True(env.Success)
	s.Equal("Learning Go", created.Title)
	s.Equal(12.5, created.Duration)
	s.True(created.IsPublished)
	s.Len(created.Tags, 2)
	s.Equal(s.owner.ID, created.Owner.ID)
	s.Equal(2, s.uploader.Count())

	w = s.request(http.MethodGet, s.videoPath(created.ID), "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var fetched VideoResponse
	decode(s.T(), w, &fetched)
	s.Equal(created.ID, fetched.ID)
	s.Nil(fetched.IsLiked)

	w = s.request(http.MethodGet, s.videoPath(created.ID), s.alice.ID, nil)
	decode(s.T(), w, &fetched)
	s.Require().NotNil(fetched.IsLiked)
	s.False(*fetched.IsLiked)
}

func (s *HandlersTestSuite) TestPublishValidation() {
	w := s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": "no file"}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	env := decode(s.T(), w, nil)
	s.Require().NotEmpty(env.Errors)
	s.Equal("video", env.Errors[0].Field)

	w = s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": "wrong type"},
		map[string]string{"video": "notes.txt", "thumbnail": "thumb.png"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": ""},
		map[string]string{"video": "clip.mp4", "thumbnail": "thumb.png"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Zero(s.uploader.Count())
}

func (s *HandlersTestSuite) TestMissingThumbnailRemovesUploadedVideo() {
	w := s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": "half"},
		map[string]string{"video": "clip.mp4"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Zero(s.uploader.Count())
	s.Len(s.uploader.Deleted, 1)
}

func (s *HandlersTestSuite) TestStorageOutageIs503() {
	s.uploader.Err = fmt.Errorf("put object: %w", storage.ErrUnavailable)
	w := s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
		map[string]string{"title": "down"},
		map[string]string{"video": "clip.mp4", "thumbnail": "thumb.png"})
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *HandlersTestSuite) TestDraftsAreOwnerOnly() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "draft")
	s.Require().NoError(s.db.Model(video).Update("is_published", false).Error)

	s.Equal(http.StatusNotFound, s.request(http.MethodGet, s.videoPath(video.ID), "", nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodGet, s.videoPath(video.ID), s.alice.ID, nil).Code)
	s.Equal(http.StatusOK, s.request(http.MethodGet, s.videoPath(video.ID), s.owner.ID, nil).Code)

	var list []VideoResponse
	env := decode(s.T(), s.request(http.MethodGet, "/api/v1/videos?userId="+s.owner.ID, s.alice.ID, nil), &list)
	s.Empty(list)
	s.Equal(int64(0), env.Meta.Pagination.Total)

	decode(s.T(), s.request(http.MethodGet, "/api/v1/videos?userId="+s.owner.ID, s.owner.ID, nil), &list)
	s.Len(list, 1)
}

func (s *HandlersTestSuite) TestSubscribersOnlyVideo() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "members")
	s.Require().NoError(s.db.Model(video).Update("subscribers_only", true).Error)

	s.Equal(http.StatusForbidden, s.request(http.MethodGet, s.videoPath(video.ID), "", nil).Code)
	s.Equal(http.StatusForbidden, s.request(http.MethodGet, s.videoPath(video.ID), s.alice.ID, nil).Code)

	w := s.request(http.MethodPost, "/api/v1/subscriptions/toggle/"+s.owner.ID, s.alice.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(http.StatusOK, s.request(http.MethodGet, s.videoPath(video.ID), s.alice.ID, nil).Code)
}

func (s *HandlersTestSuite) listedIDs(path, userID string) []string {
	w := s.request(http.MethodGet, path, userID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var videos []VideoResponse
	decode(s.T(), w, &videos)
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	return ids
}

func (s *HandlersTestSuite) TestSubscribersOnlyHiddenFromListings() {
	open := testutil.CreateVideo(s.T(), s.db, s.owner, "open clip")
	members := testutil.CreateVideo(s.T(), s.db, s.owner, "members clip")
	s.Require().NoError(s.db.Model(members).Update("subscribers_only", true).Error)
	vip := &models.Tag{Name: "vip"}
	s.Require().NoError(s.db.Create(vip).Error)
	s.Require().NoError(s.db.Model(open).Association("Tags").Append(vip))
	s.Require().NoError(s.db.Model(members).Association("Tags").Append(vip))

	listings := []string{
		"/api/v1/videos",
		"/api/v1/videos?userId=" + s.owner.ID,
		"/api/v1/users/" + s.owner.ID + "/videos",
		"/api/v1/search/videos?q=clip",
		"/api/v1/tags/vip/videos",
	}
	for _, viewer := range []string{"", s.alice.ID} {
		for _, path := range listings {
			s.Equal([]string{open.ID}, s.listedIDs(path, viewer), "viewer %q path %s", viewer, path)
		}
	}
	w := s.request(http.MethodGet, "/api/v1/videos", "", nil)
	s.NotContains(w.Body.String(), members.VideoURL)

	var profile ChannelResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/"+s.owner.ID, s.alice.ID, nil), &profile)
	s.Equal(int64(1), profile.VideosCount)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/"+s.owner.ID, s.owner.ID, nil), &profile)
	s.Equal(int64(2), profile.VideosCount)
	s.ElementsMatch([]string{open.ID, members.ID}, s.listedIDs("/api/v1/videos?userId="+s.owner.ID, s.owner.ID))

	// Subscribing unlocks every listing.
	toggle := "/api/v1/subscriptions/toggle/" + s.owner.ID
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, toggle, s.alice.ID, nil).Code)
	for _, path := range append(listings, "/api/v1/feed/subscriptions") {
		s.ElementsMatch([]string{open.ID, members.ID}, s.listedIDs(path, s.alice.ID), path)
	}

	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/views/"+members.ID, s.alice.ID, nil).Code)
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/likes/video/"+members.ID, s.alice.ID, nil).Code)
	var pl PlaylistResponse
	w = s.request(http.MethodPost, "/api/v1/playlists", s.owner.ID, gin.H{"name": "picks"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	decode(s.T(), w, &pl)
	for _, v := range []*models.Video{open, members} {
		s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/playlists/"+pl.ID+"/videos/"+v.ID, s.owner.ID, nil).Code)
	}
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/"+pl.ID, s.alice.ID, nil), &pl)
	s.Len(pl.Videos, 2)

	// Unsubscribing locks them again, including history, likes and playlists.
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, toggle, s.alice.ID, nil).Code)
	s.Empty(s.listedIDs("/api/v1/users/me/watch-history", s.alice.ID))
	s.Empty(s.listedIDs("/api/v1/likes/videos", s.alice.ID))
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/"+pl.ID, s.alice.ID, nil), &pl)
	s.Require().Len(pl.Videos, 1)
	s.Equal(open.ID, pl.Videos[0].ID)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/"+pl.ID, "", nil), &pl)
	s.Len(pl.Videos, 1)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/"+pl.ID, s.owner.ID, nil), &pl)
	s.Len(pl.Videos, 2)
}

func (s *HandlersTestSuite) TestListVideosFiltersAndSorts() {
	a := testutil.CreateVideo(s.T(), s.db, s.owner, "golang basics")
	b := testutil.CreateVideo(s.T(), s.db, s.owner, "rust basics")
	testutil.CreateVideo(s.T(), s.db, s.alice, "cooking")
	s.Require().NoError(s.db.Model(a).Update("views", 5).Error)
	s.Require().NoError(s.db.Model(b).Update("views", 50).Error)

	var list []VideoResponse
	env := decode(s.T(), s.request(http.MethodGet, "/api/v1/videos?query=BASICS&sortBy=views&sortType=asc", "", nil), &list)
	s.Require().Len(list, 2)
	s.Equal(a.ID, list[0].ID)
	s.Equal(b.ID, list[1].ID)
	s.Equal(int64(2), env.Meta.Pagination.Total)

	decode(s.T(), s.request(http.MethodGet, "/api/v1/videos?limit=1&page=2", "", nil), &list)
	s.Len(list, 1)
}

func (s *HandlersTestSuite) TestUpdateAndDeleteAreOwnerOnly() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "mine")

	w := s.request(http.MethodPatch, s.videoPath(video.ID), s.alice.ID, gin.H{"title": "stolen"})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodPatch, s.videoPath(video.ID), s.owner.ID, gin.H{"title": "renamed", "tags": "news,tech"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated VideoResponse
	decode(s.T(), w, &updated)
	s.Equal("renamed", updated.Title)
	s.Len(updated.Tags, 2)

	w = s.request(http.MethodPatch, s.videoPath(video.ID, "publish"), s.owner.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.False(s.reloadVideo(video.ID).IsPublished)

	s.Equal(http.StatusForbidden, s.request(http.MethodDelete, s.videoPath(video.ID), s.alice.ID, nil).Code)
	s.Equal(http.StatusOK, s.request(http.MethodDelete, s.videoPath(video.ID), s.owner.ID, nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodGet, s.videoPath(video.ID), s.owner.ID, nil).Code)
}

func (s *HandlersTestSuite) TestToggleLikeNotifiesOwner() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "likeable")
	path := "/api/v1/likes/videos/" + video.ID

	var state LikeState
	w := s.request(http.MethodPost, path, s.alice.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	decode(s.T(), w, &state)
	s.True(state.IsLiked)
	s.Equal(int64(1), state.LikesCount)

	var notifications int64
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", s.owner.ID, models.NotificationLike).Count(&notifications).Error)
	s.Equal(int64(1), notifications)

	decode(s.T(), s.request(http.MethodGet, "/api/v1/likes/video/"+video.ID+"/status", s.alice.ID, nil), &state)
	s.True(state.IsLiked)

	var liked []VideoResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/likes/videos", s.alice.ID, nil), &liked)
	s.Len(liked, 1)

	decode(s.T(), s.request(http.MethodPost, path, s.alice.ID, nil), &state)
	s.False(state.IsLiked)
	s.Equal(int64(0), state.LikesCount)
	s.Equal(int64(0), s.reloadVideo(video.ID).LikesCount)
}

func (s *HandlersTestSuite) TestLikeRejectsBadInput() {
	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/likes/channel/"+s.owner.ID, s.alice.ID, nil).Code)
	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/likes/video/not-a-uuid", s.alice.ID, nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodPost, "/api/v1/likes/video/"+s.owner.ID, s.alice.ID, nil).Code)
	s.Equal(http.StatusUnauthorized, s.request(http.MethodPost, "/api/v1/likes/video/"+s.owner.ID, "", nil).Code)
}

func (s *HandlersTestSuite) TestSubscriptions() {
	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/subscriptions/toggle/"+s.owner.ID, s.owner.ID, nil).Code)

	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/subscriptions/toggle/"+s.owner.ID, s.alice.ID, nil).Code)

	var subscribers []SubscriptionEntry
	decode(s.T(), s.request(http.MethodGet, "/api/v1/subscriptions/channels/"+s.owner.ID+"/subscribers", "", nil), &subscribers)
	s.Require().Len(subscribers, 1)
	s.Equal(s.alice.ID, subscribers[0].User.ID)

	var channels []SubscriptionEntry
	decode(s.T(), s.request(http.MethodGet, "/api/v1/subscriptions/users/"+s.alice.ID+"/channels", "", nil), &channels)
	s.Require().Len(channels, 1)
	s.Equal(s.owner.ID, channels[0].User.ID)

	var profile ChannelResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/"+s.owner.ID, s.alice.ID, nil), &profile)
	s.True(profile.IsSubscribed)
	s.Equal(int64(1), profile.SubscribersCount)
}

func (s *HandlersTestSuite) TestLogViewCountsOnceAndRecordsHistory() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "watch me")
	path := "/api/v1/views/" + video.ID

	var res struct {
		Counted bool  `json:"counted"`
		Views   int64 `json:"views"`
	}
	decode(s.T(), s.request(http.MethodPost, path, s.alice.ID, nil), &res)
	s.True(res.Counted)
	decode(s.T(), s.request(http.MethodPost, path, s.alice.ID, nil), &res)
	s.False(res.Counted)
	s.Equal(int64(1), res.Views)

	decode(s.T(), s.request(http.MethodPost, path, "", nil), &res)
	s.True(res.Counted)
	s.Equal(int64(2), res.Views)

	var history []VideoResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/me/watch-history", s.alice.ID, nil), &history)
	s.Require().Len(history, 1)
	s.Equal(video.ID, history[0].ID)

	s.Equal(http.StatusOK, s.request(http.MethodDelete, "/api/v1/users/me/watch-history", s.alice.ID, nil).Code)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/me/watch-history", s.alice.ID, nil), &history)
	s.Empty(history)
}

func (s *HandlersTestSuite) TestCommentLifecycle() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "discuss")
	base := "/api/v1/comments/video/" + video.ID

	var top CommentResponse
	w := s.request(http.MethodPost, base, s.alice.ID, gin.H{"content": "first!"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	decode(s.T(), w, &top)
	s.Equal(s.alice.ID, top.Owner.ID)

	var reply CommentResponse
	w = s.request(http.MethodPost, base, s.owner.ID, gin.H{"content": "thanks", "parentId": top.ID})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	decode(s.T(), w, &reply)
	s.Equal(int64(2), s.reloadVideo(video.ID).CommentsCount)

	var list []CommentResponse
	decode(s.T(), s.request(http.MethodGet, base, "", nil), &list)
	s.Require().Len(list, 1)
	s.Equal(top.ID, list[0].ID)

	decode(s.T(), s.request(http.MethodGet, base+"?parentId="+top.ID, "", nil), &list)
	s.Require().Len(list, 1)
	s.Equal(reply.ID, list[0].ID)

	s.Equal(http.StatusForbidden, s.request(http.MethodPatch, "/api/v1/comments/"+top.ID, s.owner.ID, gin.H{"content": "edit"}).Code)

	var edited CommentResponse
	decode(s.T(), s.request(http.MethodPatch, "/api/v1/comments/"+top.ID, s.alice.ID, gin.H{"content": "edited"}), &edited)
	s.True(edited.IsEdited)
	s.Equal("edited", edited.Content)

	s.Equal(http.StatusForbidden, s.request(http.MethodDelete, "/api/v1/comments/"+top.ID, s.owner.ID, nil).Code)
	s.Equal(http.StatusOK, s.request(http.MethodDelete, "/api/v1/comments/"+top.ID, s.alice.ID, nil).Code)
	s.Equal(int64(1), s.reloadVideo(video.ID).CommentsCount)

	var n int64
	s.Require().NoError(s.db.Model(&models.Notification{}).Where("recipient_id = ?", s.alice.ID).Count(&n).Error)
	s.Equal(int64(1), n, "reply notifies the parent author")
}

func (s *HandlersTestSuite) TestPosts() {
	w := s.request(http.MethodPost, "/api/v1/posts", s.owner.ID, gin.H{"content": "hello subscribers"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var post PostResponse
	decode(s.T(), w, &post)

	var posts []PostResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/posts/users/"+s.owner.ID, "", nil), &posts)
	s.Len(posts, 1)

	s.Equal(http.StatusForbidden, s.request(http.MethodPatch, "/api/v1/posts/"+post.ID, s.alice.ID, gin.H{"content": "x"}).Code)
	decode(s.T(), s.request(http.MethodPatch, "/api/v1/posts/"+post.ID, s.owner.ID, gin.H{"content": "updated"}), &post)
	s.Equal("updated", post.Content)

	s.Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/likes/post/"+post.ID, s.alice.ID, nil).Code)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/posts/"+post.ID, s.alice.ID, nil), &post)
	s.Require().NotNil(post.IsLiked)
	s.True(*post.IsLiked)
	s.Equal(int64(1), post.LikesCount)

	s.Equal(http.StatusOK, s.request(http.MethodDelete, "/api/v1/posts/"+post.ID, s.owner.ID, nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodGet, "/api/v1/posts/"+post.ID, "", nil).Code)
}

func (s *HandlersTestSuite) TestPlaylistOrdering() {
	videos := []*models.Video{
		testutil.CreateVideo(s.T(), s.db, s.owner, "one"),
		testutil.CreateVideo(s.T(), s.db, s.owner, "two"),
		testutil.CreateVideo(s.T(), s.db, s.owner, "three"),
	}

	var pl PlaylistResponse
	w := s.request(http.MethodPost, "/api/v1/playlists", s.owner.ID, gin.H{"name": "mix", "isPublic": false})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	decode(s.T(), w, &pl)
	s.False(pl.IsPublic)

	base := "/api/v1/playlists/" + pl.ID + "/videos/"
	for _, v := range videos {
		s.Require().Equal(http.StatusOK, s.request(http.MethodPost, base+v.ID, s.owner.ID, nil).Code)
	}
	s.Equal(http.StatusConflict, s.request(http.MethodPost, base+videos[0].ID, s.owner.ID, nil).Code)

	w = s.request(http.MethodDelete, base+videos[1].ID, s.owner.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	decode(s.T(), w, &pl)
	s.Require().Len(pl.Videos, 2)
	s.Equal(videos[0].ID, pl.Videos[0].ID)
	s.Equal(videos[2].ID, pl.Videos[1].ID)

	var positions []int
	s.Require().NoError(s.db.Model(&models.PlaylistEntry{}).Where("playlist_id = ?", pl.ID).
		Order("position").Pluck("position", &positions).Error)
	s.Equal([]int{0, 1}, positions)

	s.Equal(http.StatusNotFound, s.request(http.MethodGet, "/api/v1/playlists/"+pl.ID, s.alice.ID, nil).Code)
	s.Equal(http.StatusNotFound, s.request(http.MethodPost, base+videos[1].ID, s.alice.ID, nil).Code)

	var mine []PlaylistResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/users/"+s.owner.ID, s.alice.ID, nil), &mine)
	s.Empty(mine)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/playlists/users/"+s.owner.ID, s.owner.ID, nil), &mine)
	s.Len(mine, 1)
}

func (s *HandlersTestSuite) TestTags() {
	w := s.request(http.MethodPost, "/api/v1/tags", s.alice.ID, gin.H{"name": "Music"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var music TagResponse
	decode(s.T(), w, &music)
	s.Equal("music", music.Name)

	s.Equal(http.StatusConflict, s.request(http.MethodPost, "/api/v1/tags", s.owner.ID, gin.H{"name": "MUSIC"}).Code)

	for _, title := range []string{"a", "b"} {
		w := s.multipartRequest(http.MethodPost, "/api/v1/videos", s.owner.ID,
			map[string]string{"title": title, "tags": "gaming"},
			map[string]string{"video": "clip.mp4", "thumbnail": "thumb.jpg"})
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	var tags []TagResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/tags", "", nil), &tags)
	s.Require().Len(tags, 2)
	s.Equal("gaming", tags[0].Name)
	s.Equal(int64(2), tags[0].VideosCount)
	s.Equal(int64(0), tags[1].VideosCount)

	var tagged []VideoResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/tags/gaming/videos", "", nil), &tagged)
	s.Len(tagged, 2)

	decode(s.T(), s.request(http.MethodGet, "/api/v1/videos?tag=gaming", "", nil), &tagged)
	s.Len(tagged, 2)

	s.Equal(http.StatusForbidden, s.request(http.MethodDelete, "/api/v1/tags/"+music.ID, s.owner.ID, nil).Code)
	s.Equal(http.StatusOK, s.request(http.MethodDelete, "/api/v1/tags/"+music.ID, s.alice.ID, nil).Code)
}

func (s *HandlersTestSuite) TestNotificationsReadFlow() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "popular")
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/likes/video/"+video.ID, s.alice.ID, nil).Code)
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/subscriptions/toggle/"+s.owner.ID, s.alice.ID, nil).Code)

	var count struct {
		Unread int64 `json:"unread"`
	}
	decode(s.T(), s.request(http.MethodGet, "/api/v1/notifications/unread-count", s.owner.ID, nil), &count)
	s.Equal(int64(2), count.Unread)

	var list []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Actor struct {
			ID string `json:"id"`
		} `json:"actor"`
	}
	decode(s.T(), s.request(http.MethodGet, "/api/v1/notifications", s.owner.ID, nil), &list)
	s.Require().Len(list, 2)
	s.Equal(s.alice.ID, list[0].Actor.ID)

	s.Equal(http.StatusNotFound, s.request(http.MethodPatch, "/api/v1/notifications/"+list[0].ID+"/read", s.alice.ID, nil).Code)
	s.Equal(http.StatusOK, s.request(http.MethodPatch, "/api/v1/notifications/"+list[0].ID+"/read", s.owner.ID, nil).Code)

	decode(s.T(), s.request(http.MethodGet, "/api/v1/notifications?unreadOnly=true", s.owner.ID, nil), &list)
	s.Len(list, 1)

	s.Equal(http.StatusOK, s.request(http.MethodPatch, "/api/v1/notifications/read-all", s.owner.ID, nil).Code)
	decode(s.T(), s.request(http.MethodGet, "/api/v1/notifications/unread-count", s.owner.ID, nil), &count)
	s.Zero(count.Unread)

	s.Equal(http.StatusServiceUnavailable, s.request(http.MethodGet, "/api/v1/notifications/ws", s.owner.ID, nil).Code)
}

func (s *HandlersTestSuite) TestAnalytics() {
	video := testutil.CreateVideo(s.T(), s.db, s.owner, "stats")
	for _, viewer := range []string{s.alice.ID, ""} {
		s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/views/"+video.ID, viewer, nil).Code)
	}

	var stats ChannelStats
	decode(s.T(), s.request(http.MethodGet, "/api/v1/analytics/channel", s.owner.ID, nil), &stats)
	s.Equal(int64(1), stats.TotalVideos)
	s.Equal(int64(2), stats.TotalViews)
	s.Len(stats.TopVideos, 1)

	var series []DailyViews
	decode(s.T(), s.request(http.MethodGet, "/api/v1/analytics/channel/views?days=7", s.owner.ID, nil), &series)
	s.Require().Len(series, 7)
	s.Equal(int64(2), series[6].Views)
	s.Zero(series[0].Views)

	s.Equal(http.StatusBadRequest, s.request(http.MethodGet, "/api/v1/analytics/channel/views?days=91", s.owner.ID, nil).Code)
	s.Equal(http.StatusForbidden, s.request(http.MethodGet, "/api/v1/analytics/videos/"+video.ID, s.alice.ID, nil).Code)

	var vs VideoStats
	decode(s.T(), s.request(http.MethodGet, "/api/v1/analytics/videos/"+video.ID, s.owner.ID, nil), &vs)
	s.Equal(int64(2), vs.Views)
	s.Len(vs.Daily, 30)
}

func (s *HandlersTestSuite) TestFeedAndSearch() {
	other := testutil.CreateUser(s.T(), s.db, "other")
	followed := testutil.CreateVideo(s.T(), s.db, s.owner, "followed channel upload")
	testutil.CreateVideo(s.T(), s.db, other, "unrelated upload")
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/subscriptions/toggle/"+s.owner.ID, s.alice.ID, nil).Code)

	var feed []VideoResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/feed/subscriptions", s.alice.ID, nil), &feed)
	s.Require().Len(feed, 1)
	s.Equal(followed.ID, feed[0].ID)

	var found []VideoResponse
	env := decode(s.T(), s.request(http.MethodGet, "/api/v1/search/videos?q=upload", "", nil), &found)
	s.Len(found, 2)
	s.Equal(int64(2), env.Meta.Pagination.Total)

	s.Equal(http.StatusBadRequest, s.request(http.MethodGet, "/api/v1/search/videos", "", nil).Code)
}

func (s *HandlersTestSuite) TestChannelProfileCounts() {
	testutil.CreateVideo(s.T(), s.db, s.owner, "one")
	draft := testutil.CreateVideo(s.T(), s.db, s.owner, "two")
	s.Require().NoError(s.db.Model(draft).Update("is_published", false).Error)

	var profile ChannelResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/"+s.owner.ID, "", nil), &profile)
	s.Equal(s.owner.Username, profile.Username)
	s.Equal(int64(1), profile.VideosCount)
	s.False(profile.IsSubscribed)

	var videos []VideoResponse
	decode(s.T(), s.request(http.MethodGet, "/api/v1/users/"+s.owner.ID+"/videos", s.owner.ID, nil), &videos)
	s.Len(videos, 2)

	s.Equal(http.StatusNotFound, s.request(http.MethodGet, "/api/v1/users/00000000-0000-4000-8000-000000000000", "", nil).Code)
}

func (s *HandlersTestSuite) TestHealth() {
	s.router.GET("/health", s.handlers.Health)
	w := s.request(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func TestInternalErrorsDoNotLeakDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT .* FROM "videos"`).WillReturnError(stderrors.New("pq: relation secret_table is broken"))

	router := gin.New()
	NewHandlers(db, nil).RegisterRoutes(router.Group("/api/v1"), RouteMiddleware{
		Auth:         headerAuth(true),
		OptionalAuth: headerAuth(false),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/videos/0b6d3f8a-3f7e-4f0a-9f55-5d7c1b0e2a11", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret_table")
	env := decode(t, w, nil)
	assert.False(t, env.Success)
}
