package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/history"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DevPassword is the password of every seeded account.
const DevPassword = "password123"

// Counts sizes a seeding run.
type Counts struct {
	Users         int
	VideosPerUser int
	Posts         int
	Likes         int
	Subscriptions int
	Comments      int
	Views         int
}

// DevCounts is a dataset big enough to click around in.
func DevCounts() Counts {
	return Counts{Users: 50, VideosPerUser: 4, Posts: 60, Likes: 600, Subscriptions: 300, Comments: 400, Views: 1500}
}

// Summary reports what a run actually created.
type Summary struct {
	Users         int `json:"users"`
	Videos        int `json:"videos"`
	Posts         int `json:"posts"`
	Likes         int `json:"likes"`
	Subscriptions int `json:"subscriptions"`
	Comments      int `json:"comments"`
	Views         int `json:"views"`
}

// Seeder fills a database with fake data. Engagement goes through the same
// services the API uses so every counter matches its join rows.
type Seeder struct {
	db         *gorm.DB
	engagement *engagement.Service
	history    *history.Service
	rng        *rand.Rand
}

var tagNames = []string{"music", "gaming", "tutorial", "vlog", "comedy", "travel", "cooking", "tech", "sports", "news", "diy", "science"}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	_ = gofakeit.Seed(seed)
	return &Seeder{
		db:         db,
		engagement: engagement.NewService(db),
		history:    history.NewService(db),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Seed creates users, videos and posts, then engagement between them.
func (s *Seeder) Seed(ctx context.Context, counts Counts) (*Summary, error) {
	sum := &Summary{}

	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(ctx, counts.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	sum.Users = len(users)
	if len(users) < 2 {
		return sum, nil
	}

	logger.Log.Info("Creating videos...")
	tags, err := s.seedTags(ctx, users[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed tags: %w", err)
	}
	videos, err := s.seedVideos(ctx, users, tags, counts.VideosPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to seed videos: %w", err)
	}
	sum.Videos = len(videos)

	logger.Log.Info("Creating posts...")
	posts, err := s.seedPosts(ctx, users, counts.Posts)
	if err != nil {
		return nil, fmt.Errorf("failed to seed posts: %w", err)
	}
	sum.Posts = len(posts)

	logger.Log.Info("Creating subscriptions...")
	if sum.Subscriptions, err = s.seedSubscriptions(ctx, users, counts.Subscriptions); err != nil {
		return nil, fmt.Errorf("failed to seed subscriptions: %w", err)
	}

	if len(videos) > 0 {
		logger.Log.Info("Creating likes, comments and views...")
		if sum.Likes, err = s.seedLikes(ctx, users, videos, posts, counts.Likes); err != nil {
			return nil, fmt.Errorf("failed to seed likes: %w", err)
		}
		if sum.Comments, err = s.seedComments(ctx, users, videos, counts.Comments); err != nil {
			return nil, fmt.Errorf("failed to seed comments: %w", err)
		}
		if sum.Views, err = s.seedViews(ctx, users, videos, counts.Views); err != nil {
			return nil, fmt.Errorf("failed to seed views: %w", err)
		}
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", sum.Users),
		zap.Int("videos", sum.Videos),
		zap.Int("likes", sum.Likes),
		zap.Int("subscriptions", sum.Subscriptions),
		zap.Int("views", sum.Views),
	)
	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	// One hash for everyone keeps seeding fast.
	hash, err := bcrypt.GenerateFromPassword([]byte(DevPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%d", sanitizeUsername(gofakeit.Username()), i)
		user := models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@example.com", username),
			FullName:     gofakeit.Name(),
			Bio:          gofakeit.HipsterSentence(),
			AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
			PasswordHash: string(hash),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

// sanitizeUsername maps faker output onto the username charset.
func sanitizeUsername(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < 3 {
		out = "user" + out
	}
	if len(out) > 24 {
		out = out[:24]
	}
	return out
}

func (s *Seeder) seedTags(ctx context.Context, creatorID string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		tag := models.Tag{Name: name, CreatedByID: &creatorID}
		if err := s.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Seeder) seedVideos(ctx context.Context, users []models.User, tags []models.Tag, perUser int) ([]models.Video, error) {
	var videos []models.Video
	for _, owner := range users {
		for i := 0; i < perUser; i++ {
			createdAt := gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now())
			video := models.Video{
				OwnerID:         owner.ID,
				Title:           strings.TrimSuffix(gofakeit.HipsterSentence(), "."),
				Description:     gofakeit.HipsterSentence(),
				VideoURL:        fmt.Sprintf("https://cdn.example.com/videos/%s.mp4", gofakeit.UUID()),
				ThumbnailURL:    fmt.Sprintf("https://picsum.photos/seed/%s/640/360", gofakeit.Word()),
				Duration:        float64(30 + s.rng.Intn(1200)),
				IsPublished:     s.rng.Float32() < 0.9,
				SubscribersOnly: s.rng.Float32() < 0.1,
				Tags:            s.pickTags(tags),
				CreatedAt:       createdAt,
			}
			if err := s.db.WithContext(ctx).Create(&video).Error; err != nil {
				return nil, fmt.Errorf("failed to create video: %w", err)
			}
			videos = append(videos, video)
		}
	}
	return videos, nil
}

func (s *Seeder) pickTags(tags []models.Tag) []models.Tag {
	n := 1 + s.rng.Intn(3)
	picked := make([]models.Tag, 0, n)
	for _, i := range s.rng.Perm(len(tags))[:n] {
		picked = append(picked, tags[i])
	}
	return picked
}

func (s *Seeder) seedPosts(ctx context.Context, users []models.User, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		post := models.Post{
			OwnerID:   users[s.rng.Intn(len(users))].ID,
			Content:   gofakeit.HipsterSentence(),
			CreatedAt: gofakeit.DateRange(time.Now().AddDate(0, -1, 0), time.Now()),
		}
		if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// skippable reports engagement the visibility rules refuse, which seeding
// simply passes over.
func skippable(err error) bool {
	return errors.Is(err, engagement.ErrSubscribersOnly) ||
		errors.Is(err, engagement.ErrTargetNotFound) ||
		errors.Is(err, engagement.ErrSelfSubscription)
}

func (s *Seeder) seedSubscriptions(ctx context.Context, users []models.User, count int) (int, error) {
	seen := make(map[[2]string]bool)
	created := 0
	for attempt := 0; attempt < count*3 && created < count; attempt++ {
		sub := users[s.rng.Intn(len(users))].ID
		channel := users[s.rng.Intn(len(users))].ID
		key := [2]string{sub, channel}
		if sub == channel || seen[key] {
			continue
		}
		seen[key] = true
		if _, err := s.engagement.ToggleSubscription(ctx, sub, channel); err != nil {
			if skippable(err) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Seeder) seedLikes(ctx context.Context, users []models.User, videos []models.Video, posts []models.Post, count int) (int, error) {
	seen := make(map[string]bool)
	created := 0
	for attempt := 0; attempt < count*3 && created < count; attempt++ {
		actor := users[s.rng.Intn(len(users))].ID
		kind, target := models.LikeKindVideo, videos[s.rng.Intn(len(videos))].ID
		if len(posts) > 0 && s.rng.Float32() < 0.25 {
			kind, target = models.LikeKindPost, posts[s.rng.Intn(len(posts))].ID
		}
		key := actor + string(kind) + target
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := s.engagement.ToggleLike(ctx, actor, kind, target); err != nil {
			if skippable(err) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []models.User, videos []models.Video, count int) (int, error) {
	var roots []*models.Comment
	created := 0
	for attempt := 0; attempt < count*2 && created < count; attempt++ {
		in := engagement.NewComment{
			OwnerID:    users[s.rng.Intn(len(users))].ID,
			TargetKind: models.CommentOnVideo,
			TargetID:   videos[s.rng.Intn(len(videos))].ID,
			Content:    gofakeit.HipsterSentence(),
		}
		if len(roots) > 0 && s.rng.Float32() < 0.3 {
			parent := roots[s.rng.Intn(len(roots))]
			in.TargetID = parent.TargetID
			in.ParentID = &parent.ID
		}
		comment, err := s.engagement.AddComment(ctx, in)
		if err != nil {
			if skippable(err) {
				continue
			}
			return created, err
		}
		if comment.ParentID == nil {
			roots = append(roots, comment)
		}
		created++
	}
	return created, nil
}

// seedViews logs views from signed-in users and from anonymous IPs, and
// records watch history for the signed-in ones.
func (s *Seeder) seedViews(ctx context.Context, users []models.User, videos []models.Video, count int) (int, error) {
	counted := 0
	for i := 0; i < count; i++ {
		video := videos[s.rng.Intn(len(videos))]
		viewer := engagement.Viewer{IP: gofakeit.IPv4Address()}
		if s.rng.Float32() < 0.6 {
			viewer = engagement.Viewer{UserID: users[s.rng.Intn(len(users))].ID}
		}

		res, err := s.engagement.LogView(ctx, video.ID, viewer)
		if err != nil {
			if skippable(err) {
				continue
			}
			return counted, err
		}
		if res.Counted {
			counted++
		}
		if viewer.UserID != "" {
			if err := s.history.Add(ctx, viewer.UserID, video.ID); err != nil {
				return counted, err
			}
		}
	}
	return counted, nil
}

// Clean hard-deletes every seeded table, children first.
func (s *Seeder) Clean(ctx context.Context) error {
	tables := []string{
		"notifications", "playlist_entries", "playlists", "views", "likes",
		"subscriptions", "comments", "posts", "video_tags", "videos", "tags", "users",
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}
