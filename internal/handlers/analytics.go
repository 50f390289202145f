package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 90
	topVideosLimit       = 5
)

// ChannelStats summarizes the caller's channel.
type ChannelStats struct {
	TotalVideos      int64           `json:"totalVideos"`
	PublishedVideos  int64           `json:"publishedVideos"`
	TotalViews       int64           `json:"totalViews"`
	TotalLikes       int64           `json:"totalLikes"`
	TotalComments    int64           `json:"totalComments"`
	SubscribersCount int64           `json:"subscribersCount"`
	TopVideos        []VideoResponse `json:"topVideos"`
}

// DailyViews is one point of a view series. Date is YYYY-MM-DD in UTC.
type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// VideoStats is the owner's view of one video.
type VideoStats struct {
	VideoID       string       `json:"videoId"`
	Title         string       `json:"title"`
	Views         int64        `json:"views"`
	LikesCount    int64        `json:"likesCount"`
	CommentsCount int64        `json:"commentsCount"`
	Daily         []DailyViews `json:"daily"`
}

// GetChannelStats returns totals and the top videos of the caller's channel.
func (h *Handlers) GetChannelStats(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := db.Select("id", "subscribers_count").First(&user, "id = ?", userID).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}

	var totals struct {
		Videos    int64
		Published int64
		Views     int64
		Likes     int64
		Comments  int64
	}
	if err := db.Model(&models.Video{}).
		Select(`COUNT(*) AS videos,
			COALESCE(SUM(CASE WHEN is_published THEN 1 ELSE 0 END), 0) AS published,
			COALESCE(SUM(views), 0) AS views,
			COALESCE(SUM(likes_count), 0) AS likes,
			COALESCE(SUM(comments_count), 0) AS comments`).
		Where("owner_id = ?", userID).
		Scan(&totals).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}

	var top []models.Video
	if err := db.Preload("Owner").Preload("Tags").
		Where("owner_id = ?", userID).
		Order("views DESC, created_at DESC").
		Limit(topVideosLimit).
		Find(&top).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}

	util.RespondOK(c, ChannelStats{
		TotalVideos:      totals.Videos,
		PublishedVideos:  totals.Published,
		TotalViews:       totals.Views,
		TotalLikes:       totals.Likes,
		TotalComments:    totals.Comments,
		SubscribersCount: user.SubscribersCount,
		TopVideos:        toVideoResponses(top),
	}, "channel stats fetched successfully")
}

// GetChannelViews returns the daily unique-view series over the caller's
// videos for the last ?days= days.
func (h *Handlers) GetChannelViews(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	days, ok := parseDays(c)
	if !ok {
		return
	}
	series, err := h.dailyViews(c, days, func(q *gorm.DB) *gorm.DB {
		return q.Joins("JOIN videos ON videos.id = views.video_id").Where("videos.owner_id = ?", userID)
	})
	if err != nil {
		respondServiceError(c, err, "analytics")
		return
	}
	util.RespondOK(c, series, "channel views fetched successfully")
}

// GetVideoStats returns counters and the daily view series of one of the
// caller's videos.
func (h *Handlers) GetVideoStats(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	days, ok := parseDays(c)
	if !ok {
		return
	}
	series, err := h.dailyViews(c, days, func(q *gorm.DB) *gorm.DB {
		return q.Where("views.video_id = ?", video.ID)
	})
	if err != nil {
		respondServiceError(c, err, "analytics")
		return
	}
	util.RespondOK(c, VideoStats{
		VideoID:       video.ID,
		Title:         video.Title,
		Views:         video.Views,
		LikesCount:    video.LikesCount,
		CommentsCount: video.CommentsCount,
		Daily:         series,
	}, "video stats fetched successfully")
}

func parseDays(c *gin.Context) (int, bool) {
	days := util.ParseInt(c.Query("days"), defaultAnalyticsDays)
	if days < 1 || days > maxAnalyticsDays {
		util.RespondBadRequest(c, "days must be between 1 and 90")
		return 0, false
	}
	return days, true
}

// dailyViews counts view rows per UTC day for the last days days, oldest
// first, with empty days filled in as zero.
func (h *Handlers) dailyViews(c *gin.Context, days int, filter func(*gorm.DB) *gorm.DB) ([]DailyViews, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	day := dayExpr(h.db)
	var rows []DailyViews
	q := h.db.WithContext(c.Request.Context()).Table("views").
		Select(day+" AS date, COUNT(*) AS views").
		Where("views.created_at >= ?", start)
	if err := filter(q).Group(day).Scan(&rows).Error; err != nil {
		return nil, err
	}

	byDay := make(map[string]int64, len(rows))
	for _, r := range rows {
		byDay[r.Date] = r.Views
	}
	series := make([]DailyViews, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		series = append(series, DailyViews{Date: key, Views: byDay[key]})
	}
	return series, nil
}

// dayExpr renders views.created_at as a YYYY-MM-DD string in the current
// dialect.
func dayExpr(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "to_char(views.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "strftime('%Y-%m-%d', views.created_at)"
}
