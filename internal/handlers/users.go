package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

// ChannelResponse is a user profile seen as a channel.
type ChannelResponse struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	AvatarURL        string `json:"avatar"`
	CoverImageURL    string `json:"coverImage"`
	SubscribersCount int64  `json:"subscribersCount"`
	SubscribedCount  int64  `json:"channelsSubscribedToCount"`
	VideosCount      int64  `json:"videosCount"`
	IsSubscribed     bool   `json:"isSubscribed"`
}

// GetChannel returns a channel profile with its counts and whether the
// caller is subscribed.
func (h *Handlers) GetChannel(c *gin.Context) {
	channelID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	db := h.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", channelID).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}

	resp := ChannelResponse{
		ID:               user.ID,
		Username:         user.Username,
		FullName:         user.FullName,
		Bio:              user.Bio,
		AvatarURL:        user.AvatarURL,
		CoverImageURL:    user.CoverImageURL,
		SubscribersCount: user.SubscribersCount,
	}
	viewerID := util.OptionalUserID(c)
	if err := db.Model(&models.Video{}).
		Where("videos.owner_id = ? AND videos.is_published = ?", user.ID, true).
		Scopes(models.VisibleTo(viewerID)).
		Count(&resp.VideosCount).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}
	if err := db.Model(&models.Subscription{}).
		Where("subscriber_id = ?", user.ID).
		Count(&resp.SubscribedCount).Error; err != nil {
		respondServiceError(c, err, "channel")
		return
	}
	if viewerID != "" && viewerID != user.ID {
		subscribed, err := h.engagement.IsSubscribed(ctx, viewerID, user.ID)
		if err != nil {
			respondServiceError(c, err, "channel")
			return
		}
		resp.IsSubscribed = subscribed
	}

	util.RespondOK(c, resp, "channel fetched successfully")
}

// GetChannelVideos lists a channel's videos, newest first. Drafts are only
// included for the owner, subscriber-only videos only for subscribers.
func (h *Handlers) GetChannelVideos(c *gin.Context) {
	channelID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	viewerID := util.OptionalUserID(c)
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		q := h.db.WithContext(c.Request.Context()).Model(&models.Video{}).Where("videos.owner_id = ?", channelID)
		if viewerID != channelID {
			q = q.Scopes(models.VisibleTo(viewerID))
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	var videos []models.Video
	if err := scope().Preload("Owner").Preload("Tags").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&videos).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, total), "videos fetched successfully")
}

// GetWatchHistory returns the caller's watched videos, most recent first.
func (h *Handlers) GetWatchHistory(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	videos, err := h.history.Videos(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "watch history")
		return
	}
	util.RespondOK(c, toVideoResponses(videos), "watch history fetched successfully")
}

// ClearWatchHistory empties the caller's watch history.
func (h *Handlers) ClearWatchHistory(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.history.Clear(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err, "watch history")
		return
	}
	util.RespondOK(c, []VideoResponse{}, "watch history cleared")
}
