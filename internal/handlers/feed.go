package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/search"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

// GetSubscriptionFeed lists published videos from the channels the caller
// subscribes to, newest first.
func (h *Handlers) GetSubscriptionFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		channels := h.db.Model(&models.Subscription{}).Select("channel_id").Where("subscriber_id = ?", userID)
		return h.db.WithContext(c.Request.Context()).Model(&models.Video{}).
			Where("videos.owner_id IN (?)", channels).
			Scopes(models.VisibleTo(userID))
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "feed")
		return
	}
	var videos []models.Video
	if err := scope().Preload("Owner").Preload("Tags").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&videos).Error; err != nil {
		respondServiceError(c, err, "feed")
		return
	}
	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, total), "feed fetched successfully")
}

// SearchVideos runs a text search over the published videos the caller may
// watch and returns them in relevance order.
func (h *Handlers) SearchVideos(c *gin.Context) {
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		util.RespondBadRequest(c, "q is required")
		return
	}
	page := util.ParsePageRequest(c)
	ctx := c.Request.Context()
	viewerID := util.OptionalUserID(c)

	q := search.Query{Text: text, Offset: page.Offset(), Limit: page.Limit, ViewerID: viewerID}
	if viewerID != "" {
		var channels []string
		if err := h.db.WithContext(ctx).Model(&models.Subscription{}).
			Where("subscriber_id = ?", viewerID).
			Pluck("channel_id", &channels).Error; err != nil {
			respondServiceError(c, err, "search")
			return
		}
		q.Channels = append(channels, viewerID)
	}

	res, err := h.search.Search(ctx, q)
	if err != nil {
		respondServiceError(c, err, "search")
		return
	}

	videos := []models.Video{}
	if len(res.IDs) > 0 {
		var found []models.Video
		if err := h.db.WithContext(ctx).Preload("Owner").Preload("Tags").
			Where("videos.id IN ? AND videos.is_published = ?", res.IDs, true).
			Scopes(models.VisibleTo(viewerID)).
			Find(&found).Error; err != nil {
			respondServiceError(c, err, "search")
			return
		}
		byID := make(map[string]models.Video, len(found))
		for _, v := range found {
			byID[v.ID] = v
		}
		for _, id := range res.IDs {
			if v, ok := byID[id]; ok {
				videos = append(videos, v)
			}
		}
	}
	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, res.Total), "search results fetched successfully")
}
