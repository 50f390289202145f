package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/cache"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/util"
	"gorm.io/gorm"
)

// LikeState is returned by the toggle and status endpoints.
type LikeState struct {
	IsLiked    bool  `json:"isLiked"`
	LikesCount int64 `json:"likesCount"`
}

func (h *Handlers) likeTarget(c *gin.Context) (models.LikeKind, string, bool) {
	kind, err := engagement.ParseLikeKind(c.Param("type"))
	if err != nil {
		util.RespondBadRequest(c, "type must be one of video, post or comment")
		return "", "", false
	}
	targetID, ok := util.ParseID(c, "id")
	if !ok {
		return "", "", false
	}
	return kind, targetID, true
}

// ToggleLike likes or unlikes a video, post or comment.
func (h *Handlers) ToggleLike(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	kind, targetID, ok := h.likeTarget(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	res, err := h.engagement.ToggleLike(ctx, userID, kind, targetID)
	if err != nil {
		respondServiceError(c, err, string(kind))
		return
	}

	if kind == models.LikeKindVideo {
		cache.Invalidate(ctx, h.cache, cache.VideoKey(targetID))
	}
	if res.Active {
		notify.LogFailure(h.notifier.OnLike(ctx, userID, kind, targetID), "like")
	}

	msg := "unliked successfully"
	if res.Active {
		msg = "liked successfully"
	}
	util.RespondOK(c, LikeState{IsLiked: res.Active, LikesCount: res.Count}, msg)
}

// GetLikeStatus reports the caller's like state and the target's count.
func (h *Handlers) GetLikeStatus(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	kind, targetID, ok := h.likeTarget(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var model interface{}
	switch kind {
	case models.LikeKindVideo:
		model = &models.Video{}
	case models.LikeKindPost:
		model = &models.Post{}
	default:
		model = &models.Comment{}
	}
	var counts []int64
	if err := h.db.WithContext(ctx).Model(model).Where("id = ?", targetID).
		Limit(1).Pluck("likes_count", &counts).Error; err != nil {
		respondServiceError(c, err, string(kind))
		return
	}
	if len(counts) == 0 {
		util.RespondNotFound(c, string(kind))
		return
	}

	liked, err := h.engagement.IsLiked(ctx, userID, kind, targetID)
	if err != nil {
		respondServiceError(c, err, string(kind))
		return
	}
	util.RespondOK(c, LikeState{IsLiked: liked, LikesCount: counts[0]}, "like status fetched successfully")
}

// GetLikedVideos lists videos the caller liked, most recently liked first.
func (h *Handlers) GetLikedVideos(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		return h.db.WithContext(c.Request.Context()).Model(&models.Video{}).
			Joins("JOIN likes ON likes.target_id = videos.id AND likes.kind = ? AND likes.liked_by = ? AND likes.deleted_at IS NULL",
				models.LikeKindVideo, userID).
			Scopes(models.VisibleTo(userID))
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	var videos []models.Video
	if err := scope().Preload("Owner").Preload("Tags").
		Order("likes.created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&videos).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, total), "liked videos fetched successfully")
}
