package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/cache"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTagsPerVideo = 10

// VideoResponse is a video with its owner summary and, for signed-in callers,
// their like state.
type VideoResponse struct {
	models.Video
	Owner   *models.PublicUser `json:"owner"`
	IsLiked *bool              `json:"isLiked,omitempty"`
}

func toVideoResponse(v models.Video) VideoResponse {
	return VideoResponse{Video: v, Owner: v.Owner.Public()}
}

func toVideoResponses(videos []models.Video) []VideoResponse {
	out := make([]VideoResponse, len(videos))
	for i := range videos {
		out[i] = toVideoResponse(videos[i])
	}
	return out
}

type publishVideoRequest struct {
	Title           string `form:"title" binding:"required,notblank,max=200"`
	Description     string `form:"description" binding:"max=5000"`
	Tags            string `form:"tags"`
	IsPublished     string `form:"isPublished"`
	SubscribersOnly string `form:"subscribersOnly"`
}

// PublishVideo uploads a video with its thumbnail and stores the metadata.
func (h *Handlers) PublishVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req publishVideoRequest
	if !validation.Bind(c, &req) {
		return
	}
	tagNames, apiErr := parseTagNames(req.Tags)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}

	videoFile, err := h.uploadFormFile(c, "video", storage.KindVideo, "videos", userID)
	if stderrors.Is(err, errNoFile) {
		util.RespondWithAPIError(c, errors.ValidationError("video", "video file is required"))
		return
	}
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}

	thumb, err := h.uploadFormFile(c, "thumbnail", storage.KindImage, "thumbnails", userID)
	if err != nil {
		h.deleteStored(c, videoFile.Key)
		if stderrors.Is(err, errNoFile) {
			util.RespondWithAPIError(c, errors.ValidationError("thumbnail", "thumbnail is required"))
			return
		}
		respondServiceError(c, err, "thumbnail")
		return
	}

	video := models.Video{
		OwnerID:         userID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		VideoURL:        videoFile.URL,
		VideoKey:        videoFile.Key,
		ThumbnailURL:    thumb.URL,
		ThumbnailKey:    thumb.Key,
		Duration:        videoFile.Duration,
		IsPublished:     util.ParseBool(req.IsPublished, true),
		SubscribersOnly: util.ParseBool(req.SubscribersOnly, false),
	}

	ctx := c.Request.Context()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := resolveTags(tx, tagNames, userID)
		if err != nil {
			return err
		}
		video.Tags = tags
		return tx.Omit("Tags.*").Create(&video).Error
	})
	if err != nil {
		h.deleteStored(c, videoFile.Key, thumb.Key)
		respondServiceError(c, err, "video")
		return
	}

	saved, err := h.loadVideo(c, video.ID)
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}
	h.afterVideoChange(c, saved)
	if saved.IsPublished {
		notify.LogFailure(h.notifier.OnNewVideo(ctx, saved), "new_video")
	}

	logger.Log.Info("Video published",
		logger.WithUserID(userID),
		logger.WithVideoID(saved.ID),
		zap.Float64("duration", saved.Duration),
	)
	util.RespondCreated(c, toVideoResponse(*saved), "video uploaded successfully")
}

var videoSortColumns = map[string]string{
	"createdAt":  "created_at",
	"views":      "views",
	"likesCount": "likes_count",
	"duration":   "duration",
	"title":      "title",
}

// ListVideos lists videos with optional text, channel and tag filters. Only
// published videos the caller may watch are listed, unless userId names the
// caller.
func (h *Handlers) ListVideos(c *gin.Context) {
	viewerID := util.OptionalUserID(c)
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		q := h.db.WithContext(c.Request.Context()).Model(&models.Video{})
		if ownerID := c.Query("userId"); ownerID != "" {
			if !util.IsValidID(ownerID) {
				return q.Where("1 = 0")
			}
			q = q.Where("videos.owner_id = ?", ownerID)
			if ownerID != viewerID {
				q = q.Scopes(models.VisibleTo(viewerID))
			}
		} else {
			q = q.Where("videos.is_published = ?", true).Scopes(models.VisibleTo(viewerID))
		}
		if text := strings.TrimSpace(c.Query("query")); text != "" {
			like := likePattern(text)
			q = q.Where(`(LOWER(videos.title) LIKE ? ESCAPE '\' OR LOWER(videos.description) LIKE ? ESCAPE '\')`, like, like)
		}
		if tag := strings.ToLower(strings.TrimSpace(c.Query("tag"))); tag != "" {
			q = q.Where("videos.id IN (?)", h.db.Table("video_tags").
				Select("video_tags.video_id").
				Joins("JOIN tags ON tags.id = video_tags.tag_id AND tags.deleted_at IS NULL").
				Where("tags.name = ?", tag))
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
		Order(videoOrder(c.Query("sortBy"), c.Query("sortType"))).
		Offset(page.Offset()).Limit(page.Limit).
		Find(&videos).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}

	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, total), "videos fetched successfully")
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(text))
	return "%" + escaped + "%"
}

func videoOrder(sortBy, sortType string) string {
	col, ok := videoSortColumns[sortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(sortType, "asc") {
		dir = "ASC"
	}
	return "videos." + col + " " + dir + ", videos.id " + dir
}

// GetVideo returns one video if the caller may see it. Anonymous responses
// for public videos are cached.
func (h *Handlers) GetVideo(c *gin.Context) {
	videoID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	viewerID := util.OptionalUserID(c)
	ctx := c.Request.Context()

	if viewerID == "" {
		var cached VideoResponse
		if cache.GetJSON(ctx, h.cache, "video", cache.VideoKey(videoID), &cached) {
			util.RespondOK(c, cached, "video fetched successfully")
			return
		}
	}

	video, err := h.loadVideo(c, videoID)
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}
	if err := h.engagement.CheckVideoAccess(ctx, video, viewerID); err != nil {
		respondServiceError(c, err, "video")
		return
	}

	resp := toVideoResponse(*video)
	if viewerID == "" {
		if video.IsPublished && !video.SubscribersOnly {
			cache.SetJSON(ctx, h.cache, cache.VideoKey(videoID), resp, videoCacheTTL)
		}
	} else {
		liked, err := h.engagement.IsLiked(ctx, viewerID, models.LikeKindVideo, videoID)
		if err != nil {
			respondServiceError(c, err, "video")
			return
		}
		resp.IsLiked = &liked
	}
	util.RespondOK(c, resp, "video fetched successfully")
}

type updateVideoRequest struct {
	Title           *string `form:"title" json:"title" binding:"omitempty,notblank,max=200"`
	Description     *string `form:"description" json:"description" binding:"omitempty,max=5000"`
	Tags            *string `form:"tags" json:"tags"`
	SubscribersOnly *string `form:"subscribersOnly" json:"subscribersOnly"`
}

// UpdateVideo changes metadata, replaces the tag set and optionally the
// thumbnail. Owner only.
func (h *Handlers) UpdateVideo(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	var req updateVideoRequest
	if !validation.Bind(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SubscribersOnly != nil {
		updates["subscribers_only"] = util.ParseBool(*req.SubscribersOnly, video.SubscribersOnly)
	}
	var tagNames []string
	if req.Tags != nil {
		names, apiErr := parseTagNames(*req.Tags)
		if apiErr != nil {
			util.RespondWithAPIError(c, apiErr)
			return
		}
		tagNames = names
	}

	var oldThumbKey string
	thumb, err := h.uploadFormFile(c, "thumbnail", storage.KindImage, "thumbnails", video.OwnerID)
	switch {
	case stderrors.Is(err, errNoFile):
	case err != nil:
		respondServiceError(c, err, "thumbnail")
		return
	default:
		updates["thumbnail_url"] = thumb.URL
		updates["thumbnail_key"] = thumb.Key
		oldThumbKey = video.ThumbnailKey
	}

	if len(updates) == 0 && req.Tags == nil {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Video{}).Where("id = ?", video.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Tags == nil {
			return nil
		}
		tags, err := resolveTags(tx, tagNames, video.OwnerID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Video{ID: video.ID}).Omit("Tags.*").Association("Tags").Replace(tags)
	})
	if err != nil {
		if thumb != nil {
			h.deleteStored(c, thumb.Key)
		}
		respondServiceError(c, err, "video")
		return
	}
	h.deleteStored(c, oldThumbKey)

	saved, err := h.loadVideo(c, video.ID)
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}
	h.afterVideoChange(c, saved)
	util.RespondOK(c, toVideoResponse(*saved), "video updated successfully")
}

// DeleteVideo soft-deletes a video. Its stored media is removed later by the
// maintenance worker.
func (h *Handlers) DeleteVideo(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&models.Video{}, "id = ?", video.ID).Error; err != nil {
		respondServiceError(c, err, "video")
		return
	}
	h.search.Remove(ctx, video.ID)
	cache.Invalidate(ctx, h.cache, cache.VideoKey(video.ID))

	logger.Log.Info("Video deleted", logger.WithUserID(video.OwnerID), logger.WithVideoID(video.ID))
	util.RespondOK(c, gin.H{"id": video.ID}, "video deleted successfully")
}

// TogglePublishStatus flips the published flag. Owner only.
func (h *Handlers) TogglePublishStatus(c *gin.Context) {
	video, ok := h.ownedVideo(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	res := h.db.WithContext(ctx).Model(&models.Video{}).
		Where("id = ? AND is_published = ?", video.ID, video.IsPublished).
		Update("is_published", !video.IsPublished)
	if res.Error != nil {
		respondServiceError(c, res.Error, "video")
		return
	}
	if res.RowsAffected == 0 {
		util.RespondConflict(c, "video was modified concurrently, try again")
		return
	}

	saved, err := h.loadVideo(c, video.ID)
	if err != nil {
		respondServiceError(c, err, "video")
		return
	}
	h.afterVideoChange(c, saved)
	util.RespondOK(c, gin.H{"id": saved.ID, "isPublished": saved.IsPublished}, "publish status toggled successfully")
}

func (h *Handlers) loadVideo(c *gin.Context, id string) (*models.Video, error) {
	var video models.Video
	if err := h.db.WithContext(c.Request.Context()).Preload("Owner").Preload("Tags").
		First(&video, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// ownedVideo loads the :id video and checks that the caller owns it. It
// writes the error response and returns false otherwise.
func (h *Handlers) ownedVideo(c *gin.Context) (*models.Video, bool) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}
	videoID, ok := util.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	var video models.Video
	if err := h.db.WithContext(c.Request.Context()).First(&video, "id = ?", videoID).Error; err != nil {
		respondServiceError(c, err, "video")
		return nil, false
	}
	if !video.IsOwnedBy(userID) {
		util.RespondForbidden(c, "only the owner can modify this video")
		return nil, false
	}
	return &video, true
}

// afterVideoChange keeps the search index and the detail cache in step with
// the database.
func (h *Handlers) afterVideoChange(c *gin.Context, v *models.Video) {
	ctx := c.Request.Context()
	h.search.Sync(ctx, v)
	cache.Invalidate(ctx, h.cache, cache.VideoKey(v.ID))
}
