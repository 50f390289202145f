package handlers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"gorm.io/gorm"
)

var tagNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,49}$`)

// normalizeTagName lowercases and trims a tag and strips a leading '#'.
func normalizeTagName(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// parseTagNames turns a comma list into distinct normalized names.
func parseTagNames(raw string) ([]string, *errors.APIError) {
	seen := map[string]bool{}
	var names []string
	for _, part := range util.SplitCSV(raw) {
		name := normalizeTagName(part)
		if !tagNamePattern.MatchString(name) {
			return nil, errors.ValidationError("tags", fmt.Sprintf("invalid tag %q", part))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) > maxTagsPerVideo {
		return nil, errors.ValidationError("tags", fmt.Sprintf("at most %d tags are allowed", maxTagsPerVideo))
	}
	return names, nil
}

// resolveTags finds or creates each named tag inside tx.
func resolveTags(tx *gorm.DB, names []string, creatorID string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		err := tx.Where(models.Tag{Name: name}).
			Attrs(models.Tag{CreatedByID: &creatorID}).
			FirstOrCreate(&tag).Error
		if err != nil {
			return nil, fmt.Errorf("resolve tag %s: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// TagResponse is a tag with the number of live published videos using it.
type TagResponse struct {
	models.Tag
	VideosCount int64 `json:"videosCount"`
}

// ListTags lists tags, most used first, optionally filtered by a name prefix.
func (h *Handlers) ListTags(c *gin.Context) {
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		q := h.db.WithContext(c.Request.Context()).Model(&models.Tag{})
		if text := normalizeTagName(c.Query("query")); text != "" {
			q = q.Where(`tags.name LIKE ? ESCAPE '\'`, strings.TrimPrefix(likePattern(text), "%"))
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "tags")
		return
	}

	usage := h.db.Table("video_tags").
		Select("video_tags.tag_id, COUNT(*) AS videos_count").
		Joins("JOIN videos ON videos.id = video_tags.video_id AND videos.deleted_at IS NULL AND videos.is_published = ? AND videos.subscribers_only = ?", true, false).
		Group("video_tags.tag_id")

	var tags []TagResponse
	if err := scope().
		Select("tags.*, COALESCE(tag_usage.videos_count, 0) AS videos_count").
		Joins("LEFT JOIN (?) AS tag_usage ON tag_usage.tag_id = tags.id", usage).
		Order("videos_count DESC, tags.name ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Scan(&tags).Error; err != nil {
		respondServiceError(c, err, "tags")
		return
	}
	if tags == nil {
		tags = []TagResponse{}
	}

	util.RespondPaginated(c, tags, util.NewPagination(page, total), "tags fetched successfully")
}

type createTagRequest struct {
	Name        string `json:"name" binding:"required,notblank"`
	Description string `json:"description" binding:"max=300"`
}

// CreateTag creates a tag owned by the caller. Names are unique among live
// tags.
func (h *Handlers) CreateTag(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req createTagRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	name := normalizeTagName(req.Name)
	if !tagNamePattern.MatchString(name) {
		util.RespondWithAPIError(c, errors.ValidationError("name", "must be 1-50 lowercase letters, digits, dashes or underscores"))
		return
	}

	ctx := c.Request.Context()
	var existing int64
	if err := h.db.WithContext(ctx).Model(&models.Tag{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		respondServiceError(c, err, "tag")
		return
	}
	if existing > 0 {
		util.RespondWithAPIError(c, errors.AlreadyExists("tag"))
		return
	}

	tag := models.Tag{Name: name, Description: strings.TrimSpace(req.Description), CreatedByID: &userID}
	if err := h.db.WithContext(ctx).Create(&tag).Error; err != nil {
		respondServiceError(c, err, "tag")
		return
	}
	util.RespondCreated(c, TagResponse{Tag: tag}, "tag created successfully")
}

// GetTagVideos lists published videos carrying the named tag that the caller
// may watch.
func (h *Handlers) GetTagVideos(c *gin.Context) {
	name := normalizeTagName(c.Param("name"))
	var tag models.Tag
	if err := h.db.WithContext(c.Request.Context()).Where("name = ?", name).Take(&tag).Error; err != nil {
		respondServiceError(c, err, "tag")
		return
	}
	page := util.ParsePageRequest(c)

	scope := func() *gorm.DB {
		return h.db.WithContext(c.Request.Context()).Model(&models.Video{}).
			Joins("JOIN video_tags ON video_tags.video_id = videos.id AND video_tags.tag_id = ?", tag.ID).
			Scopes(models.VisibleTo(util.OptionalUserID(c)))
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	var videos []models.Video
	if err := scope().Preload("Owner").Preload("Tags").
		Order("videos.created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&videos).Error; err != nil {
		respondServiceError(c, err, "videos")
		return
	}
	util.RespondPaginated(c, toVideoResponses(videos), util.NewPagination(page, total), "videos fetched successfully")
}

// DeleteTag removes a tag the caller created and detaches it from videos.
func (h *Handlers) DeleteTag(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	tagID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.Take(&tag, "id = ?", tagID).Error; err != nil {
			return err
		}
		if tag.CreatedByID == nil || *tag.CreatedByID != userID {
			return errors.Forbidden("only the creator can delete this tag")
		}
		if err := tx.Exec("DELETE FROM video_tags WHERE tag_id = ?", tagID).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		respondServiceError(c, err, "tag")
		return
	}
	util.RespondOK(c, gin.H{"id": tagID}, "tag deleted successfully")
}
