package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"gorm.io/gorm"
)

// CommentResponse is a comment with its author summary.
type CommentResponse struct {
	models.Comment
	Owner   *models.PublicUser `json:"owner"`
	IsLiked *bool              `json:"isLiked,omitempty"`
}

func parseCommentTarget(s string) (models.CommentTarget, bool) {
	t := models.CommentTarget(strings.TrimSuffix(strings.ToLower(s), "s"))
	return t, t.Valid()
}

func (h *Handlers) commentTarget(c *gin.Context) (models.CommentTarget, string, bool) {
	kind, ok := parseCommentTarget(c.Param("kind"))
	if !ok {
		util.RespondBadRequest(c, "comments can target a video or a post")
		return "", "", false
	}
	targetID, ok := util.ParseID(c, "targetId")
	if !ok {
		return "", "", false
	}
	return kind, targetID, true
}

// ListComments lists top-level comments on a video or post, newest first.
// With ?parentId= it lists the replies to that comment instead.
func (h *Handlers) ListComments(c *gin.Context) {
	kind, targetID, ok := h.commentTarget(c)
	if !ok {
		return
	}
	viewerID := util.OptionalUserID(c)
	ctx := c.Request.Context()

	if kind == models.CommentOnVideo {
		var video models.Video
		if err := h.db.WithContext(ctx).First(&video, "id = ?", targetID).Error; err != nil {
			respondServiceError(c, err, "video")
			return
		}
		if err := h.engagement.CheckVideoAccess(ctx, &video, viewerID); err != nil {
			respondServiceError(c, err, "video")
			return
		}
	} else {
		var n int64
		if err := h.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", targetID).Count(&n).Error; err != nil {
			respondServiceError(c, err, "post")
			return
		}
		if n == 0 {
			util.RespondNotFound(c, "post")
			return
		}
	}

	parentID := c.Query("parentId")
	if parentID != "" && !util.IsValidID(parentID) {
		util.RespondBadRequest(c, "invalid parentId format")
		return
	}

	page := util.ParsePageRequest(c)
	scope := func() *gorm.DB {
		q := h.db.WithContext(ctx).Model(&models.Comment{}).
			Where("target_kind = ? AND target_id = ?", kind, targetID)
		if parentID != "" {
			return q.Where("parent_id = ?", parentID)
		}
		return q.Where("parent_id IS NULL")
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "comments")
		return
	}
	var comments []models.Comment
	if err := scope().Preload("Owner").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&comments).Error; err != nil {
		respondServiceError(c, err, "comments")
		return
	}

	liked := map[string]bool{}
	if viewerID != "" && len(comments) > 0 {
		ids := make([]string, len(comments))
		for i := range comments {
			ids[i] = comments[i].ID
		}
		var likedIDs []string
		if err := h.db.WithContext(ctx).Model(&models.Like{}).
			Where("liked_by = ? AND kind = ? AND target_id IN ?", viewerID, models.LikeKindComment, ids).
			Pluck("target_id", &likedIDs).Error; err != nil {
			respondServiceError(c, err, "comments")
			return
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	out := make([]CommentResponse, len(comments))
	for i := range comments {
		out[i] = CommentResponse{Comment: comments[i], Owner: comments[i].Owner.Public()}
		if viewerID != "" {
			isLiked := liked[comments[i].ID]
			out[i].IsLiked = &isLiked
		}
	}
	util.RespondPaginated(c, out, util.NewPagination(page, total), "comments fetched successfully")
}

type addCommentRequest struct {
	Content  string  `json:"content" binding:"required,notblank,max=2000"`
	ParentID *string `json:"parentId" binding:"omitempty,uuid"`
}

// AddComment comments on a video or post, or replies to a comment on it.
func (h *Handlers) AddComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	kind, targetID, ok := h.commentTarget(c)
	if !ok {
		return
	}
	var req addCommentRequest
	if !validation.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.engagement.AddComment(ctx, engagement.NewComment{
		OwnerID:    userID,
		TargetKind: kind,
		TargetID:   targetID,
		ParentID:   req.ParentID,
		Content:    strings.TrimSpace(req.Content),
	})
	if err != nil {
		respondServiceError(c, err, string(kind))
		return
	}
	notify.LogFailure(h.notifier.OnComment(ctx, comment), "comment")

	var owner models.User
	if err := h.db.WithContext(ctx).First(&owner, "id = ?", userID).Error; err == nil {
		comment.Owner = &owner
	}
	util.RespondCreated(c, CommentResponse{Comment: *comment, Owner: comment.Owner.Public()}, "comment added successfully")
}

// UpdateComment edits the caller's comment and marks it edited.
func (h *Handlers) UpdateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	commentID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,notblank,max=2000"`
	}
	if !validation.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var comment models.Comment
	if err := h.db.WithContext(ctx).Preload("Owner").First(&comment, "id = ?", commentID).Error; err != nil {
		respondServiceError(c, err, "comment")
		return
	}
	if comment.OwnerID != userID {
		util.RespondForbidden(c, "only the author can edit this comment")
		return
	}

	content := strings.TrimSpace(req.Content)
	if err := h.db.WithContext(ctx).Model(&comment).
		Updates(map[string]interface{}{"content": content, "is_edited": true}).Error; err != nil {
		respondServiceError(c, err, "comment")
		return
	}
	comment.Content = content
	comment.IsEdited = true
	util.RespondOK(c, CommentResponse{Comment: comment, Owner: comment.Owner.Public()}, "comment updated successfully")
}

// DeleteComment removes the caller's comment and decrements the target's
// comment count.
func (h *Handlers) DeleteComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	commentID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.engagement.RemoveComment(c.Request.Context(), commentID, userID); err != nil {
		respondServiceError(c, err, "comment")
		return
	}
	util.RespondOK(c, gin.H{"id": commentID}, "comment deleted successfully")
}
