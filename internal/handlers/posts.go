package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"gorm.io/gorm"
)

// PostResponse is a community post with its author summary.
type PostResponse struct {
	models.Post
	Owner   *models.PublicUser `json:"owner"`
	IsLiked *bool              `json:"isLiked,omitempty"`
}

type postRequest struct {
	Content string `json:"content" form:"content" binding:"required,notblank,max=5000"`
}

// CreatePost publishes a community post, optionally with an image.
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req postRequest
	if !validation.Bind(c, &req) {
		return
	}

	post := models.Post{OwnerID: userID, Content: strings.TrimSpace(req.Content)}
	img, err := h.uploadFormFile(c, "image", storage.KindImage, "posts", userID)
	switch {
	case stderrors.Is(err, errNoFile):
	case err != nil:
		respondServiceError(c, err, "image")
		return
	default:
		post.ImageURL = img.URL
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&post).Error; err != nil {
		if img != nil {
			h.deleteStored(c, img.Key)
		}
		respondServiceError(c, err, "post")
		return
	}
	h.respondPost(c, post.ID, true)
}

// GetPost returns one community post.
func (h *Handlers) GetPost(c *gin.Context) {
	postID, ok := util.ParseID(c, "id")
	if !ok {
		return
	}
	h.respondPost(c, postID, false)
}

func (h *Handlers) respondPost(c *gin.Context, postID string, created bool) {
	ctx := c.Request.Context()
	var post models.Post
	if err := h.db.WithContext(ctx).Preload("Owner").First(&post, "id = ?", postID).Error; err != nil {
		respondServiceError(c, err, "post")
		return
	}
	resp := PostResponse{Post: post, Owner: post.Owner.Public()}
	if viewerID := util.OptionalUserID(c); viewerID != "" {
		liked, err := h.engagement.IsLiked(ctx, viewerID, models.LikeKindPost, postID)
		if err != nil {
			respondServiceError(c, err, "post")
			return
		}
		resp.IsLiked = &liked
	}
	if created {
		util.RespondCreated(c, resp, "post created successfully")
		return
	}
	util.RespondOK(c, resp, "post fetched successfully")
}

// GetUserPosts lists a user's community posts, newest first.
func (h *Handlers) GetUserPosts(c *gin.Context) {
	ownerID, ok := util.ParseID(c, "userId")
	if !ok {
		return
	}
	page := util.ParsePageRequest(c)
	scope := func() *gorm.DB {
		return h.db.WithContext(c.Request.Context()).Model(&models.Post{}).Where("owner_id = ?", ownerID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		respondServiceError(c, err, "posts")
		return
	}
	var posts []models.Post
	if err := scope().Preload("Owner").
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&posts).Error; err != nil {
		respondServiceError(c, err, "posts")
		return
	}

	out := make([]PostResponse, len(posts))
	for i := range posts {
		out[i] = PostResponse{Post: posts[i], Owner: posts[i].Owner.Public()}
	}
	util.RespondPaginated(c, out, util.NewPagination(page, total), "posts fetched successfully")
}

// UpdatePost edits the caller's post.
func (h *Handlers) UpdatePost(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	var req postRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Post{}).Where("id = ?", post.ID).
		Update("content", strings.TrimSpace(req.Content)).Error; err != nil {
		respondServiceError(c, err, "post")
		return
	}
	h.respondPost(c, post.ID, false)
}

// DeletePost soft-deletes the caller's post.
func (h *Handlers) DeletePost(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(&models.Post{}, "id = ?", post.ID).Error; err != nil {
		respondServiceError(c, err, "post")
		return
	}
	util.RespondOK(c, gin.H{"id": post.ID}, "post deleted successfully")
}

func (h *Handlers) ownedPost(c *gin.Context) (*models.Post, bool) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return nil, false
	}
	postID, ok := util.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := h.db.WithContext(c.Request.Context()).First(&post, "id = ?", postID).Error; err != nil {
		respondServiceError(c, err, "post")
		return nil, false
	}
	if post.OwnerID != userID {
		util.RespondForbidden(c, "only the owner can modify this post")
		return nil, false
	}
	return &post, true
}
