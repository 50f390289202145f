package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
)

type updateProfileRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,notblank,max=100"`
	Bio      *string `json:"bio" binding:"omitempty,max=500"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

// UpdateMe changes the caller's name, bio or email.
func (a *AuthHandlers) UpdateMe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !validation.BindJSON(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Email != nil {
		mail := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := a.auth.CheckEmailAvailable(c.Request.Context(), mail, userID); err != nil {
			if stderrors.Is(err, auth.ErrUserExists) {
				util.RespondWithAPIError(c, errors.Conflict("email is already in use"))
				return
			}
			respondServiceError(c, err, "user")
			return
		}
		updates["email"] = mail
	}
	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	a.saveProfile(c, userID, updates, "account details updated successfully")
}

// UpdateAvatar replaces the caller's avatar image.
func (a *AuthHandlers) UpdateAvatar(c *gin.Context) {
	a.updateImage(c, avatarImage)
}

// UpdateCover replaces the caller's cover image.
func (a *AuthHandlers) UpdateCover(c *gin.Context) {
	a.updateImage(c, coverImage)
}

func (a *AuthHandlers) updateImage(c *gin.Context, img profileImage) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	res, err := uploadFormFile(c, a.uploader, img.field, storage.KindImage, img.folder, userID)
	if stderrors.Is(err, errNoFile) {
		util.RespondWithAPIError(c, errors.ValidationError(img.field, img.field+" file is required"))
		return
	}
	if err != nil {
		respondServiceError(c, err, img.field)
		return
	}
	a.saveProfile(c, userID, map[string]interface{}{img.column: res.URL}, img.field+" updated successfully")
}

func (a *AuthHandlers) saveProfile(c *gin.Context, userID string, updates map[string]interface{}, message string) {
	ctx := c.Request.Context()
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		respondServiceError(c, err, "user")
		return
	}
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		respondServiceError(c, err, "user")
		return
	}
	util.RespondOK(c, &user, message)
}
