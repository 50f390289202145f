package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/middleware"
	"github.com/zfogg/vidshare/internal/models"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/util"
	"github.com/zfogg/vidshare/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RefreshTokenCookie carries the refresh token for browser clients.
const RefreshTokenCookie = "refreshToken"

// AuthHandlers serves registration, sessions and account settings.
type AuthHandlers struct {
	db            *gorm.DB
	auth          auth.AuthServiceInterface
	uploader      storage.Uploader
	secureCookies bool
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewAuthHandlers creates auth handlers. Cookie lifetimes follow the token
// lifetimes.
func NewAuthHandlers(db *gorm.DB, svc auth.AuthServiceInterface, uploader storage.Uploader, secureCookies bool, accessTTL, refreshTTL time.Duration) *AuthHandlers {
	return &AuthHandlers{
		db:            db,
		auth:          svc,
		uploader:      uploader,
		secureCookies: secureCookies,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type registerRequest struct {
	Username string `json:"username" form:"username" binding:"required,username"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	FullName string `json:"fullName" form:"fullName" binding:"required,notblank,max=100"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=72"`
	Bio      string `json:"bio" form:"bio" binding:"max=500"`
}

type profileImage struct {
	field  string
	folder string
	column string
}

var (
	avatarImage   = profileImage{field: "avatar", folder: "avatars", column: "avatar_url"}
	coverImage    = profileImage{field: "coverImage", folder: "covers", column: "cover_image_url"}
	profileImages = []profileImage{avatarImage, coverImage}
)

type sessionResponse struct {
	User *models.User `json:"user"`
	*auth.TokenPair
}

// Register creates an account. Multipart bodies may carry avatar and
// coverImage files.
func (a *AuthHandlers) Register(c *gin.Context) {
	var req registerRequest
	if !validation.Bind(c, &req) {
		return
	}
	req.Username = strings.ToLower(req.Username)

	images := map[string]string{}
	var uploaded []string
	for _, img := range profileImages {
		res, err := uploadFormFile(c, a.uploader, img.field, storage.KindImage, img.folder, req.Username)
		if stderrors.Is(err, errNoFile) {
			continue
		}
		if err != nil {
			a.discard(c, uploaded)
			respondServiceError(c, err, img.field)
			return
		}
		images[img.column] = res.URL
		uploaded = append(uploaded, res.Key)
	}

	user, tokens, err := a.auth.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		a.discard(c, uploaded)
		respondServiceError(c, err, "user")
		return
	}

	if len(images) > 0 {
		updates := make(map[string]interface{}, len(images))
		for column, url := range images {
			updates[column] = url
		}
		if err := a.db.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
			logger.Log.Warn("Failed to attach profile images", logger.WithUserID(user.ID), zap.Error(err))
		}
	}

	a.setSessionCookies(c, tokens)
	util.RespondCreated(c, sessionResponse{User: user, TokenPair: tokens}, "user registered successfully")
}

func (a *AuthHandlers) discard(c *gin.Context, keys []string) {
	if a.uploader == nil {
		return
	}
	for _, key := range keys {
		if err := a.uploader.Delete(c.Request.Context(), key); err != nil {
			logger.Log.Warn("Failed to delete orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

// Login accepts either an email or a username.
func (a *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if strings.TrimSpace(identifier) == "" {
		util.RespondWithAPIError(c, errors.ValidationError("email", "email or username is required"))
		return
	}

	user, tokens, err := a.auth.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}

	a.setSessionCookies(c, tokens)
	util.RespondOK(c, sessionResponse{User: user, TokenPair: tokens}, "user logged in successfully")
}

// RefreshToken rotates the session. The token comes from the body or the
// refresh cookie.
func (a *AuthHandlers) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(RefreshTokenCookie)
	}
	if token == "" {
		util.RespondUnauthorized(c, "refresh token is required")
		return
	}

	user, tokens, err := a.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		if stderrors.Is(err, auth.ErrTokenReused) {
			logger.Log.Warn("Refresh token reuse detected", zap.String("ip", c.ClientIP()))
			a.clearSessionCookies(c)
		}
		respondServiceError(c, err, "session")
		return
	}

	a.setSessionCookies(c, tokens)
	util.RespondOK(c, sessionResponse{User: user, TokenPair: tokens}, "access token refreshed")
}

// Logout revokes the refresh token and clears the cookies.
func (a *AuthHandlers) Logout(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := a.auth.Logout(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err, "session")
		return
	}
	a.clearSessionCookies(c)
	util.RespondOK(c, gin.H{}, "user logged out")
}

// Me returns the authenticated user.
func (a *AuthHandlers) Me(c *gin.Context) {
	v, exists := c.Get(util.ContextUser)
	user, _ := v.(*models.User)
	if !exists || user == nil {
		util.RespondUnauthorized(c)
		return
	}
	util.RespondOK(c, user, "current user fetched successfully")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

// ChangePassword replaces the password after checking the current one. Other
// sessions are signed out by the service.
func (a *AuthHandlers) ChangePassword(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !validation.BindJSON(c, &req) {
		return
	}
	if err := a.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if stderrors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondWithAPIError(c, errors.ValidationError("currentPassword", "current password is incorrect"))
			return
		}
		respondServiceError(c, err, "user")
		return
	}
	util.RespondOK(c, gin.H{}, "password changed successfully")
}

// ForgotPassword mails a reset link. It answers 200 whether or not the
// address is registered.
func (a *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !validation.BindJSON(c, &req) {
		return
	}
	if _, err := a.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil && !stderrors.Is(err, auth.ErrUserNotFound) {
		logger.Log.Error("Failed to issue password reset", zap.Error(err))
	}
	util.RespondOK(c, gin.H{}, "if the email is registered, a reset link has been sent")
}

// ResetPassword sets a new password using a mailed token.
func (a *AuthHandlers) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required,min=8,max=72"`
	}
	if !validation.BindJSON(c, &req) {
		return
	}
	if err := a.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondServiceError(c, err, "reset token")
		return
	}
	util.RespondOK(c, gin.H{}, "password has been reset")
}

func (a *AuthHandlers) setSessionCookies(c *gin.Context, tokens *auth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, tokens.AccessToken, int(a.accessTTL.Seconds()), "/", "", a.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, tokens.RefreshToken, int(a.refreshTTL.Seconds()), "/", "", a.secureCookies, true)
}

func (a *AuthHandlers) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", a.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", a.secureCookies, true)
}
