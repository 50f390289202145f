// Package auth owns accounts, credentials and the JWT session lifecycle.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/vidshare/internal/config"
	"github.com/zfogg/vidshare/internal/email"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenReused        = errors.New("refresh token already used")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrSamePassword       = errors.New("new password must differ from the current one")
)

// Service implements registration, login and token rotation on top of the
// users table.
type Service struct {
	db         *gorm.DB
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	mailer     email.Sender
	baseURL    string
	bcryptCost int
	now        func() time.Time
}

// NewService creates an auth service. A nil mailer logs reset links instead of
// sending them.
func NewService(db *gorm.DB, cfg config.AuthConfig, mailer email.Sender, baseURL string) *Service {
	if mailer == nil {
		mailer = email.LogSender{}
	}
	return &Service{
		db:         db,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		resetTTL:   cfg.ResetTokenTTL,
		mailer:     mailer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Bio      string
}

// Register creates the account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	username := normalize(in.Username)
	mail := normalize(in.Email)

	if err := s.checkAvailable(ctx, username, mail, ""); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        mail,
		FullName:     strings.TrimSpace(in.FullName),
		Bio:          in.Bio,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return user, pair, nil
}

// CheckEmailAvailable reports ErrUserExists when another account uses email.
func (s *Service) CheckEmailAvailable(ctx context.Context, mail, exceptUserID string) error {
	return s.checkAvailable(ctx, "", normalize(mail), exceptUserID)
}

func (s *Service) checkAvailable(ctx context.Context, username, mail, exceptUserID string) error {
	db := s.db.WithContext(ctx).Model(&models.User{})
	if exceptUserID != "" {
		db = db.Where("id <> ?", exceptUserID)
	}

	if mail != "" {
		var n int64
		if err := db.Session(&gorm.Session{}).Where("LOWER(email) = ?", mail).Count(&n).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if n > 0 {
			return ErrUserExists
		}
	}
	if username != "" {
		var n int64
		if err := db.Session(&gorm.Session{}).Where("LOWER(username) = ?", username).Count(&n).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if n > 0 {
			return ErrUsernameExists
		}
	}
	return nil
}

// Login authenticates by email or username.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error) {
	id := normalize(identifier)
	if id == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? OR LOWER(username) = ?", id, id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, &user)
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

// startSession issues a fresh pair and records the refresh token hash,
// replacing any earlier session.
func (s *Service) startSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	pair, err := s.issuePair(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	hash := hashToken(pair.RefreshToken)
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("refresh_token_hash", hash).Error; err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	user.RefreshTokenHash = &hash
	return pair, nil
}

// Refresh rotates a refresh token. A token that is validly signed but no
// longer the current one signals theft: the stored hash is cleared so every
// holder must log in again.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.Subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	presented := hashToken(refreshToken)
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != presented {
		if err := s.revoke(ctx, user.ID); err != nil {
			return nil, nil, err
		}
		logger.Log.Warn("Refresh token reuse detected, session revoked", logger.WithUserID(user.ID))
		return nil, nil, ErrTokenReused
	}

	pair, err := s.issuePair(user.ID, user.Username)
	if err != nil {
		return nil, nil, err
	}
	next := hashToken(pair.RefreshToken)

	// Conditional on the presented hash so two concurrent refreshes of the
	// same token cannot both succeed.
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token_hash = ?", user.ID, presented).
		Update("refresh_token_hash", next)
	if result.Error != nil {
		return nil, nil, fmt.Errorf("failed to rotate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil, ErrInvalidToken
	}

	user.RefreshTokenHash = &next
	return &user, pair, nil
}

// Logout ends the user's session.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.revoke(ctx, userID)
}

func (s *Service) revoke(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token_hash", nil).Error; err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// ParseAccessToken validates an access token without touching the database.
func (s *Service) ParseAccessToken(token string) (*Claims, error) {
	return s.parse(token, tokenTypeAccess)
}

// Authenticate validates an access token and loads its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.Subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// ChangePassword replaces the password after checking the current one and
// signs out every session.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrSamePassword
	}
	return s.setPassword(s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID), next)
}

func (s *Service) setPassword(scope *gorm.DB, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	result := scope.Updates(map[string]interface{}{
		"password_hash":             string(hash),
		"refresh_token_hash":        nil,
		"password_reset_hash":       nil,
		"password_reset_expires_at": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidResetToken
	}
	return nil
}

// RequestPasswordReset stores a one-time reset token for the account behind
// mail and sends the link. Unknown addresses succeed silently so callers
// cannot probe which emails are registered. The raw token is returned for
// callers that deliver it some other way.
func (s *Service) RequestPasswordReset(ctx context.Context, mail string) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", normalize(mail)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	expires := s.now().Add(s.resetTTL)
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"password_reset_hash":       hashToken(token),
			"password_reset_expires_at": expires,
		}).Error; err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, resetURL); err != nil {
		return token, err
	}
	return token, nil
}

// ResetPassword consumes a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	scope := s.db.WithContext(ctx).Model(&models.User{}).
		Where("password_reset_hash = ? AND password_reset_expires_at > ?", hashToken(token), s.now())
	return s.setPassword(scope, password)
}

// PurgeExpiredResetTokens clears reset tokens past their expiry.
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= ?", s.now()).
		Updates(map[string]interface{}{
			"password_reset_hash":       nil,
			"password_reset_expires_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
