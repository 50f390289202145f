package auth

import (
	"context"

	"github.com/zfogg/vidshare/internal/models"
)

// Authenticator is what the auth middleware and websocket upgrade need.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthServiceInterface is the full surface used by the HTTP handlers.
type AuthServiceInterface interface {
	Authenticator

	Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error)
	Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
	CheckEmailAvailable(ctx context.Context, email, exceptUserID string) error
}

var _ AuthServiceInterface = (*Service)(nil)
