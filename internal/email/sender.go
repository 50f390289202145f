// Package email delivers transactional mail.
package email

import (
	"context"

	"github.com/zfogg/vidshare/internal/logger"
	"go.uber.org/zap"
)

// Sender delivers password reset mails.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, username, resetURL string) error
}

// LogSender writes mails to the log instead of delivering them. Used in
// development and when EMAIL_FROM is not configured.
type LogSender struct{}

func (LogSender) SendPasswordReset(ctx context.Context, toEmail, username, resetURL string) error {
	logger.Log.Info("Password reset mail (not delivered)",
		zap.String("to", toEmail),
		zap.String("username", username),
		zap.String("reset_url", resetURL),
	)
	return nil
}

var _ Sender = LogSender{}
