package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// sesAPI is the subset of the SES client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends mail through AWS SES.
type SESSender struct {
	client    sesAPI
	fromEmail string
	fromName  string
}

// NewSESSender loads the default AWS config for region.
func NewSESSender(region, fromEmail, fromName string) (*SESSender, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESSender{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

func (s *SESSender) SendPasswordReset(ctx context.Context, toEmail, username, resetURL string) error {
	input := buildResetEmail(s.from(), toEmail, username, resetURL)
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *SESSender) from() string {
	if s.fromName != "" {
		return fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}
	return s.fromEmail
}

func buildResetEmail(from, toEmail, username, resetURL string) *ses.SendEmailInput {
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: sans-serif; line-height: 1.6; color: #222;">
  <h1>Reset your password</h1>
  <p>Hi %s,</p>
  <p>Someone asked to reset the password of your VidShare account. The link below expires in one hour.</p>
  <p><a href="%s">Reset password</a></p>
  <p style="word-break: break-all; color: #666;">%s</p>
  <p>If this wasn't you, ignore this mail and your password stays the same.</p>
</body>
</html>`, username, resetURL, resetURL)

	textBody := fmt.Sprintf(`Hi %s,

Someone asked to reset the password of your VidShare account. The link below expires in one hour.

%s

If this wasn't you, ignore this mail and your password stays the same.
`, username, resetURL)

	return &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("Reset your VidShare password"),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}
}
