package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendSignInLink(ctx context.Context, toEmail, link, idempotencyKey string) error
}

// NoopEmailService logs the link instead of sending it. Used when no Resend key is configured.
type NoopEmailService struct {
	log *zap.Logger
}

func NewNoopEmailService(log *zap.Logger) *NoopEmailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoopEmailService{log: log.Named("EmailService")}
}

func (s *NoopEmailService) SendSignInLink(ctx context.Context, toEmail, link, idempotencyKey string) error {
	s.log.Info("noop send sign-in link", zap.String("to", toEmail), zap.String("link", link))
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
	log    *zap.Logger
}

func NewResendEmailService(apiKey, from string, log *zap.Logger) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
		log:    log.Named("EmailService"),
	}, nil
}

func signInLinkRequest(from, toEmail, link string) *resend.SendEmailRequest {
	escaped := html.EscapeString(link)
	return &resend.SendEmailRequest{
		From:    from,
		To:      []string{toEmail},
		Subject: "Sign in to Yoshi POS",
		Text:    fmt.Sprintf("Sign in to Yoshi POS:\n%s\n\nIf you did not request this email you can safely ignore it.", link),
		Html: fmt.Sprintf(`<p>Sign in to <strong>Yoshi POS</strong></p><p><a href="%s">Sign in</a></p>`+
			`<p>If you did not request this email you can safely ignore it.</p>`, escaped),
	}
}

func (s *ResendEmailService) SendSignInLink(ctx context.Context, toEmail, link, idempotencyKey string) error {
	if toEmail == "" || link == "" {
		return fmt.Errorf("toEmail and link are required")
	}

	params := signInLinkRequest(s.from, toEmail, link)
	options := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		options.IdempotencyKey = key
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			s.log.Warn("resend send failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
