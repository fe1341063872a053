package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client sendGridClient
	logger *zap.Logger
}

// NewSendGridSender creates a SendGridSender. apiKey comes from config.
func NewSendGridSender(apiKey string, logger *zap.Logger) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), logger: logger}
}

// buildSendGridMail converts msg into a SendGrid payload, one personalization
// per recipient so addresses are not disclosed to each other.
func buildSendGridMail(msg *Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(msg.FromName, msg.FromAddress))
	m.Subject = msg.Subject
	for _, to := range msg.To {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", to))
		m.AddPersonalizations(p)
	}
	m.AddContent(mail.NewContent("text/html", msg.HTMLBody))
	if msg.Tag != "" {
		m.AddCategories(msg.Tag)
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg *Message) error {
	response, err := s.client.SendWithContext(ctx, buildSendGridMail(msg))
	if err != nil {
		return fmt.Errorf("sendgrid error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	s.logger.Info("email sent via SendGrid", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
