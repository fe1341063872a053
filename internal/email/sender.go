package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"carrental/backend/internal/config"
)

// Message is a rendered HTML email.
type Message struct {
	FromAddress string
	FromName    string
	To          []string
	Subject     string
	HTMLBody    string
	// Tag names the template the message came from. Mock senders key on it.
	Tag string
}

// Raw renders the message as an RFC 5322 document with an HTML body.
func (m *Message) Raw() []byte {
	from := m.FromAddress
	if m.FromName != "" {
		from = fmt.Sprintf("%q <%s>", m.FromName, m.FromAddress)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.To, ", ")))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(m.HTMLBody)
	if !strings.HasSuffix(m.HTMLBody, "\r\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// Sender defines the interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	auth   smtp.Auth
	addr   string
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTPSender. Credentials come from config only.
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		auth:   smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		addr:   fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		logger: logger,
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := smtp.SendMail(s.addr, s.auth, msg.FromAddress, msg.To, msg.Raw()); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.logger.Info("email sent via SMTP", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// LoggingSender only logs. Used when no transport is configured.
type LoggingSender struct {
	logger *zap.Logger
}

func NewLoggingSender(logger *zap.Logger) *LoggingSender {
	return &LoggingSender{logger: logger}
}

func (s *LoggingSender) Send(ctx context.Context, msg *Message) error {
	s.logger.Info("email not sent, no transport configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Tag),
		zap.Int("body_bytes", len(msg.HTMLBody)))
	return nil
}
