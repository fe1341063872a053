package email

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carrental/backend/internal/config"
)

// NewSenderFromConfig picks the primary transport and wraps it in a
// composite, adding the file logger when LOG_EMAILS is set. Order of
// preference: Redis mock mailbox, SendGrid, SMTP, logging only.
func NewSenderFromConfig(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) Sender {
	var primary Sender
	switch {
	case cfg.MockServices && rdb != nil:
		logger.Info("MOCK_SERVICES enabled, using Redis email sender")
		primary = NewRedisSender(rdb, logger)
	case cfg.SendGridAPIKey != "":
		logger.Info("using SendGrid email sender")
		primary = NewSendGridSender(cfg.SendGridAPIKey, logger)
	case cfg.SmtpHost != "":
		logger.Info("using SMTP email sender", zap.String("host", cfg.SmtpHost))
		primary = NewSMTPSender(cfg, logger)
	default:
		logger.Warn("no email transport configured, emails will only be logged")
		primary = NewLoggingSender(logger)
	}

	composite := NewCompositeEmailSender(primary)
	if cfg.LogEmailsPath != "" {
		fileSender, err := NewFileEmailSender(cfg.LogEmailsPath)
		if err != nil {
			logger.Warn("failed to initialize file email sender", zap.String("path", cfg.LogEmailsPath), zap.Error(err))
		} else {
			composite.AddSender(fileSender)
		}
	}
	return composite
}
