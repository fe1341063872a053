package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MockEmailTTL is how long a mock email stays readable.
const MockEmailTTL = 5 * time.Minute

// MockEmail is the JSON stored per mock delivery.
type MockEmail struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Template string `json:"template"`
	SentAt   string `json:"sent_at"`
}

// MockEmailKey is the Redis key of the last mock email of a template to an address.
func MockEmailKey(to, template string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, template)
}

// RedisSender stores emails in Redis for end-to-end tests instead of sending them.
type RedisSender struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, logger: logger}
}

// Send stores the message under MockEmailKey for its first recipient.
func (s *RedisSender) Send(ctx context.Context, msg *Message) error {
	primaryTo := ""
	if len(msg.To) > 0 {
		primaryTo = msg.To[0]
	}
	tag := msg.Tag
	if tag == "" {
		tag = "unknown"
	}

	jsonData, err := json.Marshal(MockEmail{
		To:       strings.Join(msg.To, ", "),
		From:     msg.FromAddress,
		Subject:  msg.Subject,
		Body:     msg.HTMLBody,
		Template: tag,
		SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, tag)
	if err := s.client.Set(ctx, key, jsonData, MockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.logger.Debug("mock email stored", zap.String("key", key), zap.String("subject", msg.Subject))
	return nil
}

// GetMockEmail reads a mock email back. It returns redis.Nil when absent.
func GetMockEmail(ctx context.Context, client *redis.Client, to, template string) (*MockEmail, error) {
	raw, err := client.Get(ctx, MockEmailKey(to, template)).Bytes()
	if err != nil {
		return nil, err
	}
	var m MockEmail
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("corrupt mock email: %w", err)
	}
	return &m, nil
}

// Mailbox reads mock emails back for the service API.
type Mailbox struct {
	client *redis.Client
}

func NewMailbox(client *redis.Client) *Mailbox {
	return &Mailbox{client: client}
}

// Take returns the stored email and deletes it. It returns redis.Nil when absent.
func (m *Mailbox) Take(ctx context.Context, to, template string) (*MockEmail, error) {
	msg, err := GetMockEmail(ctx, m.client, to, template)
	if err != nil {
		return nil, err
	}
	m.client.Del(ctx, MockEmailKey(to, template))
	return msg, nil
}
