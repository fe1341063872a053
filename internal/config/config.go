package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode      string // Set via flag, not env
	StoreBackend string // "mongo" or "memory"

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Server
	ApiPort        string
	ServiceApiPort string

	// Logging
	LogLevel  string
	LogFormat string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	SmtpFromName    string
	SendGridAPIKey  string
	MockServices    bool
	LogEmailsPath   string

	// AWS S3 (bill archive)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string

	// Billing
	CurrencySymbol string

	// Ledger sync repair
	LedgerSyncSchedule string
	LedgerSyncMaxAge   time.Duration

	// Rate limiting
	RateLimitRefillRate int // tokens per second
	RateLimitBucketSize int
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.StoreBackend = getEnv("STORE_BACKEND", "mongo")
	if cfg.StoreBackend != "mongo" && cfg.StoreBackend != "memory" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be mongo or memory", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "mongo" {
		cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
		if err != nil {
			return nil, err
		}
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "car_rental")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "3000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@carrental.example.com")
	cfg.SmtpFromName = getEnv("SMTP_FROM_NAME", "Car Rental Service")
	cfg.SendGridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.MockServices = getEnv("MOCK_SERVICES", "false") == "true"
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.CurrencySymbol = getEnv("CURRENCY_SYMBOL", "₹")
	cfg.LedgerSyncSchedule = getEnv("LEDGER_SYNC_SCHEDULE", "0 */5 * * * *")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	maxAgeSeconds, err := strconv.ParseInt(getEnv("LEDGER_SYNC_MAX_AGE_SECONDS", "30"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_SYNC_MAX_AGE_SECONDS: %w", err)
	}
	cfg.LedgerSyncMaxAge = time.Duration(maxAgeSeconds) * time.Second

	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}

	return cfg, nil
}

// BillArchiveEnabled reports whether rendered bills should be copied to S3.
func (c *Config) BillArchiveEnabled() bool {
	return c.AwsS3Bucket != ""
}
