package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// EmailProvider is "smtp" or "log". The log provider writes messages to the logger.
	EmailProvider string

	// SMTP Configuration (workflow notification emails)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Application base URL (for email links)
	BaseURL string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Stripe payments for third-party inspections.
	// The payment gateway is a stub when the key is empty.
	StripeSecretKey     string
	StripeWebhookSecret string
	InspectionCurrency  string

	// Redis caches responses for the Idempotency-Key header. Disabled when empty.
	RedisURL       string
	IdempotencyTTL time.Duration

	// SNS fan-out of workflow events. Disabled when the topic is empty.
	SNSTopicARN string
	AWSRegion   string

	// Workflow tunables
	SaveRetries       int
	UploadConcurrency int
	ReturnPhotosMin   int
	ReturnPhotosMax   int
	NotifyTimeout     time.Duration

	// Per-actor limit on mutating requests. Disabled when RateLimitRequests is 0.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Roles allowed to resolve disputes, from X-Actor-Role. Lowercased.
	ResolverRoles []string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		EmailProvider: getEnv("EMAIL_PROVIDER", "smtp"),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "inspections@rentcheck.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "RentCheck"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		InspectionCurrency:  strings.ToLower(getEnv("INSPECTION_CURRENCY", "usd")),

		RedisURL:       getEnv("REDIS_URL", ""),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),

		SaveRetries:       getEnvInt("SAVE_RETRIES", 3),
		UploadConcurrency: getEnvInt("UPLOAD_CONCURRENCY", 4),
		ReturnPhotosMin:   getEnvInt("RETURN_PHOTOS_MIN", 2),
		ReturnPhotosMax:   getEnvInt("RETURN_PHOTOS_MAX", 20),
		NotifyTimeout:     getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	for _, role := range strings.Split(getEnv("RESOLVER_ROLES", "inspector,admin"), ",") {
		if trimmed := strings.TrimSpace(strings.ToLower(role)); trimmed != "" {
			cfg.ResolverRoles = append(cfg.ResolverRoles, trimmed)
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Without a key the stub gateway approves every charge.
	if cfg.IsProduction() && cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required in production")
	}

	if cfg.EmailProvider != "smtp" && cfg.EmailProvider != "log" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be either 'smtp' or 'log', got: %s", cfg.EmailProvider)
	}

	if cfg.ReturnPhotosMin < 1 || cfg.ReturnPhotosMax < cfg.ReturnPhotosMin {
		return nil, fmt.Errorf("RETURN_PHOTOS_MIN/MAX must satisfy 1 <= min <= max, got %d/%d", cfg.ReturnPhotosMin, cfg.ReturnPhotosMax)
	}
	if cfg.UploadConcurrency < 1 {
		return nil, fmt.Errorf("UPLOAD_CONCURRENCY must be at least 1, got %d", cfg.UploadConcurrency)
	}

	if cfg.RateLimitRequests < 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0 and RATE_LIMIT_WINDOW positive, got %d/%v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
