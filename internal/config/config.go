package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	PublicBaseURL  string // used to build product links in emails
	CurrencySymbol string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	SNSTopicARN    string // optional; bus events are mirrored here when set

	SMTPHost           string
	SMTPPort           string
	SMTPFrom           string
	SMTPUsername       string
	SMTPPassword       string
	EmailRatePerSecond float64
	EmailBurst         int

	IdentityAPIURL  string
	IdentityAPIKey  string // empty -> resolve emails from the local users table
	OutboundTimeout time.Duration

	Events    EventsConfig
	Retention RetentionConfig

	RedisAddr      string // empty -> in-memory idempotency store
	RedisPassword  string
	RedisDB        int
	IdempotencyTTL time.Duration

	JWTPublicKeyPath string
	WebhookSecret    string
	TrustProxy       bool     // take the client address from X-Forwarded-For / X-Real-Ip
	AllowedOrigins   []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Products      string
	Orders        string
	Reviews       string
	Addresses     string
	Subscriptions string
}

// EventsConfig tunes the in-process delivery runtime.
type EventsConfig struct {
	Workers           int
	MaxAttempts       int
	RetryBackoff      time.Duration
	HandlerTimeout    time.Duration
	OrderBatchMaxSize int
	OrderBatchTimeout time.Duration
}

// RetentionConfig controls the daily sweep.
type RetentionConfig struct {
	Subscriptions time.Duration
	Orders        time.Duration
	Hour          int
	Minute        int
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "$"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Products:      getEnv("DYNAMO_TABLE_PRODUCTS", "products"),
			Orders:        getEnv("DYNAMO_TABLE_ORDERS", "orders"),
			Reviews:       getEnv("DYNAMO_TABLE_REVIEWS", "reviews"),
			Addresses:     getEnv("DYNAMO_TABLE_ADDRESSES", "addresses"),
			Subscriptions: getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "notification_subscriptions"),
		},
		S3BucketName:       getEnv("S3_BUCKET_NAME", "storefront-media"),
		SNSTopicARN:        getEnv("SNS_TOPIC_ARN", ""),
		SMTPHost:           getEnv("SMTP_HOST", "localhost"),
		SMTPPort:           getEnv("SMTP_PORT", "1025"),
		SMTPFrom:           getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		EmailRatePerSecond: getEnvFloat("EMAIL_RATE_PER_SECOND", 10),
		EmailBurst:         getEnvInt("EMAIL_BURST", 10),
		IdentityAPIURL:     strings.TrimRight(getEnv("IDENTITY_API_URL", "https://api.clerk.com"), "/"),
		IdentityAPIKey:     getEnv("IDENTITY_API_KEY", ""),
		OutboundTimeout:    getEnvDuration("OUTBOUND_TIMEOUT", 10*time.Second),
		Events: EventsConfig{
			Workers:           getEnvInt("EVENT_WORKERS", 4),
			MaxAttempts:       getEnvInt("EVENT_MAX_ATTEMPTS", 4),
			RetryBackoff:      getEnvDuration("EVENT_RETRY_BACKOFF", 2*time.Second),
			HandlerTimeout:    getEnvDuration("EVENT_HANDLER_TIMEOUT", 2*time.Minute),
			OrderBatchMaxSize: getEnvInt("ORDER_BATCH_MAX_SIZE", 5),
			OrderBatchTimeout: getEnvDuration("ORDER_BATCH_TIMEOUT", 5*time.Second),
		},
		Retention: RetentionConfig{
			Subscriptions: getEnvDuration("SUBSCRIPTION_RETENTION", 30*24*time.Hour),
			Orders:        getEnvDuration("ORDER_RETENTION", 365*24*time.Hour),
			Hour:          getEnvInt("RETENTION_SWEEP_HOUR", 3),
			Minute:        getEnvInt("RETENTION_SWEEP_MINUTE", 0),
		},
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		IdempotencyTTL:   getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		WebhookSecret:    getEnv("WEBHOOK_SECRET", ""),
		TrustProxy:       getEnvBool("TRUST_PROXY", false),
		AllowedOrigins:   strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s", "720h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
