// Package config loads settings from the environment. Each consumer depends on
// the narrow interface it needs, never on Config itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// EmailConfig provides settings for email sending.
// SMTP wins over Brevo when both are configured.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// WhatsAppConfig provides settings for the WhatsApp (SMS channel) gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetPhoneRegion() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketJobEvidence() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// PricingConfig provides settings for price verification decisions.
type PricingConfig interface {
	GetPriceThresholdBps() int64
}

// ApprovalConfig provides settings for customer price approvals.
type ApprovalConfig interface {
	GetPriceApprovalTimeout() time.Duration
}

// PartsConfig provides settings for the parts procurement flow.
type PartsConfig interface {
	GetPartsReminderAfter() time.Duration
}

// VisionConfig provides settings for the scope analysis agent.
type VisionConfig interface {
	GetGeminiAPIKey() string
	GetVisionModel() string
	IsVisionEnabled() bool
}

// LedgerConfig provides settings for publishing expenses to the accounting ledger.
type LedgerConfig interface {
	GetKafkaBrokers() []string
	GetKafkaExpenseTopic() string
	IsKafkaEnabled() bool
}

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	RateLimitPerSecond     float64
	RateLimitBurst         int
	AppBaseURL             string
	EmailEnabled           bool
	BrevoAPIKey            string
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	WhatsAppURL            string
	WhatsAppKey            string
	WhatsAppDeviceID       string
	PhoneRegion            string
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	MinIOMaxFileSize       int64
	MinioBucketJobEvidence string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	PriceThresholdBps      int64
	PriceApprovalTimeout   time.Duration
	PartsReminderAfter     time.Duration
	GeminiAPIKey           string
	VisionModel            string
	KafkaBrokers           []string
	KafkaExpenseTopic      string
}

// DatabaseConfig
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig
func (c *Config) GetHTTPAddr() string            { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool          { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string       { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool        { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int         { return c.RateLimitBurst }

// EmailConfig
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// WhatsAppConfig
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }
func (c *Config) GetPhoneRegion() string      { return c.PhoneRegion }

// NotificationConfig
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// MinIOConfig
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64        { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketJobEvidence() string { return c.MinioBucketJobEvidence }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// SchedulerConfig
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// PricingConfig
func (c *Config) GetPriceThresholdBps() int64 { return c.PriceThresholdBps }

// ApprovalConfig
func (c *Config) GetPriceApprovalTimeout() time.Duration { return c.PriceApprovalTimeout }

// PartsConfig
func (c *Config) GetPartsReminderAfter() time.Duration { return c.PartsReminderAfter }

// VisionConfig
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetVisionModel() string  { return c.VisionModel }
func (c *Config) IsVisionEnabled() bool   { return c.GeminiAPIKey != "" }

// LedgerConfig
func (c *Config) GetKafkaBrokers() []string    { return c.KafkaBrokers }
func (c *Config) GetKafkaExpenseTopic() string { return c.KafkaExpenseTopic }
func (c *Config) IsKafkaEnabled() bool         { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from the environment, after merging a .env file if
// one exists. Every malformed or missing value is reported, not just the first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	e := &envReader{}
	cfg := &Config{
		Env:                    e.str("APP_ENV", "development"),
		HTTPAddr:               e.str("HTTP_ADDR", ":8080"),
		DatabaseURL:            e.required("DATABASE_URL"),
		JWTAccessSecret:        e.required("JWT_ACCESS_SECRET"),
		CORSOrigins:            splitCSV(e.str("CORS_ORIGINS", "http://localhost:4200")),
		CORSAllowAll:           e.flag("CORS_ALLOW_ALL", false),
		CORSAllowCreds:         e.flag("CORS_ALLOW_CREDENTIALS", true),
		RateLimitPerSecond:     e.decimal("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:         int(e.integer("RATE_LIMIT_BURST", 40)),
		AppBaseURL:             e.str("APP_BASE_URL", "http://localhost:4200"),
		BrevoAPIKey:            e.str("BREVO_API_KEY", ""),
		SMTPHost:               e.str("SMTP_HOST", ""),
		SMTPPort:               int(e.integer("SMTP_PORT", 587)),
		SMTPUsername:           e.str("SMTP_USERNAME", ""),
		SMTPPassword:           e.str("SMTP_PASSWORD", ""),
		EmailFromName:          e.str("EMAIL_FROM_NAME", "Jobflow"),
		EmailFromAddress:       e.str("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:            e.str("WHATSAPP_URL", ""),
		WhatsAppKey:            e.str("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:       e.str("WHATSAPP_DEVICE_ID", ""),
		PhoneRegion:            e.str("PHONE_DEFAULT_REGION", "US"),
		MinIOEndpoint:          e.str("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         e.str("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         e.str("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            e.flag("MINIO_USE_SSL", false),
		MinIOMaxFileSize:       e.integer("MINIO_MAX_FILE_SIZE", 100<<20),
		MinioBucketJobEvidence: e.str("MINIO_BUCKET_JOB_EVIDENCE", "job-evidence"),
		RedisURL:               e.str("REDIS_URL", ""),
		RedisTLSInsecure:       e.flag("REDIS_TLS_INSECURE", false),
		AsynqQueueName:         e.str("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       int(e.integer("ASYNQ_CONCURRENCY", 10)),
		PriceThresholdBps:      e.integer("PRICE_THRESHOLD_BPS", 1000),
		PriceApprovalTimeout:   e.duration("PRICE_APPROVAL_TIMEOUT", 30*time.Minute),
		PartsReminderAfter:     e.duration("PARTS_REMINDER_AFTER", 24*time.Hour),
		GeminiAPIKey:           e.str("GEMINI_API_KEY", ""),
		VisionModel:            e.str("VISION_MODEL", "gemini-2.5-flash"),
		KafkaBrokers:           splitCSV(e.str("KAFKA_BROKERS", "")),
		KafkaExpenseTopic:      e.str("KAFKA_EXPENSE_TOPIC", "job-expenses"),
	}

	// A wildcard origin means allow-all regardless of CORS_ALLOW_ALL.
	if slices.Contains(cfg.CORSOrigins, "*") {
		cfg.CORSAllowAll = true
	}
	cfg.EmailEnabled = e.flag("EMAIL_ENABLED", true) && (cfg.BrevoAPIKey != "" || cfg.SMTPHost != "")

	e.check(!cfg.EmailEnabled || cfg.EmailFromAddress != "", "EMAIL_FROM_ADDRESS is required when email is enabled")
	e.check(!(cfg.CORSAllowAll && cfg.CORSAllowCreds), "CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	e.check(cfg.PriceThresholdBps > 0, "PRICE_THRESHOLD_BPS must be positive")
	e.check(cfg.PriceApprovalTimeout > 0, "PRICE_APPROVAL_TIMEOUT must be a positive duration")
	e.check(cfg.PartsReminderAfter > 0, "PARTS_REMINDER_AFTER must be a positive duration")

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envReader collects problems while reading variables so Load can report
// them together.
type envReader struct {
	errs []error
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *envReader) required(key string) string {
	v := e.str(key, "")
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (e *envReader) check(ok bool, msg string) {
	if !ok {
		e.errs = append(e.errs, errors.New(msg))
	}
}

func (e *envReader) flag(key string, fallback bool) bool {
	return parseEnv(e, key, fallback, strconv.ParseBool)
}

func (e *envReader) integer(key string, fallback int64) int64 {
	return parseEnv(e, key, fallback, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
}

func (e *envReader) decimal(key string, fallback float64) float64 {
	return parseEnv(e, key, fallback, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	return parseEnv(e, key, fallback, time.ParseDuration)
}

// parseEnv returns fallback for unset or blank keys. A value that does not parse
// is recorded and also yields fallback.
func parseEnv[T any](e *envReader, key string, fallback T, parse func(string) (T, error)) T {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q", key, raw))
		return fallback
	}
	return v
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
