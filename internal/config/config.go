package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Email provider names accepted by EMAIL_PROVIDER
const (
	ProviderPostmark = "postmark"
	ProviderSMTP     = "smtp"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort  int
	SMTPPort int

	// Inbound SMTP listener
	SMTPIngestEnabled bool
	InboundAddresses  []string

	// Storage
	AttachmentStoragePath string
	StorageBucket         string
	StoragePublicBaseURL  string

	// Outbound email
	EmailProvider        string
	PostmarkServerToken  string
	PostmarkAPIURL       string
	SupportFromAddress   string
	MessageStream        string
	OutboundSMTPAddr     string
	OutboundSMTPUsername string
	OutboundSMTPPassword string

	// Deadline applied to every database, storage and provider call
	IOTimeout time.Duration

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// API_PORT (default: 8080)
	apiPort := os.Getenv("API_PORT")
	if apiPort == "" {
		cfg.APIPort = 8080
	} else {
		port, err := strconv.Atoi(apiPort)
		if err != nil {
			return nil, fmt.Errorf("API_PORT must be a valid integer: %w", err)
		}
		cfg.APIPort = port
	}

	// SMTP_PORT (default: 2525)
	smtpPort := os.Getenv("SMTP_PORT")
	if smtpPort == "" {
		cfg.SMTPPort = 2525
	} else {
		port, err := strconv.Atoi(smtpPort)
		if err != nil {
			return nil, fmt.Errorf("SMTP_PORT must be a valid integer: %w", err)
		}
		cfg.SMTPPort = port
	}

	// SMTP_INGEST_ENABLED (default: false)
	if ingest := os.Getenv("SMTP_INGEST_ENABLED"); ingest != "" {
		enabled, err := strconv.ParseBool(ingest)
		if err != nil {
			return nil, fmt.Errorf("SMTP_INGEST_ENABLED must be a valid boolean: %w", err)
		}
		cfg.SMTPIngestEnabled = enabled
	}
	cfg.InboundAddresses = splitList(os.Getenv("INBOUND_ADDRESSES"))

	// ATTACHMENT_STORAGE_PATH (default: ./attachments)
	cfg.AttachmentStoragePath = getEnv("ATTACHMENT_STORAGE_PATH", "./attachments")
	cfg.StorageBucket = getEnv("STORAGE_BUCKET", "ticket-attachments")
	cfg.StoragePublicBaseURL = strings.TrimRight(getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	// Outbound email
	cfg.EmailProvider = strings.ToLower(getEnv("EMAIL_PROVIDER", ProviderPostmark))
	cfg.PostmarkServerToken = os.Getenv("POSTMARK_SERVER_TOKEN")
	cfg.PostmarkAPIURL = getEnv("POSTMARK_API_URL", "https://api.postmarkapp.com/email")
	cfg.SupportFromAddress = getEnv("SUPPORT_FROM_ADDRESS", "support@pixelmanufaktur.eu")
	cfg.MessageStream = getEnv("MESSAGE_STREAM", "outbound")
	cfg.OutboundSMTPAddr = os.Getenv("OUTBOUND_SMTP_ADDR")
	cfg.OutboundSMTPUsername = os.Getenv("OUTBOUND_SMTP_USERNAME")
	cfg.OutboundSMTPPassword = os.Getenv("OUTBOUND_SMTP_PASSWORD")

	// IO_TIMEOUT (default: 10s)
	cfg.IOTimeout = 10 * time.Second
	if timeout := os.Getenv("IO_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("IO_TIMEOUT must be a valid duration: %w", err)
		}
		cfg.IOTimeout = d
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = getEnv("APP_ENV", "development")

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTPPort must be between 1 and 65535")
	}
	if c.AttachmentStoragePath == "" {
		return fmt.Errorf("AttachmentStoragePath cannot be empty")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("StorageBucket cannot be empty")
	}
	if c.IOTimeout <= 0 {
		return fmt.Errorf("IOTimeout must be positive")
	}
	switch c.EmailProvider {
	case ProviderPostmark:
	case ProviderSMTP:
		if c.OutboundSMTPAddr == "" {
			return fmt.Errorf("OUTBOUND_SMTP_ADDR is required when EMAIL_PROVIDER=smtp")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be %q or %q, got %q", ProviderPostmark, ProviderSMTP, c.EmailProvider)
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.EmailProvider == ProviderPostmark && c.PostmarkServerToken == "" {
		return fmt.Errorf("POSTMARK_SERVER_TOKEN is required in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("smtp_ingest_enabled", c.SMTPIngestEnabled),
		slog.Int("inbound_addresses", len(c.InboundAddresses)),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.String("storage_bucket", c.StorageBucket),
		slog.String("email_provider", c.EmailProvider),
		slog.Bool("postmark_token_set", c.PostmarkServerToken != ""),
		slog.String("support_from", c.SupportFromAddress),
		slog.Duration("io_timeout", c.IOTimeout),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated list, dropping blanks and lowercasing
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
