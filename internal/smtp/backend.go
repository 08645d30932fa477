package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
)

// Security limits
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients  = 100
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
)

// EmailProcessor runs a parsed email through the ticket pipeline
type EmailProcessor interface {
	Process(ctx context.Context, email *inbound.Email) (*inbound.Result, error)
}

// Backend implements the go-smtp Backend interface
type Backend struct {
	processor EmailProcessor
	addresses map[string]struct{}
	logger    *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Processor EmailProcessor
	// InboundAddresses restricts accepted recipients. Empty accepts all.
	InboundAddresses []string
	Logger           *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	addresses := make(map[string]struct{}, len(cfg.InboundAddresses))
	for _, a := range cfg.InboundAddresses {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			addresses[a] = struct{}{}
		}
	}
	return &Backend{
		processor: cfg.Processor,
		addresses: addresses,
		logger:    cfg.Logger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	if b.logger != nil {
		b.logger.Info("new SMTP connection", slog.String("remote_addr", c.Conn().RemoteAddr().String()))
	}
	return NewSession(b), nil
}

// accepts reports whether mail for address is taken in
func (b *Backend) accepts(address string) bool {
	if len(b.addresses) == 0 {
		return true
	}
	_, ok := b.addresses[strings.ToLower(address)]
	return ok
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowInsecure  bool
	TLSConfig      *tls.Config
}

// NewSecureServer creates the ingest listener. Unset limits fall back to the
// Default* constants.
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)
	s.Addr = cfg.Addr
	s.Domain = cfg.Domain
	s.MaxMessageBytes = positiveOr(cfg.MaxMessageSize, DefaultMaxMessageSize)
	s.MaxRecipients = positiveOr(cfg.MaxRecipients, DefaultMaxRecipients)
	s.ReadTimeout = positiveOr(cfg.ReadTimeout, DefaultReadTimeout)
	s.WriteTimeout = positiveOr(cfg.WriteTimeout, DefaultWriteTimeout)
	s.MaxLineLength = DefaultMaxLineLength
	s.AllowInsecureAuth = cfg.AllowInsecure
	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}
	return s
}

// LoadServerConfigFromEnv builds the listener configuration for port. The
// remaining limits come from optional SMTP_* environment variables; values
// that do not parse are left unset.
func LoadServerConfigFromEnv(port int) *ServerConfig {
	cfg := &ServerConfig{
		Addr:           fmt.Sprintf(":%d", port),
		Domain:         getEnvOrDefault("SMTP_DOMAIN", "localhost"),
		AllowInsecure:  getEnvBool("SMTP_ALLOW_INSECURE", false),
		MaxMessageSize: envParsed("SMTP_MAX_MESSAGE_SIZE", func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) }),
		MaxRecipients:  envParsed("SMTP_MAX_RECIPIENTS", strconv.Atoi),
		ReadTimeout:    envParsed("SMTP_READ_TIMEOUT", time.ParseDuration),
		WriteTimeout:   envParsed("SMTP_WRITE_TIMEOUT", time.ParseDuration),
	}

	certFile, keyFile := os.Getenv("SMTP_TLS_CERT"), os.Getenv("SMTP_TLS_KEY")
	if certFile != "" && keyFile != "" {
		if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil {
			cfg.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}
	}

	return cfg
}

func positiveOr[T int | int64 | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// envParsed returns the zero value when key is unset or does not parse
func envParsed[T any](key string, parse func(string) (T, error)) T {
	var zero T
	raw := os.Getenv(key)
	if raw == "" {
		return zero
	}
	v, err := parse(raw)
	if err != nil {
		return zero
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
