package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Domestic card gateway (NapasPay) credentials.
	GatewayMerchantCode string        `env:"GATEWAY_MERCHANT_CODE,required" validate:"required"`
	GatewayHashSecret   string        `env:"GATEWAY_HASH_SECRET,required" validate:"required"`
	GatewayPayURL       string        `env:"GATEWAY_PAY_URL,required" validate:"required,url"`
	GatewayTimeout      time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s"`

	// Stripe powers international card payments. Optional; both values must
	// be set together.
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	BaseURL string `env:"BASE_URL,required" validate:"required,url"`

	AdminTokenSecret string `env:"ADMIN_TOKEN_SECRET,required" validate:"required,min=32"`
	EncryptionKey    string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	EmailProvider string `env:"EMAIL_PROVIDER" validate:"omitempty,oneof=resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY" validate:"required_with=EmailProvider"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"required_with=EmailProvider,omitempty,email"`

	// Pending-transaction sweep. Both unset disables the sweep; the source
	// system defines no abandonment timeout, so none is assumed here.
	PendingSweepInterval time.Duration `env:"PENDING_SWEEP_INTERVAL"`
	PendingMaxAge        time.Duration `env:"PENDING_MAX_AGE"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	hasStripeKey := strings.TrimSpace(c.StripeSecretKey) != ""
	hasStripeWebhookSecret := strings.TrimSpace(c.StripeWebhookSecret) != ""
	if hasStripeKey != hasStripeWebhookSecret {
		return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set together")
	}

	if (c.PendingSweepInterval > 0) != (c.PendingMaxAge > 0) {
		return fmt.Errorf("PENDING_SWEEP_INTERVAL and PENDING_MAX_AGE must be set together")
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

// SweepEnabled reports whether the pending-transaction sweep should run.
func (c *Config) SweepEnabled() bool {
	return c.PendingSweepInterval > 0 && c.PendingMaxAge > 0
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
