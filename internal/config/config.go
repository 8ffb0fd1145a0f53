package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema       string        `mapstructure:"DB_SCHEMA"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	RabbitMQURL    string        `mapstructure:"RABBITMQ_URL"`
	MailExchange   string        `mapstructure:"MAIL_EXCHANGE"`
	MailFrom       string        `mapstructure:"MAIL_FROM"`
	PracticeName   string        `mapstructure:"PRACTICE_NAME"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	LinkSecret     string        `mapstructure:"ORDER_LINK_SECRET"`
	LinkTTL        time.Duration `mapstructure:"ORDER_LINK_TTL"`
	PublicBaseURL  string        `mapstructure:"PUBLIC_BASE_URL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PublishTimeout time.Duration `mapstructure:"PUBLISH_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"REDIS_URL", "RABBITMQ_URL", "MAIL_EXCHANGE", "MAIL_FROM", "PRACTICE_NAME",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"ORDER_LINK_SECRET", "ORDER_LINK_TTL", "PUBLIC_BASE_URL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "PUBLISH_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("MAIL_EXCHANGE", "dashboard.mail")
	v.SetDefault("MAIL_FROM", "orders@practice.local")
	v.SetDefault("PRACTICE_NAME", "Family Practice")
	v.SetDefault("ORDER_LINK_SECRET", "dev-order-link-secret")
	v.SetDefault("ORDER_LINK_TTL", "168h")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("PUBLISH_TIMEOUT", "2s")

	// Bind explicitly so Unmarshal sees env vars that have no .env entry.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments run without token validation and everything else expects an
// external OIDC issuer.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "external"
}

// Validate refuses configurations that would run without authentication
// outside development or sign order links with a weak secret in production.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "external" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"external\", got %q", mode)
	}
	if mode == "external" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
	}
	if mode == "development" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
	}

	if c.LinkSecret == "" {
		return fmt.Errorf("ORDER_LINK_SECRET is required")
	}
	if c.IsProduction() && len(c.LinkSecret) < 32 {
		return fmt.Errorf("ORDER_LINK_SECRET must be at least 32 bytes in production, got %d", len(c.LinkSecret))
	}
	if c.LinkTTL <= 0 {
		return fmt.Errorf("ORDER_LINK_TTL must be positive")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	return nil
}
