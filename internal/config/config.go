package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Log      LogConfig
	Admin    AdminConfig
	Upstream UpstreamConfig
	Redeem   RedeemConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"redeemer_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// AdminConfig holds the shared pass that guards the API routes.
// An empty pass disables the auth middleware (local development).
type AdminConfig struct {
	Pass string `envconfig:"ADMIN_PASS" default:""`
}

// UpstreamConfig holds the third-party gift-code API settings. The URLs,
// secret and signing scheme are pinned wire details of the upstream service;
// the retry knobs bound the in-attempt retry loop of the redemption client.
type UpstreamConfig struct {
	LoginURL    string        `envconfig:"UPSTREAM_LOGIN_URL" default:"https://kingshot-giftcode.centurygame.com/api/player"`
	RedeemURL   string        `envconfig:"UPSTREAM_REDEEM_URL" default:"https://kingshot-giftcode.centurygame.com/api/gift_code"`
	Secret      string        `envconfig:"UPSTREAM_SECRET" default:"mN4!pQs6JrYwV9"`
	Timeout     time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`
	MaxAttempts int           `envconfig:"UPSTREAM_MAX_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `envconfig:"UPSTREAM_RETRY_DELAY" default:"2s"`
}

// RedeemConfig holds orchestrator pacing. ItemDelay is the courtesy pause
// between consecutive attempts within one job; the upstream throttles
// aggressive callers.
type RedeemConfig struct {
	ItemDelay time.Duration `envconfig:"REDEEM_ITEM_DELAY" default:"1s"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
