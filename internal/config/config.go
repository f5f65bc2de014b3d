package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Identity IdentityConfig
	Guard    GuardConfig
	Shell    ShellConfig
	Limits   RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"artisansflow-portal"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds connection values for the tenant data store.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	MigrationsPath string `env:"POSTGRES_MIGRATIONS_PATH" envDefault:"./migrations"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
	ChangeChannel  string `env:"POSTGRES_CHANGE_CHANNEL" envDefault:"table_changes"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password       string `env:"REDIS_PASSWORD"`
	DB             int    `env:"REDIS_DB" envDefault:"0"`
	RoleTTLSeconds int    `env:"REDIS_ROLE_TTL_SECONDS" envDefault:"300"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding    string `env:"LOG_ENCODING" envDefault:"json"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// IdentityConfig points at the hosted identity provider.
type IdentityConfig struct {
	URL                string `env:"SUPABASE_URL"`
	AnonKey            string `env:"SUPABASE_ANON_KEY"`
	JWTSecret          string `env:"SUPABASE_JWT_SECRET"`
	AccessCookie       string `env:"AUTH_ACCESS_COOKIE" envDefault:"sb-access-token"`
	RefreshCookie      string `env:"AUTH_REFRESH_COOKIE" envDefault:"sb-refresh-token"`
	CookieSecure       bool   `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
	TimeoutSeconds     int    `env:"AUTH_PROVIDER_TIMEOUT_SECONDS" envDefault:"10"`
	PublicURL          string `env:"NEXT_PUBLIC_SUPABASE_URL"`
	PublicAnonKey      string `env:"NEXT_PUBLIC_SUPABASE_ANON_KEY"`
	DevTokenTTLMinutes int    `env:"AUTH_DEV_TOKEN_TTL_MINUTES" envDefault:"60"`
}

// GuardConfig configures route gating.
type GuardConfig struct {
	RoutesFile         string `env:"ROUTES_FILE"`
	RenderWaitMillis   int    `env:"GUARD_RENDER_WAIT_MILLIS" envDefault:"1500"`
	ContextCookie      string `env:"SHELL_CONTEXT_COOKIE" envDefault:"af_ctx"`
	ContextCookieHours int    `env:"SHELL_CONTEXT_COOKIE_HOURS" envDefault:"720"`
}

// ShellConfig controls browser context lifetime.
type ShellConfig struct {
	IdleMinutes          int `env:"SHELL_IDLE_MINUTES" envDefault:"30"`
	SweepIntervalSeconds int `env:"SHELL_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
}

// RateLimitConfig bounds credential endpoints per client IP.
type RateLimitConfig struct {
	AuthPerMinute int `env:"AUTH_RATE_PER_MINUTE" envDefault:"10"`
	AuthBurst     int `env:"AUTH_RATE_BURST" envDefault:"5"`
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Identity.URL == "" {
		cfg.Identity.URL = cfg.Identity.PublicURL
	}
	if cfg.Identity.AnonKey == "" {
		cfg.Identity.AnonKey = cfg.Identity.PublicAnonKey
	}
	cfg.Identity.URL = strings.TrimRight(cfg.Identity.URL, "/")

	return cfg, nil
}

// Validate rejects configurations the portal cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Identity.URL == "" {
		errs = append(errs, errors.New("SUPABASE_URL (or NEXT_PUBLIC_SUPABASE_URL) is required"))
	}
	if c.Identity.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY (or NEXT_PUBLIC_SUPABASE_ANON_KEY) is required"))
	}
	if c.Identity.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether the portal runs in production.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// RoleTTL returns how long a resolved role stays cached.
func (r RedisConfig) RoleTTL() time.Duration {
	if r.RoleTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.RoleTTLSeconds) * time.Second
}

// Timeout returns the provider call timeout.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// DevTokenTTL returns the lifetime of locally minted tokens.
func (i IdentityConfig) DevTokenTTL() time.Duration {
	if i.DevTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(i.DevTokenTTLMinutes) * time.Minute
}

// RenderWait bounds how long a page waits for role resolution.
func (g GuardConfig) RenderWait() time.Duration {
	if g.RenderWaitMillis <= 0 {
		return 0
	}
	return time.Duration(g.RenderWaitMillis) * time.Millisecond
}

// ContextCookieTTL returns the browser context cookie lifetime.
func (g GuardConfig) ContextCookieTTL() time.Duration {
	return time.Duration(g.ContextCookieHours) * time.Hour
}

// IdleTimeout returns how long an unused browser context is kept.
func (s ShellConfig) IdleTimeout() time.Duration {
	if s.IdleMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.IdleMinutes) * time.Minute
}

// SweepInterval returns the period of idle context collection.
func (s ShellConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}
