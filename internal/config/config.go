// Package config loads the portal configuration from the environment, or from
// a YAML file when CONFIG_PATH is set (environment variables still override it).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Config is the full runtime configuration.
type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"development"`
	Port     int    `yaml:"port" env:"PORT" env-default:"8080"`
	DBPath   string `yaml:"db_path" env:"DB_PATH" env-default:"data/edulearn.db"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// PublicURL is the externally reachable base URL, used in reset links.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`

	// TrustProxy makes the server take the client address from X-Forwarded-For
	// and X-Real-IP. Only enable it behind a reverse proxy that overwrites them.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`

	Session   Session   `yaml:"session"`
	Setup     Setup     `yaml:"setup"`
	Redis     Redis     `yaml:"redis"`
	AI        AI        `yaml:"ai"`
	RateLimit RateLimit `yaml:"rate_limit"`

	JanitorSchedule string `yaml:"janitor_schedule" env:"JANITOR_SCHEDULE" env-default:"@every 1h"`
}

// Session configures the signed session cookie and where session rows live.
type Session struct {
	Secret     string `yaml:"secret" env:"SESSION_SECRET"`
	Backend    string `yaml:"backend" env:"SESSION_BACKEND" env-default:"sqlite"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// Setup holds the bootstrap secret and the initial admin password.
// Both have no default: an empty value disables /setup in development and
// aborts startup in production.
type Setup struct {
	Secret        string `yaml:"secret" env:"SETUP_SECRET"`
	AdminPassword string `yaml:"admin_password" env:"ADMIN_BOOTSTRAP_PASSWORD"`
}

// Redis is only used when Session.Backend is "redis".
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AI configures the OpenAI-compatible completion provider.
// Models is ordered: the first entry is the default, the rest are fallbacks.
type AI struct {
	BaseURL string        `yaml:"base_url" env:"AI_BASE_URL" env-default:"https://api.routeway.ai/v1"`
	APIKey  string        `yaml:"api_key" env:"AI_API_KEY"`
	Models  []string      `yaml:"models" env:"AI_MODELS" env-separator:"," env-default:"gpt-4o-mini,glm-4.5-air:free"`
	Timeout time.Duration `yaml:"timeout" env:"AI_TIMEOUT" env-default:"30s"`
}

// RateLimit throttles the credential endpoints per client IP.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"1"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"5"`
}

// Load reads CONFIG_PATH (if set) and the environment, then validates the result.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	c.AI.BaseURL = strings.TrimRight(c.AI.BaseURL, "/")

	models := c.AI.Models[:0]
	for _, m := range c.AI.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	c.AI.Models = models
}

// Validate checks invariants that cleanenv tags cannot express. All problems
// are reported at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}

	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}

	switch c.Session.Backend {
	case SessionBackendSQLite, SessionBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q",
			SessionBackendSQLite, SessionBackendRedis, c.Session.Backend))
	}

	if c.Session.BcryptCost < 4 || c.Session.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Session.BcryptCost))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	if len(c.AI.Models) == 0 {
		errs = append(errs, errors.New("AI_MODELS must list at least one model"))
	}

	if c.AI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("AI_TIMEOUT must be positive, got %s", c.AI.Timeout))
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if c.IsProduction() {
		if c.Setup.Secret == "" {
			errs = append(errs, errors.New("SETUP_SECRET is required in production"))
		}
		if c.Setup.AdminPassword == "" {
			errs = append(errs, errors.New("ADMIN_BOOTSTRAP_PASSWORD is required in production"))
		}
		if c.Session.BcryptCost < 10 {
			errs = append(errs, fmt.Errorf("BCRYPT_COST below 10 is not allowed in production, got %d", c.Session.BcryptCost))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the production profile is active.
// Session cookies are marked Secure only in production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SetupEnabled reports whether /setup can run at all.
func (c *Config) SetupEnabled() bool {
	return c.Setup.Secret != "" && c.Setup.AdminPassword != ""
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogValue hides secrets when the config is logged at startup.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.Int("port", c.Port),
		slog.String("db_path", c.DBPath),
		slog.String("session_backend", c.Session.Backend),
		slog.Int("bcrypt_cost", c.Session.BcryptCost),
		slog.Bool("setup_enabled", c.SetupEnabled()),
		slog.String("ai_base_url", c.AI.BaseURL),
		slog.Any("ai_models", c.AI.Models),
		slog.Duration("ai_timeout", c.AI.Timeout),
		slog.Bool("ai_key_set", c.AI.APIKey != ""),
		slog.Bool("trust_proxy", c.TrustProxy),
	)
}
