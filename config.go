package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"postyard/domain"
	"postyard/store"
)

const (
	EnvDev = "dev"
	EnvPro = "pro"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Env        string           `mapstructure:"env"`
	Server     ServerConfig     `mapstructure:"server"`
	TLS        TLSConfig        `mapstructure:"tls"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Site       SiteConfig       `mapstructure:"site"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration. An empty Address serves
// HTTPS on :443 with certificates from Let's Encrypt.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TLSConfig holds automatic certificate configuration.
type TLSConfig struct {
	// CacheDir keeps issued certificates across restarts to stay under the
	// Let's Encrypt rate limits.
	CacheDir      string `mapstructure:"cache_dir"`
	WhitelistHost string `mapstructure:"whitelist_host"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig holds session configuration.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	EnableSignup bool          `mapstructure:"enable_signup"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type PaginationConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// SiteConfig holds the texts shown on every page.
type SiteConfig struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Footer      string `mapstructure:"footer"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

func (c SiteConfig) Site() domain.Site {
	return domain.Site{Title: c.Title, Description: c.Description, Footer: c.Footer}
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", EnvPro)
	v.SetDefault("server.address", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("tls.cache_dir", "/var/www/.cache")
	v.SetDefault("tls.whitelist_host", "")
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "./postyard.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.enable_signup", false)
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("pagination.page_size", domain.DefaultPageSize)
	v.SetDefault("site.title", "postyard")
	v.SetDefault("site.description", "")
	v.SetDefault("site.footer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("POSTYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Development runs on plain HTTP with an open sign up.
	if cfg.IsDev() {
		if cfg.Server.Address == "" {
			cfg.Server.Address = ":8080"
		}
		if cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = "unsecure"
		}
		cfg.Auth.EnableSignup = true
	}

	return &cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Pagination.PageSize < 1 || c.Pagination.PageSize > domain.MaxPageSize {
		return fmt.Errorf("pagination.page_size must be between 1 and %d, got %d", domain.MaxPageSize, c.Pagination.PageSize)
	}
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPgx:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
