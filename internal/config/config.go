// Package config loads application configuration from a YAML file and
// GUILDHALL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore: GUILDHALL_DATABASE__URL.
const EnvPrefix = "GUILDHALL_"

// Config contains all application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	Authz         AuthzConfig         `koanf:"authz"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Blob          BlobConfig          `koanf:"blob"`
	CORS          CORSConfig          `koanf:"cors"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// JWTConfig contains token settings.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key" validate:"required,min=16"`
	Issuer        string        `koanf:"issuer"`
	TokenDuration time.Duration `koanf:"token_duration" validate:"gt=0"`
}

// AuthzConfig overrides the built-in capability table. Capabilities is keyed
// by tier number ("1".."6"). Tiers that are not listed keep their defaults.
type AuthzConfig struct {
	Capabilities map[string][]string `koanf:"capabilities"`
	Reserved     []string            `koanf:"reserved"`
}

// NotificationsConfig contains webhook delivery settings.
type NotificationsConfig struct {
	GeneralWebhooks []string      `koanf:"general_webhooks" validate:"dive,url"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxParallel     int           `koanf:"max_parallel" validate:"gte=1"`
	RateLimit       float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst           int           `koanf:"burst" validate:"gte=0"`
	Username        string        `koanf:"username"`
	AvatarURL       string        `koanf:"avatar_url" validate:"omitempty,url"`
	Footer          string        `koanf:"footer"`
}

// BlobConfig contains proof storage settings. An empty token disables
// proof uploads.
type BlobConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"omitempty,url"`
	Token          string        `koanf:"token"`
	Timeout        time.Duration `koanf:"timeout"`
	ProofTTL       time.Duration `koanf:"proof_ttl" validate:"gt=0"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes" validate:"gt=0"`
	AllowedTypes   []string      `koanf:"allowed_types"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Default returns the configuration used for keys that are not set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			Issuer:        "guildhall",
			TokenDuration: 12 * time.Hour,
		},
		Notifications: NotificationsConfig{
			Timeout:     10 * time.Second,
			MaxParallel: 4,
			Burst:       5,
			Username:    "Guildhall",
		},
		Blob: BlobConfig{
			BaseURL:        "https://blob.vercel-storage.com",
			Timeout:        30 * time.Second,
			ProofTTL:       7 * 24 * time.Hour,
			MaxUploadBytes: 8 << 20,
		},
	}
}

// Load reads configuration from path (optional) and the environment, on top
// of Default. Environment values win over the file.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase loads configuration like Load but validates only the
// database section. Used by commands that do not start the server.
func LoadDatabase(path string) (*DatabaseConfig, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg.Database); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	return &cfg.Database, nil
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps GUILDHALL_NOTIFICATIONS__MAX_PARALLEL to
// notifications.max_parallel.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
