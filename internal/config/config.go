// Package config loads the lockbox server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvListenAddr  = "LOCKBOX_LISTEN_ADDR"
	EnvSecretKey   = "LOCKBOX_SECRET_KEY"
	EnvMaxUploadMB = "LOCKBOX_MAX_UPLOAD_MB"
	EnvLogLevel    = "LOCKBOX_LOG_LEVEL"

	defaultDotEnv = ".env"
	defaultMaxMB  = 32
	bytesPerMiB   = 1 << 20
)

// Config is loaded once at startup and not mutated afterwards.
type Config struct {
	ListenAddr  string `validate:"required,hostname_port"`
	MaxUploadMB int    `validate:"min=1,max=1024"`
	LogLevel    string `validate:"oneof=debug info warn error"`

	// SecretKey signs flash cookies. Empty means resolve it from the keyring.
	SecretKey string `validate:"omitempty,min=16"`
}

// LoadDotEnv reads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = defaultDotEnv
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from LOCKBOX_* variables
func FromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: getenv(EnvListenAddr, "127.0.0.1:5000"),
		LogLevel:   strings.ToLower(getenv(EnvLogLevel, "info")),
		SecretKey:  strings.TrimSpace(os.Getenv(EnvSecretKey)),
	}

	raw := getenv(EnvMaxUploadMB, strconv.Itoa(defaultMaxMB))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer, got %q", EnvMaxUploadMB, raw)
	}
	cfg.MaxUploadMB = n

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration against the struct tags
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	return nil
}

// MaxUploadBytes is the request body limit in bytes
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * bytesPerMiB
}

// SlogLevel maps LogLevel to a slog.Level
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
