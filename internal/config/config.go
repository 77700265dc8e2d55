// Package config loads client settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"gopkg.in/yaml.v3"
)

// Token store backends
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	APIBaseURL          string        `yaml:"api_base_url"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval"`
	TokenStore          string        `yaml:"token_store"`
	TokenFile           string        `yaml:"token_file"`
	RedisURL            string        `yaml:"redis_url"`
	RedisKeyPrefix      string        `yaml:"redis_key_prefix"`
	RateLimit           string        `yaml:"rate_limit"`
	MirrorCookie        bool          `yaml:"mirror_cookie"`
	Debug               bool          `yaml:"debug"`
	OTELEnabled         bool          `yaml:"otel_enabled"`
	OTELEndpoint        string        `yaml:"otel_endpoint"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		APIBaseURL:          "http://localhost:8000/api/v1",
		RequestTimeout:      10 * time.Second,
		ExpiryCheckInterval: 60 * time.Second,
		TokenStore:          StoreFile,
		RedisURL:            "redis://localhost:6379/0",
		RedisKeyPrefix:      "matrix-todo",
	}
}

// Load loads configuration from the environment and the config file it names
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	path := getenv("MATRIX_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	e := env(getenv)
	cfg.APIBaseURL = e.get("MATRIX_API_BASE_URL", cfg.APIBaseURL)
	cfg.RequestTimeout = e.getDuration("MATRIX_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ExpiryCheckInterval = e.getDuration("MATRIX_EXPIRY_CHECK_INTERVAL", cfg.ExpiryCheckInterval)
	cfg.TokenStore = e.get("MATRIX_TOKEN_STORE", cfg.TokenStore)
	cfg.TokenFile = e.get("MATRIX_TOKEN_FILE", cfg.TokenFile)
	cfg.RedisURL = e.get("MATRIX_REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = e.get("MATRIX_REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)
	cfg.RateLimit = e.get("MATRIX_RATE_LIMIT", cfg.RateLimit)
	cfg.MirrorCookie = e.getBool("MATRIX_MIRROR_COOKIE", cfg.MirrorCookie)
	cfg.Debug = e.getBool("MATRIX_DEBUG", cfg.Debug)
	cfg.OTELEnabled = e.getBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = e.get("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns <user config dir>/matrix-todo/config.yaml, or "" when there is no config dir
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "matrix-todo", "config.yaml")
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MATRIX_API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("MATRIX_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ExpiryCheckInterval <= 0 {
		return fmt.Errorf("MATRIX_EXPIRY_CHECK_INTERVAL must be positive, got %s", c.ExpiryCheckInterval)
	}
	switch c.TokenStore {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("MATRIX_REDIS_URL is required when MATRIX_TOKEN_STORE is redis")
		}
	default:
		return fmt.Errorf("MATRIX_TOKEN_STORE must be one of file, memory, redis, got %q", c.TokenStore)
	}
	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return fmt.Errorf("MATRIX_RATE_LIMIT is invalid: %w", err)
		}
	}
	if c.OTELEnabled && c.OTELEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}
	return nil
}

type env func(string) string

func (e env) get(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s") or a bare number of seconds
func (e env) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := e(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := e.getInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
