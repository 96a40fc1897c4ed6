package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port      string `yaml:"port" toml:"port"`
	DBPath    string `yaml:"db_path" toml:"db_path"`
	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"` // text, json

	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Map       MapConfig       `yaml:"map" toml:"map"`

	// Concurrent filter set queries per request
	Workers int `yaml:"workers" toml:"workers"`

	// GeoIP maps source IP prefixes (CIDR) to ISO 3166-1 alpha-2 country codes
	GeoIP map[string]string `yaml:"geoip" toml:"geoip"`
}

// AuthConfig holds JWT and user settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" toml:"token_ttl"`
	Users     []User        `yaml:"users" toml:"users"`
}

// User is a dashboard login; PasswordHash is a bcrypt hash
type User struct {
	Name         string `yaml:"name" toml:"name"`
	PasswordHash string `yaml:"password_hash" toml:"password_hash"`
}

// RateLimitConfig limits requests per client IP
type RateLimitConfig struct {
	Requests int           `yaml:"requests" toml:"requests"`
	Window   time.Duration `yaml:"window" toml:"window"`
}

// MapConfig controls the choropleth color scale
type MapConfig struct {
	Buckets      int     `yaml:"buckets" toml:"buckets"`
	MinLightness float64 `yaml:"min_lightness" toml:"min_lightness"`
	MaxLightness float64 `yaml:"max_lightness" toml:"max_lightness"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:      ":8080",
		DBPath:    "./data/dmarc.db",
		LogLevel:  "info",
		LogFormat: "text",
		Auth: AuthConfig{
			JWTSecret: "your-secret-key-change-in-production",
			TokenTTL:  12 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		Map: MapConfig{
			Buckets:      4,
			MinLightness: 0.0,
			MaxLightness: 0.8,
		},
		Workers: 4,
	}
}

// Load 加载配置: defaults, then the optional file at path (.yaml, .yml or .toml), then
// environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if workers := os.Getenv("WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid WORKERS %q: %w", workers, err)
		}
		cfg.Workers = n
	}
	return nil
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must not be empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	// requests = 0 disables rate limiting
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit needs requests >= 0 and, when enabled, a positive window"))
	}
	if c.Map.Buckets < 1 {
		errs = append(errs, fmt.Errorf("map.buckets must be at least 1, got %d", c.Map.Buckets))
	}
	if c.Map.MinLightness < 0 || c.Map.MaxLightness > 1 || c.Map.MinLightness >= c.Map.MaxLightness {
		errs = append(errs, fmt.Errorf("map lightness bounds [%g, %g] must satisfy 0 <= min < max <= 1",
			c.Map.MinLightness, c.Map.MaxLightness))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	for prefix, country := range c.GeoIP {
		if _, err := netip.ParsePrefix(prefix); err != nil {
			errs = append(errs, fmt.Errorf("geoip prefix %q: %w", prefix, err))
		}
		if len(country) != 2 {
			errs = append(errs, fmt.Errorf("geoip country %q for %s must be an alpha-2 code", country, prefix))
		}
	}

	return errors.Join(errs...)
}
