package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when no catalog API key is configured.
var ErrMissingAPIKey = errors.New("catalog API key is not set (set API_KEY or catalog.api_key)")

// ErrMissingSecret is returned by ValidateServer when no application secret is configured.
var ErrMissingSecret = errors.New("application secret is not set (set SECRET_KEY or server.secret)")

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig configures the TMDB client.
type CatalogConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	ImageURL string `yaml:"image_url"`
	Timeout  string `yaml:"timeout"`
}

// ParseTimeout returns the outbound request timeout as time.Duration.
func (c CatalogConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./movies-collection.db"},
		Catalog: CatalogConfig{
			BaseURL:  "https://api.themoviedb.org/3",
			ImageURL: "https://image.tmdb.org/t/p/w500",
			Timeout:  "10s",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, loads a .env file from the
// working directory if present, and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every catalog-facing command needs.
func (c *Config) Validate() error {
	if c.Catalog.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Database.Path == "" {
		return errors.New("database path is empty")
	}
	return nil
}

// ValidateServer checks the settings the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TOPMOVIES_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.Server.Secret = v
	}
	if v := os.Getenv("TOPMOVIES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TOPMOVIES_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}
