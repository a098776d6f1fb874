// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. A .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MigrationsPath string `yaml:"migrations_path"`
}

// RedisConfig holds the real-time event sink settings. An empty Addr
// disables the sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// ProviderConfig holds the transactional-email provider settings. An empty
// APIKey selects the SMTP fallback transport.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SMTPConfig holds the fallback SMTP relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TrackingConfig holds the externally reachable base URL used to build
// tracking links embedded in outbound email.
type TrackingConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Load reads configuration: defaults, then the YAML file at path (optional),
// then environment overrides.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			URL:            "postgres://localhost:5432/campaigner?sslmode=disable",
			MigrationsPath: "migrations",
		},
		Redis:    RedisConfig{Channel: "campaigner:events"},
		Tracking: TrackingConfig{BaseURL: "http://localhost:8080"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Redis.Channel, "REDIS_CHANNEL")
	setString(&cfg.Provider.APIKey, "PROVIDER_API_KEY")
	setString(&cfg.Provider.BaseURL, "PROVIDER_BASE_URL")
	setString(&cfg.Provider.FromEmail, "MAIL_FROM_EMAIL")
	setString(&cfg.Provider.FromName, "MAIL_FROM_NAME")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.Tracking.BaseURL, "TRACKING_BASE_URL")

	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
