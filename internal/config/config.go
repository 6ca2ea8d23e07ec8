package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ETB"

// Config holds all configuration for the service
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	EnergyTracker EnergyTrackerConfig `mapstructure:"energy_tracker"`
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Locale        string              `mapstructure:"locale"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// AuthConfig protects the bridge's own HTTP API
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EnergyTrackerConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	ScanInterval         time.Duration `mapstructure:"scan_interval"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
}

type HomeAssistantConfig struct {
	URL            string        `mapstructure:"url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type MonitoringConfig struct {
	LogLevel string       `mapstructure:"log_level"`
	Influx   InfluxConfig `mapstructure:"influx"`
}

// InfluxConfig controls the optional export of each cycle's readings
type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

// Load initializes configuration from .env, environment variables and config file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Load config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// every key gets a default so AutomaticEnv can bind it during Unmarshal
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("auth.token", "")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "etbridge")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.sqlite.path", "./data/etbridge.db")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Energy Tracker defaults
	v.SetDefault("energy_tracker.base_url", "https://public-api.energy-tracker.best-ios-apps.de")
	v.SetDefault("energy_tracker.request_timeout", "10s")
	v.SetDefault("energy_tracker.scan_interval", "15m")
	v.SetDefault("energy_tracker.max_concurrent_fetches", 4)

	// Home Assistant defaults
	v.SetDefault("home_assistant.url", "http://homeassistant.local:8123")
	v.SetDefault("home_assistant.token", "")
	v.SetDefault("home_assistant.request_timeout", "10s")

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("monitoring.influx.enabled", false)
	v.SetDefault("monitoring.influx.url", "http://localhost:8086")
	v.SetDefault("monitoring.influx.token", "")
	v.SetDefault("monitoring.influx.org", "")
	v.SetDefault("monitoring.influx.bucket", "energy_tracker")

	v.SetDefault("locale", "en")
}

func validateConfig(config *Config) error {
	if config.Auth.Token == "" {
		return fmt.Errorf("auth token is required")
	}
	switch config.Database.Driver {
	case "postgres":
		if config.Database.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
	case "sqlite":
		if config.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}
	if _, err := url.ParseRequestURI(config.EnergyTracker.BaseURL); err != nil {
		return fmt.Errorf("invalid energy tracker base url: %w", err)
	}
	if config.EnergyTracker.RequestTimeout <= 0 {
		return fmt.Errorf("energy tracker request timeout must be positive")
	}
	if config.EnergyTracker.ScanInterval < time.Minute {
		return fmt.Errorf("energy tracker scan interval must be at least 1m")
	}
	if config.EnergyTracker.MaxConcurrentFetches < 1 {
		return fmt.Errorf("max concurrent fetches must be at least 1")
	}
	if config.HomeAssistant.URL == "" || config.HomeAssistant.Token == "" {
		return fmt.Errorf("home assistant url and token are required")
	}
	if config.Monitoring.Influx.Enabled && (config.Monitoring.Influx.Org == "" || config.Monitoring.Influx.Token == "") {
		return fmt.Errorf("influx org and token are required when the export is enabled")
	}
	return nil
}
