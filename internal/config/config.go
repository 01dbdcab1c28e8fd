// Package config loads process-wide configuration for the control
// plane (spec §6 "Configuration (process-wide)"), grounded on the
// teacher's internal/config.Config: a mapstructure-tagged tree of
// sub-configs, viper-backed defaults plus environment overrides, and a
// Validate pass that differs by deployment profile.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Profile selects the storage backend this process runs against (spec
// §4.6 "two concrete implementations... selected by deployment
// profile").
type Profile string

const (
	ProfileLite     Profile = "lite"
	ProfileStandard Profile = "standard"
)

// Config is the top-level application configuration.
type Config struct {
	Profile Profile `mapstructure:"profile"`

	API      APIConfig      `mapstructure:"api"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Bus      BusConfig      `mapstructure:"bus"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	App      AppConfig      `mapstructure:"app"`
}

// APIConfig holds the REST surface's versioning/paging knobs (spec §6).
type APIConfig struct {
	V1Prefix    string `mapstructure:"v1_prefix"`
	PageSizeMax int    `mapstructure:"page_size_max"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	ListenAddr              string        `mapstructure:"listen_addr"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// StoreConfig carries the generic store knobs shared by both backends
// (spec §5 "deadline... recommended 5s for reads, 30s for writes").
type StoreConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	EntityCacheSize int           `mapstructure:"entity_cache_size"`
}

// DatabaseConfig holds PostgreSQL connection settings (standard profile).
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// SQLiteConfig holds the embedded-store path (lite profile).
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds the event bus's transport settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BusConfig holds the Event Publisher's retry policy (spec §4.5/§6
// RETRY_MAX_ATTEMPTS, RETRY_BACKOFF_CAP_SEC).
type BusConfig struct {
	URL                 string        `mapstructure:"url"`
	RetryMaxAttempts    int           `mapstructure:"retry_max_attempts"`
	RetryBackoffCapSec  time.Duration `mapstructure:"retry_backoff_cap_sec"`
	RetryInitialBackoff time.Duration `mapstructure:"retry_initial_backoff"`
}

// LogConfig holds structured logging sink settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig holds the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AppConfig holds process identity metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// Load reads configuration from an optional YAML file plus environment
// variable overrides, applying defaults first (spec §6's process-wide
// configuration knobs).
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("profile", "standard")

	viper.SetDefault("api.v1_prefix", "/api/v1")
	viper.SetDefault("api.page_size_max", 100)

	viper.SetDefault("server.listen_addr", ":8350")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("store.read_timeout", "5s")
	viper.SetDefault("store.write_timeout", "30s")
	viper.SetDefault("store.entity_cache_size", 1024)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "strategy_library")
	viper.SetDefault("database.username", "library")
	viper.SetDefault("database.password", "library")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.min_connections", 5)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.connect_timeout", "10s")

	viper.SetDefault("sqlite.path", "/data/library.db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("bus.url", "")
	viper.SetDefault("bus.retry_max_attempts", 5)
	viper.SetDefault("bus.retry_backoff_cap_sec", "30s")
	viper.SetDefault("bus.retry_initial_backoff", "1s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("app.name", "strategy-library-control-plane")
	viper.SetDefault("app.environment", "development")
}

// Validate enforces the invariants the rest of the service assumes at
// startup.
func (c *Config) Validate() error {
	if c.Profile != ProfileLite && c.Profile != ProfileStandard {
		return fmt.Errorf("invalid deployment profile: %q", c.Profile)
	}

	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen_addr cannot be empty")
	}

	if c.API.PageSizeMax < 1 {
		return fmt.Errorf("api page_size_max must be positive, got %d", c.API.PageSizeMax)
	}

	if c.Profile == ProfileStandard {
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty (required for standard profile)")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name cannot be empty (required for standard profile)")
		}
	}
	if c.Profile == ProfileLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite path cannot be empty (required for lite profile)")
	}

	if c.Bus.RetryMaxAttempts < 1 {
		return fmt.Errorf("bus retry_max_attempts must be positive, got %d", c.Bus.RetryMaxAttempts)
	}

	return nil
}
