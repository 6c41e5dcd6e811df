// Package config provides configuration management for bannerd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 10
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultMediaRetention    = 30 * 24 * time.Hour
	defaultMaxMediaSizeBytes = 20 * 1024 * 1024 // 20MB
	defaultAttemptCap        = 3
	defaultProbeTimeout      = 10 * time.Second
	defaultFetchTimeout      = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryDelay        = 1 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir        string        `mapstructure:"base_dir"`
	MediaDir       string        `mapstructure:"media_dir"`
	UploadsDir     string        `mapstructure:"uploads_dir"`
	MediaRetention time.Duration `mapstructure:"media_retention"`
	// MaxMediaSize is the maximum allowed size for a banner media file.
	// Supports human-readable values like "20MB", "1GB", or raw byte counts.
	MaxMediaSize ByteSize `mapstructure:"max_media_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ResolverConfig holds banner media resolution configuration.
//
// The candidate endpoints (direct endpoint, proxy buckets, uploads path) are
// configuration-driven rather than hardcoded so deployments can point them at
// their own object store layout; the defaults mirror the historical values.
type ResolverConfig struct {
	// AttemptCap bounds the number of fallback hops per media reference.
	AttemptCap int `mapstructure:"attempt_cap"`
	// AttemptDelay is an explicit delay between fallback attempts.
	AttemptDelay time.Duration `mapstructure:"attempt_delay"`
	// ProbeTimeout is the per-candidate HTTP probe timeout.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// BaseURL is the same-origin base the prober resolves candidates against.
	BaseURL string `mapstructure:"base_url"`
	// ForceReload appends a cache-busting query parameter to normalized URLs.
	ForceReload bool `mapstructure:"force_reload"`
	// PathMarkers identify references that belong to the banner subsystem;
	// references matching none of the markers pass through untouched.
	PathMarkers []string `mapstructure:"path_markers"`
	// DirectEndpoint serves cached banner media by filename.
	DirectEndpoint string `mapstructure:"direct_endpoint"`
	// ProxyPrefix is the same-origin object-storage proxy prefix.
	ProxyPrefix string `mapstructure:"proxy_prefix"`
	// Buckets are the object-storage buckets tried during fallback, in order.
	Buckets []string `mapstructure:"buckets"`
	// UploadsPath is the static uploads fallback path.
	UploadsPath string `mapstructure:"uploads_path"`
	// PlaceholderPath is served when every candidate has failed.
	PlaceholderPath string `mapstructure:"placeholder_path"`
	// ObjectStoreURL is the upstream origin the /proxy endpoint forwards to.
	ObjectStoreURL string `mapstructure:"object_store_url"`
	// FetchTimeout, RetryAttempts and RetryDelay configure the HTTP client
	// used for media downloads.
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// SchedulerConfig holds background job configuration.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// PruneCron prunes stale cached media (6-field cron expression).
	PruneCron string `mapstructure:"prune_cron"`
	// SweepCron re-probes enabled slides so broken references are found
	// before a page load hits them.
	SweepCron string `mapstructure:"sweep_cron"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with BANNERD_, with underscores for nesting.
// Example: BANNERD_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bannerd")
		v.AddConfigPath("$HOME/.bannerd")
	}

	v.SetEnvPrefix("BANNERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates configuration from an already populated
// Viper instance. Callers that manage their own Viper lifecycle (such as the
// CLI, which binds flags before loading) use this instead of Load.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "bannerd.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.media_dir", "media")
	v.SetDefault("storage.uploads_dir", "uploads")
	v.SetDefault("storage.media_retention", defaultMediaRetention)
	v.SetDefault("storage.max_media_size", defaultMaxMediaSizeBytes)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Resolver defaults
	v.SetDefault("resolver.attempt_cap", defaultAttemptCap)
	v.SetDefault("resolver.attempt_delay", time.Duration(0))
	v.SetDefault("resolver.probe_timeout", defaultProbeTimeout)
	v.SetDefault("resolver.base_url", "http://127.0.0.1:8080")
	v.SetDefault("resolver.force_reload", false)
	v.SetDefault("resolver.path_markers", []string{"banner"})
	v.SetDefault("resolver.direct_endpoint", "/banners/media")
	v.SetDefault("resolver.proxy_prefix", "/proxy")
	v.SetDefault("resolver.buckets", []string{"banner-images", "banner-uploads"})
	v.SetDefault("resolver.uploads_path", "/uploads")
	v.SetDefault("resolver.placeholder_path", "/assets/banner-placeholder.png")
	v.SetDefault("resolver.object_store_url", "")
	v.SetDefault("resolver.fetch_timeout", defaultFetchTimeout)
	v.SetDefault("resolver.retry_attempts", defaultRetryAttempts)
	v.SetDefault("resolver.retry_delay", defaultRetryDelay)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.prune_cron", "0 0 3 * * *") // daily at 3 AM
	v.SetDefault("scheduler.sweep_cron", "0 */30 * * * *")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Resolver.AttemptCap < 1 {
		return fmt.Errorf("resolver.attempt_cap must be at least 1")
	}
	if len(c.Resolver.Buckets) == 0 {
		return fmt.Errorf("resolver.buckets must name at least one bucket")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MediaPath returns the full path to the cached media directory.
func (c *StorageConfig) MediaPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.MediaDir)
}

// UploadsPath returns the full path to the static uploads directory.
func (c *StorageConfig) UploadsPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.UploadsDir)
}
