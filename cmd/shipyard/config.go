package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Compose  ComposeConfig  `mapstructure:"compose"`
	VCS      VCSConfig      `mapstructure:"vcs"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// StorageConfig holds the root of the codes and applications trees.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// ComposeConfig holds compose CLI settings.
type ComposeConfig struct {
	Binary        string `mapstructure:"binary"`
	ProjectPrefix string `mapstructure:"project_prefix"`
}

// VCSConfig holds source fetching credentials and retry policy.
type VCSConfig struct {
	SSHKeyPath       string        `mapstructure:"ssh_key_path"`
	SSHKeyPassphrase string        `mapstructure:"ssh_key_passphrase"`
	KnownHostsPath   string        `mapstructure:"known_hosts_path"`
	Username         string        `mapstructure:"username"`
	Token            string        `mapstructure:"token"`
	Retries          int           `mapstructure:"retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// TimeoutsConfig bounds each external call. Zero disables the bound.
type TimeoutsConfig struct {
	Fetch    time.Duration `mapstructure:"fetch"`
	Build    time.Duration `mapstructure:"build"`
	Compose  time.Duration `mapstructure:"compose"`
	Registry time.Duration `mapstructure:"registry"`
}

// AuthConfig holds the optional gateway secret.
type AuthConfig struct {
	// SharedSecret must be sent in X-Shipyard-Secret when set.
	SharedSecret string `mapstructure:"shared_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks values viper cannot.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return errors.New("storage.dir is required")
	}
	if c.VCS.Retries < 0 {
		return errors.New("vcs.retries must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"timeouts.fetch":    c.Timeouts.Fetch,
		"timeouts.build":    c.Timeouts.Build,
		"timeouts.compose":  c.Timeouts.Compose,
		"timeouts.registry": c.Timeouts.Registry,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3020)
	v.SetDefault("server.read_timeout", "30s")
	// Builds and deploys answer synchronously.
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/shipyard.db")
	v.SetDefault("docker.host", "")
	v.SetDefault("storage.dir", "./storage")
	v.SetDefault("compose.binary", "docker compose")
	v.SetDefault("compose.project_prefix", "")
	v.SetDefault("vcs.ssh_key_path", "")
	v.SetDefault("vcs.ssh_key_passphrase", "")
	v.SetDefault("vcs.known_hosts_path", "")
	v.SetDefault("vcs.username", "")
	v.SetDefault("vcs.token", "")
	v.SetDefault("vcs.retries", 0)
	v.SetDefault("vcs.retry_delay", "2s")
	v.SetDefault("timeouts.fetch", "5m")
	v.SetDefault("timeouts.build", "20m")
	v.SetDefault("timeouts.compose", "5m")
	v.SetDefault("timeouts.registry", "10m")
	v.SetDefault("auth.shared_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a malformed file is fatal; a missing one falls back to defaults.
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SHIPYARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
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

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
