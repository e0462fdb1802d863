package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between the bot and the tools.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Uptrace    Uptrace    `koanf:"uptrace"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Health heartbeat configuration.
	Health Health `koanf:"health"`
	// Autoban engine configuration.
	Autoban Autoban `koanf:"autoban"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Uptrace contains OpenTelemetry export configuration.
type Uptrace struct {
	// Uptrace DSN. Tracing is disabled when empty.
	DSN string `koanf:"dsn"`
	// Service name reported with spans.
	ServiceName string `koanf:"service_name"`
	// Deployment environment label.
	Environment string `koanf:"environment"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Register slash commands on startup.
	SyncCommands bool `koanf:"sync_commands"`
}

// Health contains heartbeat configuration.
type Health struct {
	// Heartbeat interval in seconds.
	Interval int `koanf:"interval"`
	// Retention of processed event keys in seconds.
	EventRetention int `koanf:"event_retention"`
}

// Autoban contains autoban engine configuration.
type Autoban struct {
	// Enabled rule cache TTL in seconds. Zero disables the cache.
	RuleCacheTTL int `koanf:"rule_cache_ttl"`
	// Width of the action claim bucket in seconds.
	ClaimBucket int `koanf:"claim_bucket"`
	// Maximum events dispatched at once.
	MaxConcurrentEvents int `koanf:"max_concurrent_events"`
}

// HeartbeatInterval returns the heartbeat interval with a 10 minute default.
func (h Health) HeartbeatInterval() time.Duration {
	if h.Interval <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(h.Interval) * time.Second
}

// Retention returns the processed event retention with a 1 hour default.
func (h Health) Retention() time.Duration {
	if h.EventRetention <= 0 {
		return time.Hour
	}
	return time.Duration(h.EventRetention) * time.Second
}

// CacheTTL returns the rule cache TTL.
func (a Autoban) CacheTTL() time.Duration {
	if a.RuleCacheTTL < 0 {
		return 0
	}
	return time.Duration(a.RuleCacheTTL) * time.Second
}

// Bucket returns the action claim bucket width with a 1 minute default.
func (a Autoban) Bucket() time.Duration {
	if a.ClaimBucket <= 0 {
		return time.Minute
	}
	return time.Duration(a.ClaimBucket) * time.Second
}

// Concurrency returns the event dispatch limit with a default of 32.
func (a Autoban) Concurrency() int64 {
	if a.MaxConcurrentEvents <= 0 {
		return 32
	}
	return int64(a.MaxConcurrentEvents)
}

// Timeout returns the request timeout with a 30 second default.
func (b BotConfig) Timeout() time.Duration {
	if b.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.RequestTimeout) * time.Millisecond
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".autoban",
		homeDir + "/.autoban/config",
		"/etc/autoban/config",
		"/app/config",
		"config",
		".",
	}

	return LoadConfigFrom(configPaths)
}

// LoadConfigFrom loads every config file from the first path that has it.
func LoadConfigFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := filepath.Join(path, configName+".toml")

			sub := koanf.New(".")
			if err := sub.Load(file.Provider(configPath), toml.Parser()); err != nil {
				continue
			}

			if err := k.MergeAt(sub, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
			}

			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/autoban/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
