// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// AdminConfig holds the users allowed to trigger resets and snapshots.
type AdminConfig struct {
	IDs []string `mapstructure:"ids"`
}

// LeaderboardConfig holds ranking, history and archive settings.
type LeaderboardConfig struct {
	DefaultPageSize    int      `mapstructure:"default_page_size"`
	MaxPageSize        int      `mapstructure:"max_page_size"`
	SnapshotTopN       int      `mapstructure:"snapshot_top_n"`
	HistoryLimit       int      `mapstructure:"history_limit"`
	Regions            []string `mapstructure:"regions"`
	NotifyOnCompletion bool     `mapstructure:"notify_on_completion"`
}

// SchedulerConfig holds the periodic reset/snapshot trigger settings.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// TelegramConfig holds the optional period-winner announcer settings.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, AUTH_JWT_SECRET, SCHEDULER_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.Leaderboard.MaxPageSize < 1 {
		return fmt.Errorf("leaderboard.max_page_size must be positive")
	}
	if c.Leaderboard.DefaultPageSize < 1 || c.Leaderboard.DefaultPageSize > c.Leaderboard.MaxPageSize {
		return fmt.Errorf("leaderboard.default_page_size must be within 1..%d", c.Leaderboard.MaxPageSize)
	}
	if c.Leaderboard.SnapshotTopN < 1 {
		return fmt.Errorf("leaderboard.snapshot_top_n must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flexboard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "flexboard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Keys without defaults are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("admin.ids", []string{})
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("leaderboard.default_page_size", 50)
	v.SetDefault("leaderboard.max_page_size", 100)
	v.SetDefault("leaderboard.snapshot_top_n", 100)
	v.SetDefault("leaderboard.history_limit", 30)
	v.SetDefault("leaderboard.regions", []string{})
	v.SetDefault("leaderboard.notify_on_completion", true)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TelegramEnabled reports whether the period-winner announcer is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}
