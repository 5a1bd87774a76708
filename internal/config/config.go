// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Every knob has a default so the
// service starts with no config at all.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full scheduler service configuration.
type Config struct {
	Service    ServiceConfig    `json:"service" yaml:"service" mapstructure:"service"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Redis      RedisConfig      `json:"redis" yaml:"redis" mapstructure:"redis"`
	Database   DatabaseConfig   `json:"database" yaml:"database" mapstructure:"database"`
	Family     FamilyConfig     `json:"family" yaml:"family" mapstructure:"family"`
	LLM        LLMConfig        `json:"llm" yaml:"llm" mapstructure:"llm"`
	Scheduling SchedulingConfig `json:"scheduling" yaml:"scheduling" mapstructure:"scheduling"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint" mapstructure:"checkpoint"`
}

// ServiceConfig contains basic service settings.
type ServiceConfig struct {
	MetricsPort     int           `json:"metrics_port" yaml:"metrics_port" mapstructure:"metrics_port"`
	GracefulTimeout time.Duration `json:"graceful_timeout" yaml:"graceful_timeout" mapstructure:"graceful_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Development bool   `json:"development" yaml:"development" mapstructure:"development"`
}

// RedisConfig selects the Redis checkpoint backend; an empty Addr keeps
// checkpoints in process memory.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	DB       int    `json:"db" yaml:"db" mapstructure:"db"`
}

// DatabaseConfig selects the Postgres family directory; an empty DSN
// falls back to the YAML file directory.
type DatabaseConfig struct {
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// FamilyConfig locates the household roster file.
type FamilyConfig struct {
	ConfigPath string `json:"config_path" yaml:"config_path" mapstructure:"config_path"`
	Watch      bool   `json:"watch" yaml:"watch" mapstructure:"watch"`
}

// LLMConfig tunes the reasoning capability client.
type LLMConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// SchedulingConfig tunes slot search.
type SchedulingConfig struct {
	WorkingHoursStart int `json:"working_hours_start" yaml:"working_hours_start" mapstructure:"working_hours_start"`
	WorkingHoursEnd   int `json:"working_hours_end" yaml:"working_hours_end" mapstructure:"working_hours_end"`
	SearchWindowDays  int `json:"search_window_days" yaml:"search_window_days" mapstructure:"search_window_days"`
	MaxSlots          int `json:"max_slots" yaml:"max_slots" mapstructure:"max_slots"`
}

// CheckpointConfig tunes conversation persistence.
type CheckpointConfig struct {
	TTL        time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`
}

// Load reads configuration from SCHEDULER_CONFIG_PATH (or
// config/scheduler.yaml when unset), applies SCHEDULER_* environment
// overrides, and validates the result. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("service.metrics_port", 2112)
	v.SetDefault("service.graceful_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.dsn", "")
	v.SetDefault("family.config_path", "config/family.yaml")
	v.SetDefault("family.watch", true)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("scheduling.working_hours_start", 8)
	v.SetDefault("scheduling.working_hours_end", 20)
	v.SetDefault("scheduling.search_window_days", 7)
	v.SetDefault("scheduling.max_slots", 10)
	v.SetDefault("checkpoint.ttl", 24*time.Hour)
	v.SetDefault("checkpoint.max_entries", 10000)

	v.SetEnvPrefix("SCHEDULER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("SCHEDULER_CONFIG_PATH")
	if path == "" {
		path = "config/scheduler.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		// A present-but-broken file is a hard error; a missing file just
		// means defaults plus env.
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Scheduling.WorkingHoursStart < 0 || c.Scheduling.WorkingHoursStart > 23 {
		return fmt.Errorf("scheduling.working_hours_start out of range: %d", c.Scheduling.WorkingHoursStart)
	}
	if c.Scheduling.WorkingHoursEnd < 1 || c.Scheduling.WorkingHoursEnd > 24 {
		return fmt.Errorf("scheduling.working_hours_end out of range: %d", c.Scheduling.WorkingHoursEnd)
	}
	if c.Scheduling.WorkingHoursEnd <= c.Scheduling.WorkingHoursStart {
		return fmt.Errorf("scheduling working hours window is empty: %d..%d",
			c.Scheduling.WorkingHoursStart, c.Scheduling.WorkingHoursEnd)
	}
	if c.Scheduling.SearchWindowDays <= 0 {
		return fmt.Errorf("scheduling.search_window_days must be positive: %d", c.Scheduling.SearchWindowDays)
	}
	if c.LLM.RequestsPerMinute <= 0 {
		return fmt.Errorf("llm.requests_per_minute must be positive: %d", c.LLM.RequestsPerMinute)
	}
	if c.Checkpoint.TTL <= 0 {
		return fmt.Errorf("checkpoint.ttl must be positive: %s", c.Checkpoint.TTL)
	}
	return nil
}
