// Package config loads daemon configuration from .dcyfr/config.yaml with
// defaults for every knob. A missing file yields the defaults.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// StateDirName is the workspace's hidden state directory.
const StateDirName = ".dcyfr"

// Config is the daemon's fully resolved configuration.
type Config struct {
	WorkspaceRoot string

	// Watcher
	WatchRoots []string `mapstructure:"watch_roots"`
	IgnoreDirs []string `mapstructure:"ignore_dirs"`
	DebounceMS int      `mapstructure:"debounce_ms"`

	// Queue
	TaskTTLMinutes int   `mapstructure:"task_ttl_minutes"`
	MaxConcurrent  int64 `mapstructure:"max_concurrent"`

	// Supervisor
	HeartbeatSeconds  int     `mapstructure:"heartbeat_seconds"`
	DrainSeconds      int     `mapstructure:"drain_seconds"`
	MemoryThresholdMB float64 `mapstructure:"memory_threshold_mb"`

	// Log rotation
	LogMaxSizeBytes int64 `mapstructure:"log_max_size_bytes"`
	LogMaxBackups   int   `mapstructure:"log_max_backups"`

	// Health
	HistoryRetentionDays int `mapstructure:"history_retention_days"`

	// Result archive
	ArchiveEnabled bool `mapstructure:"archive_enabled"`
}

// Load reads .dcyfr/config.yaml under the workspace root, falling back to
// defaults for anything unset.
func Load(workspaceRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(workspaceRoot, StateDirName))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.WorkspaceRoot = workspaceRoot
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch_roots", []string{"."})
	v.SetDefault("ignore_dirs", []string{})
	v.SetDefault("debounce_ms", 500)
	v.SetDefault("task_ttl_minutes", 60)
	v.SetDefault("max_concurrent", 1)
	v.SetDefault("heartbeat_seconds", 60)
	v.SetDefault("drain_seconds", 10)
	v.SetDefault("memory_threshold_mb", 512)
	v.SetDefault("log_max_size_bytes", 5*1024*1024)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("history_retention_days", 90)
	v.SetDefault("archive_enabled", true)
}

// StateDir returns the workspace's state directory path.
func (c *Config) StateDir() string {
	return filepath.Join(c.WorkspaceRoot, StateDirName)
}

// StatePath returns the path of a file inside the state directory.
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.StateDir(), name)
}

// TaskTTL returns the queue TTL as a duration.
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.TaskTTLMinutes) * time.Minute
}

// Debounce returns the watcher debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// HeartbeatPeriod returns the heartbeat interval.
func (c *Config) HeartbeatPeriod() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// DrainTimeout returns the graceful drain deadline.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainSeconds) * time.Second
}

// HistoryRetention returns the health history retention window.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}
