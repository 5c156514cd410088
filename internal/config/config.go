package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete apportion configuration
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	History   HistoryConfig   `mapstructure:"history"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Rebalance RebalanceConfig `mapstructure:"rebalance"`
	Intake    IntakeConfig    `mapstructure:"intake"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// SchedulerConfig controls partitioning and allocation behavior
type SchedulerConfig struct {
	// Strategy is the allocation strategy
	// Options: "round-robin", "specialized", "performance", "load-balanced"
	Strategy string `mapstructure:"strategy"`
	// Workers fixes the shard count for size-based partitioning.
	// 0 (default) derives the count from host resources.
	Workers int `mapstructure:"workers"`
	// ComplexityThreshold caps a shard's complexity budget for
	// complexity-based partitioning
	ComplexityThreshold float64 `mapstructure:"complexity_threshold"`
	// BaseUnitMinutes is the duration assigned to one unit of complexity
	// when an item has no estimate and no class history (default: 30)
	BaseUnitMinutes int `mapstructure:"base_unit_minutes"`
}

// HistoryConfig controls historical duration learning
type HistoryConfig struct {
	// Enabled feeds task completions back into duration estimates (default: true)
	Enabled bool `mapstructure:"enabled"`
}

// MonitorConfig controls host resource sampling
type MonitorConfig struct {
	// Enabled starts the periodic sampler with the scheduler (default: true)
	Enabled bool `mapstructure:"enabled"`
	// IntervalSeconds is the sampling period (default: 30)
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// RebalanceConfig controls the runtime rebalance sweep
type RebalanceConfig struct {
	// Enabled starts the periodic sweep with the scheduler (default: true)
	Enabled bool `mapstructure:"enabled"`
	// IntervalSeconds is the sweep period (default: 60)
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// IntakeConfig controls work plan loading
type IntakeConfig struct {
	// PlanFile is the default work plan path (default: "apportion.yaml")
	PlanFile string `mapstructure:"plan_file"`
	// Watch reloads the plan when the file changes (default: false)
	Watch bool `mapstructure:"watch"`
	// DebounceMs coalesces rapid file change bursts into one reload (default: 500)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where apportion stores data
type PathsConfig struct {
	// LogDir is the directory for log files.
	// Empty logs to stderr instead.
	LogDir string `mapstructure:"log_dir"`
}

// BaseUnit returns the complexity base unit as a time.Duration
func (s *SchedulerConfig) BaseUnit() time.Duration {
	return time.Duration(s.BaseUnitMinutes) * time.Minute
}

// Interval returns the sampling period as a time.Duration
func (m *MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Interval returns the sweep period as a time.Duration
func (r *RebalanceConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Debounce returns the reload debounce window as a time.Duration
func (i *IntakeConfig) Debounce() time.Duration {
	return time.Duration(i.DebounceMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Strategy:            "load-balanced",
			Workers:             0, // derive from host resources
			ComplexityThreshold: 10,
			BaseUnitMinutes:     30,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		Rebalance: RebalanceConfig{
			Enabled:         true,
			IntervalSeconds: 60,
		},
		Intake: IntakeConfig{
			PlanFile:   "apportion.yaml",
			Watch:      false,
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			LogDir: "", // Empty means log to stderr
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Scheduler defaults
	viper.SetDefault("scheduler.strategy", defaults.Scheduler.Strategy)
	viper.SetDefault("scheduler.workers", defaults.Scheduler.Workers)
	viper.SetDefault("scheduler.complexity_threshold", defaults.Scheduler.ComplexityThreshold)
	viper.SetDefault("scheduler.base_unit_minutes", defaults.Scheduler.BaseUnitMinutes)

	// History defaults
	viper.SetDefault("history.enabled", defaults.History.Enabled)

	// Monitor defaults
	viper.SetDefault("monitor.enabled", defaults.Monitor.Enabled)
	viper.SetDefault("monitor.interval_seconds", defaults.Monitor.IntervalSeconds)

	// Rebalance defaults
	viper.SetDefault("rebalance.enabled", defaults.Rebalance.Enabled)
	viper.SetDefault("rebalance.interval_seconds", defaults.Rebalance.IntervalSeconds)

	// Intake defaults
	viper.SetDefault("intake.plan_file", defaults.Intake.PlanFile)
	viper.SetDefault("intake.watch", defaults.Intake.Watch)
	viper.SetDefault("intake.debounce_ms", defaults.Intake.DebounceMs)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.log_dir", defaults.Paths.LogDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "apportion")
	}
	// Fall back to ~/.config/apportion
	home, err := os.UserHomeDir()
	if err != nil {
		return ".apportion"
	}
	return filepath.Join(home, ".config", "apportion")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
