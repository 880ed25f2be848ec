// Package config provides configuration management for projlock.
// It handles loading and validating configuration from YAML/JSON files and environment variables.
package config

import "time"

// AppConfig represents the complete application configuration
type AppConfig struct {
	Log     LogConfig     `koanf:"log"`
	Project ProjectConfig `koanf:"project"`
	Lock    LockConfig    `koanf:"lock"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ProjectConfig locates the project whose build directory holds the locks
type ProjectConfig struct {
	Dir      string `koanf:"dir"`
	BuildDir string `koanf:"build_dir"` // Relative to Dir unless absolute
}

// LockConfig holds lock timing configuration
type LockConfig struct {
	// Timeout overrides every per-call default when TimeoutSet is true.
	// It is normally supplied with --lock-timeout or PROJLOCK_LOCK_TIMEOUT.
	Timeout              time.Duration `koanf:"timeout"`
	TimeoutSet           bool          `koanf:"-"`
	DefaultTimeout       time.Duration `koanf:"default_timeout"`
	PollInterval         time.Duration `koanf:"poll_interval"`
	WaitProgressInterval time.Duration `koanf:"wait_progress_interval"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `koanf:"textfile"` // Prometheus textfile path, empty disables export
}
