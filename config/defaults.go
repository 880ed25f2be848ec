package config

import "time"

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Project: ProjectConfig{
			Dir:      ".",
			BuildDir: ".projlock",
		},
		Lock: LockConfig{
			Timeout:              0, // Unset; see TimeoutSet
			DefaultTimeout:       300 * time.Second,
			PollInterval:         100 * time.Millisecond,
			WaitProgressInterval: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
	}
}
