package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "PROJLOCK_"

var defaultConfigFiles = []string{"projlock.yaml", "projlock.yml", "projlock.json"}

// LoadConfig loads configuration from multiple sources with strict priority:
// 1. Environment variables (highest priority)
// 2. Config file (projlock.yaml, projlock.yml or projlock.json)
// 3. Defaults (lowest priority)
func LoadConfig() (AppConfig, error) {
	return LoadConfigFromFile("")
}

// LoadConfigFromFile loads configuration from multiple sources with a specific config file:
// 1. Environment variables (highest priority)
// 2. Specified config file or default config files
// 3. Defaults (lowest priority)
func LoadConfigFromFile(configFilePath string) (AppConfig, error) {
	k := koanf.New(".")

	// Load default configuration first
	defaultCfg := DefaultAppConfig()
	if err := k.Load(structs.Provider(defaultCfg, "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load default config: %w", err)
	}

	// User supplied values are kept apart so explicit settings can be detected
	user := koanf.New(".")

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return AppConfig{}, fmt.Errorf("specified config file %s not found: %w", configFilePath, err)
		}
		if err := loadFile(user, configFilePath); err != nil {
			return AppConfig{}, err
		}
	} else {
		for _, configFile := range defaultConfigFiles {
			if _, err := os.Stat(configFile); err == nil {
				if err := loadFile(user, configFile); err != nil {
					return AppConfig{}, err
				}
				break
			}
		}
	}

	// Only the first underscore separates the section: PROJLOCK_LOCK_DEFAULT_TIMEOUT -> lock.default_timeout
	if err := user.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return AppConfig{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Merge(user); err != nil {
		return AppConfig{}, fmt.Errorf("failed to merge config: %w", err)
	}

	var cfg AppConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsDurationHook(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return AppConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Lock.TimeoutSet = user.Exists("lock.timeout")

	if err := ValidateConfig(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// secondsDurationHook reads unitless durations as seconds, so "timeout: 300"
// and PROJLOCK_LOCK_TIMEOUT=300 mean five minutes. Strings with a unit fall
// through to the next hook.
func secondsDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return data, nil
			}
			return time.Duration(secs * float64(time.Second)), nil
		}
		return data, nil
	}
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		parser = yaml.Parser()
	case strings.HasSuffix(path, ".json"):
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// ValidateConfig validates that configuration fields are usable
func ValidateConfig(cfg *AppConfig) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}

	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console; got %q", cfg.Log.Format)
	}

	if cfg.Project.Dir == "" {
		return fmt.Errorf("project.dir is required")
	}

	if cfg.Project.BuildDir == "" {
		return fmt.Errorf("project.build_dir is required")
	}

	if cfg.Lock.PollInterval <= 0 {
		return fmt.Errorf("lock.poll_interval must be positive")
	}

	if cfg.Lock.DefaultTimeout < 0 {
		return fmt.Errorf("lock.default_timeout must not be negative")
	}

	return nil
}
