package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file, applying defaults for
// anything the file leaves unset.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg = applyConfigDefaults(cfg)
	cfg.SourceFile = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configPath when set, otherwise tries DiscoverConfig and
// falls back to Defaults when nothing is found.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		discovered, ok := DiscoverConfig()
		if !ok {
			return Defaults(), nil
		}
		configPath = discovered
	}
	return Load(configPath)
}

// DiscoverConfig finds a config file by checking standard locations.
// Priority order: $VITRINE_CONFIG, ~/.config/vitrine/config.yaml, ./vitrine.yaml
func DiscoverConfig() (string, bool) {
	if path := os.Getenv("VITRINE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "vitrine", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, true
		}
	}

	if _, err := os.Stat("./vitrine.yaml"); err == nil {
		return "./vitrine.yaml", true
	}
	return "", false
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	// Booleans that default to true survive an omitted section.
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	w := &cfg.Window
	if w.DefaultWidth <= 0 {
		w.DefaultWidth = defaults.Window.DefaultWidth
	}
	if w.DefaultHeight <= 0 {
		w.DefaultHeight = defaults.Window.DefaultHeight
	}
	if w.ChromeMargin < 0 {
		w.ChromeMargin = 0
	} else if w.ChromeMargin == 0 {
		w.ChromeMargin = defaults.Window.ChromeMargin
	}
	if w.MinWidth <= 0 {
		w.MinWidth = defaults.Window.MinWidth
	}
	if w.MinHeight <= 0 {
		w.MinHeight = defaults.Window.MinHeight
	}
	if w.PopupWidth <= 0 {
		w.PopupWidth = defaults.Window.PopupWidth
	}
	if w.PopupHeight <= 0 {
		w.PopupHeight = defaults.Window.PopupHeight
	}

	if cfg.Bridge.Listen == "" {
		cfg.Bridge.Listen = defaults.Bridge.Listen
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = defaults.API.Timeout
	}
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate checks a configuration built outside Load (flags applied on top of defaults).
func Validate(cfg *Config) error {
	return validate(cfg)
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "console" {
		return fmt.Errorf("service.log_format must be json or console (got %q)", cfg.Service.LogFormat)
	}

	if _, _, err := net.SplitHostPort(cfg.Bridge.Listen); err != nil {
		return fmt.Errorf("bridge.listen %q: %w", cfg.Bridge.Listen, err)
	}

	if cfg.State.Enabled && cfg.State.Path == "" {
		return fmt.Errorf("state.path is required when state.enabled is true")
	}

	if cfg.API.Enabled {
		if _, _, err := net.SplitHostPort(cfg.API.Listen); err != nil {
			return fmt.Errorf("api.listen %q: %w", cfg.API.Listen, err)
		}
		if envVarPattern.MatchString(cfg.API.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.APIKey)
			return fmt.Errorf("api.api_key: environment variable ${%s} is not set", matches[1])
		}
	}

	if dir := cfg.Downloads.DefaultDir; dir != "" && envVarPattern.MatchString(dir) {
		return fmt.Errorf("downloads.default_dir: unresolved environment variable in %q", dir)
	}
	return nil
}
