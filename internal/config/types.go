package config

import "time"

// Config represents the complete vitrine configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Mode      ModeConfig      `yaml:"mode"`
	Window    WindowConfig    `yaml:"window"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	State     StateConfig     `yaml:"state"`
	API       APIConfig       `yaml:"api,omitempty"`

	// SourceFile is the absolute path the config was loaded from, empty for defaults.
	SourceFile string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | console
}

// ModeConfig holds the process-wide switches that change dispatcher behavior.
type ModeConfig struct {
	// Headless renders every request into one reusable hidden surface.
	Headless bool `yaml:"headless"`
	// Console keeps surfaces open after a result and attaches devtools.
	Console bool `yaml:"console"`
}

// WindowConfig defines surface geometry defaults.
type WindowConfig struct {
	DefaultWidth  int `yaml:"default_width"`
	DefaultHeight int `yaml:"default_height"`
	// ChromeMargin is added to both axes of the requested content size.
	ChromeMargin int `yaml:"chrome_margin"`
	MinWidth     int `yaml:"min_width"`
	MinHeight    int `yaml:"min_height"`
	PopupWidth   int `yaml:"popup_width"`
	PopupHeight  int `yaml:"popup_height"`
}

// DownloadsConfig defines where downloads land when a request names no directory.
type DownloadsConfig struct {
	DefaultDir string `yaml:"default_dir"`
}

// BridgeConfig defines the bundled HTTP surface toolkit.
type BridgeConfig struct {
	Listen      string `yaml:"listen"`
	OpenBrowser bool   `yaml:"open_browser"`
}

// StateConfig defines history ledger settings.
type StateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// APIConfig defines the optional status API server.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"snapshot_timeout"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "vitrine",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Window: WindowConfig{
			DefaultWidth:  800,
			DefaultHeight: 600,
			ChromeMargin:  80,
			MinWidth:      800,
			MinHeight:     450,
			PopupWidth:    1300,
			PopupHeight:   900,
		},
		Bridge: BridgeConfig{
			Listen:      "127.0.0.1:0",
			OpenBrowser: true,
		},
		State: StateConfig{
			Enabled: false,
			Path:    "./data/vitrine.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8765",
			Timeout: 2 * time.Second,
		},
	}
}
