// Package doctor validates vitrine configuration beyond what Load enforces:
// geometry sanity, writable destinations, and exposure of the local servers.
package doctor

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/mattjoyce/vitrine/internal/config"
	"github.com/mattjoyce/vitrine/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateWindow(r)
	d.validateListeners(r)
	d.validateState(r)
	d.warnDownloadDir(r)
	d.warnHeadlessWithoutBrowser(r)
	d.warnAPIExposure(r)
	d.warnMissingEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if err := config.Validate(d.cfg); err != nil {
		d.addError(r, "service", "", err.Error())
	}
}

func (d *Doctor) validateWindow(r *Result) {
	w := d.cfg.Window
	sizes := map[string]int{
		"window.default_width":  w.DefaultWidth,
		"window.default_height": w.DefaultHeight,
		"window.min_width":      w.MinWidth,
		"window.min_height":     w.MinHeight,
		"window.popup_width":    w.PopupWidth,
		"window.popup_height":   w.PopupHeight,
	}
	for _, field := range sortedKeys(sizes) {
		if sizes[field] <= 0 {
			d.addError(r, "window", field, "must be positive")
		}
	}
	if w.ChromeMargin < 0 {
		d.addError(r, "window", "window.chrome_margin", "must not be negative")
	}
	if w.DefaultWidth > 0 && w.MinWidth > w.DefaultWidth {
		d.addWarning(r, "window", "window.min_width",
			fmt.Sprintf("min_width %d exceeds default_width %d; default-sized surfaces will grow", w.MinWidth, w.DefaultWidth))
	}
	if w.DefaultHeight > 0 && w.MinHeight > w.DefaultHeight {
		d.addWarning(r, "window", "window.min_height",
			fmt.Sprintf("min_height %d exceeds default_height %d; default-sized surfaces will grow", w.MinHeight, w.DefaultHeight))
	}
}

// validateListeners rejects the API and bridge sharing one fixed address.
func (d *Doctor) validateListeners(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	_, bridgePort, err1 := net.SplitHostPort(d.cfg.Bridge.Listen)
	_, apiPort, err2 := net.SplitHostPort(d.cfg.API.Listen)
	if err1 != nil || err2 != nil || bridgePort == "0" {
		return
	}
	if d.cfg.Bridge.Listen == d.cfg.API.Listen || bridgePort == apiPort {
		d.addError(r, "listen", "api.listen",
			fmt.Sprintf("api.listen %q collides with bridge.listen %q", d.cfg.API.Listen, d.cfg.Bridge.Listen))
	}
}

func (d *Doctor) validateState(r *Result) {
	if !d.cfg.State.Enabled {
		return
	}
	dir := filepath.Dir(d.cfg.State.Path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		d.addWarning(r, "state", "state.path",
			fmt.Sprintf("directory %s does not exist yet; it will be created on start", dir))
	case err != nil:
		d.addError(r, "state", "state.path", err.Error())
	case !info.IsDir():
		d.addError(r, "state", "state.path", fmt.Sprintf("%s is not a directory", dir))
		return
	}
	if fs, err := storage.Filesystem(d.cfg.State.Path); err == nil && fs.Network {
		d.addError(r, "state", "state.path",
			fmt.Sprintf("%s is on network filesystem %s; history needs a local disk", fs.Inspected, fs.Type))
	}
}

func (d *Doctor) warnDownloadDir(r *Result) {
	dir := d.cfg.Downloads.DefaultDir
	if dir == "" {
		d.addWarning(r, "downloads", "downloads.default_dir",
			"not set; blob downloads from requests without download_dir land in the working directory")
		return
	}
	info, err := os.Stat(dir)
	if err != nil {
		d.addWarning(r, "downloads", "downloads.default_dir", fmt.Sprintf("%s is not accessible: %v", dir, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "downloads", "downloads.default_dir", fmt.Sprintf("%s is not a directory", dir))
		return
	}
	if fs, err := storage.Filesystem(dir); err == nil && fs.Network {
		d.addWarning(r, "downloads", "downloads.default_dir",
			fmt.Sprintf("%s is on network filesystem %s; finished downloads are copied instead of renamed", dir, fs.Type))
	}
}

// warnHeadlessWithoutBrowser flags a headless surface nobody will load.
func (d *Doctor) warnHeadlessWithoutBrowser(r *Result) {
	if d.cfg.Mode.Headless && !d.cfg.Bridge.OpenBrowser {
		d.addWarning(r, "mode", "bridge.open_browser",
			"headless mode with open_browser disabled; the headless page must be opened by hand before renders run")
	}
}

func (d *Doctor) warnAPIExposure(r *Result) {
	if !isLoopback(d.cfg.Bridge.Listen) {
		d.addWarning(r, "bridge", "bridge.listen",
			fmt.Sprintf("%s is reachable from other hosts; surfaces and their bridge have no authentication", d.cfg.Bridge.Listen))
	}
	if !d.cfg.API.Enabled || d.cfg.API.APIKey != "" {
		return
	}
	if isLoopback(d.cfg.API.Listen) {
		d.addWarning(r, "api", "api.api_key", "API enabled without an api_key")
		return
	}
	d.addWarning(r, "api", "api.api_key",
		fmt.Sprintf("API listens on %s without an api_key", d.cfg.API.Listen))
}

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// warnMissingEnvVars reports ${VAR} references that were left unexpanded.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	fields := map[string]string{
		"bridge.listen":         d.cfg.Bridge.Listen,
		"state.path":            d.cfg.State.Path,
		"downloads.default_dir": d.cfg.Downloads.DefaultDir,
		"api.listen":            d.cfg.API.Listen,
	}
	for _, field := range sortedKeys(fields) {
		for _, m := range envVarRe.FindAllStringSubmatch(fields[field], -1) {
			d.addWarning(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
