package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/vitrine/internal/history"
	"github.com/mattjoyce/vitrine/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveStartConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "service:\n  log_level: warn\nmode:\n  headless: false\n")

	flags, err := parseStartFlags([]string{"--config", path, "--headless", "--debug"})
	if err != nil {
		t.Fatalf("parseStartFlags() error = %v", err)
	}
	cfg, err := resolveStartConfig(flags)
	if err != nil {
		t.Fatalf("resolveStartConfig() error = %v", err)
	}
	if !cfg.Mode.Headless || !cfg.Mode.Console {
		t.Fatalf("mode = %+v, want headless and console", cfg.Mode)
	}
	if cfg.Service.LogLevel != "debug" || cfg.Service.LogFormat != "console" {
		t.Fatalf("service = %+v, want debug/console", cfg.Service)
	}
}

func TestResolveStartConfigKeepsFileWithoutFlags(t *testing.T) {
	path := writeConfig(t, "mode:\n  console: true\n")

	flags, err := parseStartFlags([]string{"--config", path})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := resolveStartConfig(flags)
	if err != nil {
		t.Fatalf("resolveStartConfig() error = %v", err)
	}
	if cfg.Mode.Headless || !cfg.Mode.Console {
		t.Fatalf("mode = %+v", cfg.Mode)
	}
	if cfg.Service.LogFormat != "json" {
		t.Fatalf("log_format = %q, want json", cfg.Service.LogFormat)
	}
}

func TestParseStartFlagsRejectsUnknown(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runStart([]string{"--bogus"})
	})
	if code != 1 {
		t.Fatalf("runStart() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Flag error") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunConfigCheck(t *testing.T) {
	downloads := t.TempDir()
	path := writeConfig(t, "downloads:\n  default_dir: "+downloads+"\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("runConfigCheck() code = %d, stdout: %s stderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Configuration valid.") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunConfigCheckStrictWarnings(t *testing.T) {
	path := writeConfig(t, "mode:\n  headless: true\nbridge:\n  open_browser: false\n")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path, "--strict", "--json"})
	})
	if code != 2 {
		t.Fatalf("runConfigCheck() code = %d, want 2; stdout: %s", code, stdout)
	}
	if !strings.Contains(stdout, `"valid": true`) || !strings.Contains(stdout, "open_browser") {
		t.Fatalf("stdout = %s", stdout)
	}
}

func TestRunConfigCheckLoadError(t *testing.T) {
	path := writeConfig(t, "service:\n  log_level: loud\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 1 {
		t.Fatalf("runConfigCheck() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "log_level") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunConfigShow(t *testing.T) {
	path := writeConfig(t, "window:\n  chrome_margin: 40\n")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigShow([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("runConfigShow() code = %d", code)
	}
	if !strings.Contains(stdout, "chrome_margin: 40") || !strings.Contains(stdout, "popup_width: 1300") {
		t.Fatalf("stdout = %s", stdout)
	}
}

func TestRunConfigNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"lock"})
	})
	if code != 1 || !strings.Contains(stderr, "Unknown config action: lock") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestRunInspectMissingHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "none.db")
	path := writeConfig(t, "state:\n  path: "+dbPath+"\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runInspect([]string{"--config", path})
	})
	if code != 1 || !strings.Contains(stderr, "No history") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("inspect created %s", dbPath)
	}
}

func TestRunInspectReport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	store := history.NewStore(db)
	ctx := context.Background()
	if err := store.OpenSurface(ctx, history.Surface{ID: "s-1", Title: "Quarterly", Kind: "normal", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.AddResult(ctx, "s-1", 42, time.Now()); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	path := writeConfig(t, "state:\n  path: "+dbPath+"\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runInspect([]string{"--config", path, "--limit", "5"})
	})
	if code != 0 {
		t.Fatalf("runInspect() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "History Report") || !strings.Contains(stdout, "Quarterly") {
		t.Fatalf("stdout = %s", stdout)
	}

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runInspect([]string{"--config", path, "--json"})
	})
	if code != 0 || !strings.Contains(stdout, `"s-1"`) {
		t.Fatalf("json report code = %d, stdout = %s", code, stdout)
	}
}

func TestWatchTarget(t *testing.T) {
	path := writeConfig(t, "api:\n  listen: 127.0.0.1:9911\n  api_key: from-file\n")

	url, key, err := watchTarget(path, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://127.0.0.1:9911" || key != "from-file" {
		t.Fatalf("watchTarget() = %q, %q", url, key)
	}

	url, key, err = watchTarget(path, "http://elsewhere:1", "flag-key")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://elsewhere:1" || key != "flag-key" {
		t.Fatalf("watchTarget() = %q, %q", url, key)
	}
}

func TestHelpTokens(t *testing.T) {
	if !isHelpToken("help") || !isHelpToken("-h") || isHelpToken("check") {
		t.Fatal("isHelpToken mismatch")
	}
	if !hasHelpFlag([]string{"--config", "x", "--help"}) || hasHelpFlag([]string{"help"}) {
		t.Fatal("hasHelpFlag mismatch")
	}
}
