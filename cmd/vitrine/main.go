package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/vitrine/internal/api"
	"github.com/mattjoyce/vitrine/internal/config"
	"github.com/mattjoyce/vitrine/internal/dispatch"
	"github.com/mattjoyce/vitrine/internal/doctor"
	"github.com/mattjoyce/vitrine/internal/download"
	"github.com/mattjoyce/vitrine/internal/egress"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/history"
	"github.com/mattjoyce/vitrine/internal/ingest"
	"github.com/mattjoyce/vitrine/internal/inspect"
	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/request"
	"github.com/mattjoyce/vitrine/internal/storage"
	"github.com/mattjoyce/vitrine/internal/toolkit/httpview"
	"github.com/mattjoyce/vitrine/internal/tui/watch"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			os.Exit(0)
		}
		os.Exit(runStart(args))
	case "inspect":
		if hasHelpFlag(args) {
			printInspectHelp()
			os.Exit(0)
		}
		os.Exit(runInspect(args))
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			os.Exit(0)
		}
		os.Exit(runWatch(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("vitrine version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`vitrine - display host for line-delimited render requests

Usage:
  vitrine <command> [flags]

Commands:
  start             Read render requests on stdin and serve surfaces
  inspect           Show recent surfaces, results, and files from history
  watch             Live monitor TUI over the status API
  config check      Validate configuration
  config show       Print the resolved configuration
  version           Show version information
  help              Show this help message

Use 'vitrine <command> --help' for command-specific flags.
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: vitrine config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, show")
}

func printStartHelp() {
	fmt.Println("Usage: vitrine start [--config PATH] [--headless] [--debug]")
	fmt.Println("Read render requests from stdin and write results to stdout.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH    Configuration file (default: discovered or built-in)")
	fmt.Println("  --headless       Render every request into one hidden surface")
	fmt.Println("  --debug          Keep surfaces open, attach devtools, log diagnostics to stdout")
}

func printInspectHelp() {
	fmt.Println("Usage: vitrine inspect [--config PATH] [--limit N] [--json]")
	fmt.Println("Show the newest surfaces recorded in the history ledger.")
}

func printWatchHelp() {
	fmt.Println("Usage: vitrine watch [--config PATH] [--api URL] [--api-key KEY]")
	fmt.Println()
	fmt.Println("Live monitor of surfaces and lifecycle notices.")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Navigate surfaces")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: vitrine config check [--config PATH] [--format human|json] [--strict] [--json]")
	fmt.Println("Validate configuration and report warnings.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: vitrine config show [--config PATH] [--json]")
	fmt.Println("Print the resolved configuration, defaults included.")
}

// startFlags are the mode switches that override the config file.
type startFlags struct {
	configPath string
	headless   bool
	debug      bool
}

func parseStartFlags(args []string) (startFlags, error) {
	var f startFlags
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&f.headless, "headless", false, "Render every request into one hidden surface")
	fs.BoolVar(&f.debug, "debug", false, "Console mode with debug diagnostics on stdout")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

// resolveStartConfig loads the config and applies flag overrides.
func resolveStartConfig(f startFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.headless {
		cfg.Mode.Headless = true
	}
	if f.debug {
		cfg.Mode.Console = true
		cfg.Service.LogLevel = "debug"
		cfg.Service.LogFormat = log.FormatConsole
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runStart(args []string) int {
	flags, err := parseStartFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	cfg, err := resolveStartConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Results and console diagnostics share stdout; whole lines only.
	stdout := egress.NewLineWriter(os.Stdout)
	var logOut io.Writer
	if cfg.Service.LogFormat == log.FormatConsole {
		logOut = stdout
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat, logOut)
	logger := log.WithComponent("main")
	logger.Info("vitrine starting", "version", version, "config", cfg.SourceFile,
		"headless", cfg.Mode.Headless, "console", cfg.Mode.Console)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch := events.NewChannel()
	defer ch.Close()
	hub := events.NewHub(256)

	// History outlives the dispatcher so shutdown closes are recorded.
	var recorder *history.Recorder
	histCtx, stopHistory := context.WithCancel(context.Background())
	defer stopHistory()
	if cfg.State.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open history", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		recorder = history.NewRecorder(history.NewStore(db), history.DefaultBuffer)
		go recorder.Run(histCtx)
		logger.Info("history enabled", "path", cfg.State.Path)
	}

	tk := httpview.New(httpview.Config{
		Listen:      cfg.Bridge.Listen,
		OpenBrowser: cfg.Bridge.OpenBrowser,
		Browser:     download.SystemOpener{},
	})
	if err := tk.Start(ctx); err != nil {
		logger.Error("failed to start surface server", "error", err)
		return 1
	}

	emitter := egress.NewEmitter(stdout)
	worker := download.NewWorker(afero.NewOsFs(), ch)

	opts := dispatch.Options{
		Toolkit:     tk,
		Channel:     ch,
		Emitter:     emitter,
		Worker:      worker,
		Opener:      download.SystemOpener{},
		Publisher:   hub,
		Headless:    cfg.Mode.Headless,
		Console:     cfg.Mode.Console,
		Window:      cfg.Window,
		DownloadDir: cfg.Downloads.DefaultDir,
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	disp := dispatch.New(opts)

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		apiServer := api.New(
			api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.APIKey},
			dispatch.NewSnapshotClient(ch, cfg.API.Timeout),
			hub,
			log.WithComponent("api"),
		)
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("status API enabled", "listen", cfg.API.Listen)
	}

	listener := ingest.NewListener(request.NewParser(cfg.Mode.Headless), ch)
	go listener.Run(ctx, os.Stdin)

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	go func() {
		select {
		case err := <-errCh:
			logger.Error("component failed", "error", err)
			cancelLoop()
		case <-loopCtx.Done():
		}
	}()

	code := 0
	if err := disp.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatch loop failed", "error", err)
		code = 1
	}
	if ctx.Err() == nil {
		code = 1
	}

	worker.Wait()
	emitter.Wait()
	if recorder != nil {
		stopHistory()
		<-recorder.Done()
		if n := recorder.Dropped(); n > 0 {
			logger.Warn("history writes dropped", "count", n)
		}
	}
	logger.Info("vitrine stopped")
	return code
}

func runInspect(args []string) int {
	var configPath string
	var jsonOut bool
	var limit int

	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output report in JSON")
	fs.IntVar(&limit, "limit", 20, "Number of surfaces to show")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if _, err := os.Stat(cfg.State.Path); err != nil {
		fmt.Fprintf(os.Stderr, "No history at %s (enable state.enabled and run vitrine start)\n", cfg.State.Path)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	report, err := buildReport(ctx, db, limit, jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}
	fmt.Print(report)
	return 0
}

func buildReport(ctx context.Context, db *sql.DB, limit int, jsonOut bool) (string, error) {
	if jsonOut {
		return inspect.BuildJSONReport(ctx, db, limit)
	}
	return inspect.BuildReport(ctx, db, limit)
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration")
	apiURL := fs.String("api", "", "Status API URL (default: from api.listen)")
	apiKey := fs.String("api-key", os.Getenv("VITRINE_API_KEY"), "API bearer token (or VITRINE_API_KEY)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	url, key, err := watchTarget(*configPath, *apiURL, *apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	p := tea.NewProgram(watch.New(url, key))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// watchTarget fills in the API URL and key from config when not given.
func watchTarget(configPath, apiURL, apiKey string) (string, string, error) {
	if apiURL != "" && apiKey != "" {
		return apiURL, apiKey, nil
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return "", "", err
	}
	if apiURL == "" {
		apiURL = "http://" + cfg.API.Listen
	}
	if apiKey == "" {
		apiKey = cfg.API.APIKey
	}
	return apiURL, apiKey, nil
}

func runConfigCheck(args []string) int {
	var configPath string
	var strict, jsonOut bool
	var format string

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if jsonOut {
		format = "json"
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	data, _ := yaml.Marshal(cfg)
	fmt.Print(string(data))
	return 0
}
