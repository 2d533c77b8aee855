package dispatch

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/mattjoyce/vitrine/internal/bridge"
	"github.com/mattjoyce/vitrine/internal/config"
	"github.com/mattjoyce/vitrine/internal/download"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/surface"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// Emitter writes results to the producer without blocking.
type Emitter interface {
	Emit(payload string)
}

// FileWorker runs filesystem reconciliation off the loop.
type FileWorker interface {
	Complete(ctx context.Context, c download.Completion)
	WriteBlob(ctx context.Context, id toolkit.SurfaceID, t *bridge.Transfer, p download.Policy)
}

// Opener opens a file with the system handler.
type Opener interface {
	Open(path string) error
}

// Recorder receives lifecycle facts for the history ledger. Implementations
// must not block.
type Recorder interface {
	SurfaceOpened(rec surface.Record)
	SurfaceClosed(id toolkit.SurfaceID, reason events.CloseReason)
	ArtifactWritten(id toolkit.SurfaceID, kind, path, checksum string)
	ResultEmitted(id toolkit.SurfaceID, bytes int)
}

// Options configures a Dispatcher. Toolkit, Channel, Emitter and Worker are
// required.
type Options struct {
	Toolkit toolkit.Toolkit
	Channel *events.Channel
	Emitter Emitter
	Worker  FileWorker
	Opener  Opener

	Recorder  Recorder
	Publisher events.Publisher

	// Headless renders every request into one shared hidden surface.
	Headless bool
	// Console keeps surfaces open after results and attaches devtools.
	Console bool

	Window config.WindowConfig
	// DownloadDir receives blob downloads from surfaces that name no
	// destination of their own.
	DownloadDir string
	// CopyPaste injects the copy/paste shortcut fix. Defaults to true on macOS.
	CopyPaste *bool
}

// Dispatcher is the single-owner surface loop.
type Dispatcher struct {
	tk        toolkit.Toolkit
	ch        *events.Channel
	emitter   Emitter
	worker    FileWorker
	opener    Opener
	recorder  Recorder
	publisher events.Publisher

	headless    bool
	console     bool
	window      config.WindowConfig
	downloadDir string
	copyPaste   bool
	caps        toolkit.Capabilities
	native      <-chan toolkit.NativeEvent

	registry   *surface.Registry
	blobs      *bridge.Assembler
	headlessID toolkit.SurfaceID
	booted     bool

	logger *slog.Logger
}

// New creates a new Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		tk:          opts.Toolkit,
		ch:          opts.Channel,
		emitter:     opts.Emitter,
		worker:      opts.Worker,
		opener:      opts.Opener,
		recorder:    opts.Recorder,
		publisher:   opts.Publisher,
		headless:    opts.Headless,
		console:     opts.Console,
		window:      opts.Window,
		downloadDir: opts.DownloadDir,
		copyPaste:   runtime.GOOS == "darwin",
		caps:        opts.Toolkit.Capabilities(),
		native:      opts.Toolkit.Events(),
		registry:    surface.NewRegistry(),
		blobs:       bridge.NewAssembler(),
		logger:      log.WithComponent("dispatch"),
	}
	if opts.CopyPaste != nil {
		d.copyPaste = *opts.CopyPaste
	}
	if d.opener == nil {
		d.opener = download.SystemOpener{}
	}
	if d.recorder == nil {
		d.recorder = nopRecorder{}
	}
	if d.publisher == nil {
		d.publisher = nopPublisher{}
	}
	if d.window.DefaultWidth == 0 {
		d.window = config.Defaults().Window
	}
	return d
}

// Run loops Step until ctx is done, parking on the toolkit and the dispatch
// channel when idle. Live surfaces are closed on the way out.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "headless", d.headless, "console", d.console)
	defer d.logger.Info("dispatch loop stopped")
	defer d.shutdown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Step(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.native:
			if !ok {
				d.native = nil
				continue
			}
			d.handleNative(ev)
		case <-d.ch.Ready():
		}
	}
}

// Step runs one dispatch turn: every pending native event, then at most one
// queued dispatch event. It reports whether anything was handled.
func (d *Dispatcher) Step(ctx context.Context) bool {
	d.boot()

	handled := d.drainNative()
	if ev, ok := d.ch.TryRecv(); ok {
		d.handle(ctx, ev)
		handled = true
	}
	return handled
}

func (d *Dispatcher) drainNative() bool {
	handled := false
	for {
		select {
		case ev, ok := <-d.native:
			if !ok {
				d.native = nil
				return handled
			}
			d.handleNative(ev)
			handled = true
		default:
			return handled
		}
	}
}

// boot builds the headless surface the first time the loop turns.
func (d *Dispatcher) boot() {
	if d.booted {
		return
	}
	d.booted = true
	if d.headless {
		d.createHeadless()
	}
}

// Len returns the number of live surfaces. Only the loop goroutine may call it.
func (d *Dispatcher) Len() int { return d.registry.Len() }

// Surface returns the live record for id. Only the loop goroutine may call it.
func (d *Dispatcher) Surface(id toolkit.SurfaceID) (surface.Record, bool) {
	return d.registry.Get(id)
}

// HeadlessID returns the shared headless surface, empty when there is none.
func (d *Dispatcher) HeadlessID() toolkit.SurfaceID { return d.headlessID }

func (d *Dispatcher) shutdown() {
	for _, id := range d.registry.IDs() {
		d.closeSurface(id, events.ReasonShutdown)
	}
}

// send is safe from any goroutine.
func (d *Dispatcher) send(ev events.Event) {
	if err := d.ch.Send(ev); err != nil {
		d.logger.Debug("dropped dispatch event", "event", eventName(ev), "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) SurfaceOpened(surface.Record) {}
func (nopRecorder) SurfaceClosed(toolkit.SurfaceID, events.CloseReason) {}
func (nopRecorder) ArtifactWritten(toolkit.SurfaceID, string, string, string) {}
func (nopRecorder) ResultEmitted(toolkit.SurfaceID, int) {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}
