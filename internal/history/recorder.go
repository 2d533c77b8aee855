package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/surface"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// DefaultBuffer is the number of pending writes the Recorder holds before it
// starts dropping.
const DefaultBuffer = 256

type op func(ctx context.Context, s *Store) error

// Recorder turns dispatcher lifecycle callbacks into Store writes on its own
// goroutine. Callbacks never block: when the buffer is full the fact is
// dropped with a warning.
type Recorder struct {
	store  *Store
	ops    chan op
	logger *slog.Logger

	mu      sync.Mutex
	dropped int
	done    chan struct{}
}

// NewRecorder creates a recorder with a buffer of size pending writes.
func NewRecorder(store *Store, size int) *Recorder {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Recorder{
		store:  store,
		ops:    make(chan op, size),
		logger: log.WithComponent("history"),
		done:   make(chan struct{}),
	}
}

// Run applies queued writes until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case fn := <-r.ops:
			r.apply(ctx, fn)
		}
	}
}

// Done is closed once Run has flushed and returned.
func (r *Recorder) Done() <-chan struct{} { return r.done }

// Dropped returns how many facts were discarded because the buffer was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case fn := <-r.ops:
			r.apply(ctx, fn)
		default:
			return
		}
	}
}

func (r *Recorder) apply(ctx context.Context, fn op) {
	if err := fn(ctx, r.store); err != nil {
		r.logger.Warn("history write failed", "error", err)
	}
}

func (r *Recorder) enqueue(what string, fn op) {
	select {
	case r.ops <- fn:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		r.logger.Warn("history buffer full, dropping", "fact", what, "dropped", n)
	}
}

func (r *Recorder) SurfaceOpened(rec surface.Record) {
	sf := Surface{
		ID:          string(rec.ID),
		Title:       rec.Title,
		Kind:        rec.Kind.String(),
		ExportPath:  rec.ExportPath,
		DownloadDir: rec.DownloadDir,
		CreatedAt:   rec.CreatedAt,
	}
	r.enqueue("surface opened", func(ctx context.Context, s *Store) error {
		return s.OpenSurface(ctx, sf)
	})
}

func (r *Recorder) SurfaceClosed(id toolkit.SurfaceID, reason events.CloseReason) {
	at := time.Now()
	r.enqueue("surface closed", func(ctx context.Context, s *Store) error {
		return s.CloseSurface(ctx, string(id), string(reason), at)
	})
}

func (r *Recorder) ArtifactWritten(id toolkit.SurfaceID, kind, path, checksum string) {
	a := Artifact{SurfaceID: string(id), Kind: kind, Path: path, Checksum: checksum, CreatedAt: time.Now()}
	r.enqueue("artifact written", func(ctx context.Context, s *Store) error {
		_, err := s.AddArtifact(ctx, a)
		return err
	})
}

func (r *Recorder) ResultEmitted(id toolkit.SurfaceID, bytes int) {
	at := time.Now()
	r.enqueue("result emitted", func(ctx context.Context, s *Store) error {
		return s.AddResult(ctx, string(id), bytes, at)
	})
}
