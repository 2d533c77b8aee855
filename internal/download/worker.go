package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/vitrine/internal/bridge"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// ErrDownloadFailed is reported for completions the toolkit marked unsuccessful.
var ErrDownloadFailed = errors.New("download failed")

// Completion is one finished native download.
type Completion struct {
	ID      toolkit.SurfaceID
	Path    string
	Success bool
	Policy  Policy
}

// Worker runs filesystem tasks in short-lived goroutines. Failures are
// logged and reported; nothing is retried.
type Worker struct {
	fs     afero.Fs
	out    events.Sender
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWorker creates a worker writing through fs and reporting on out.
func NewWorker(fs afero.Fs, out events.Sender) *Worker {
	return &Worker{
		fs:     fs,
		out:    out,
		logger: log.WithComponent("download"),
	}
}

// Complete reconciles c in the background and sends FileMoved. Export
// completions also send SurfaceCloseRequested once the file is in place.
func (w *Worker) Complete(ctx context.Context, c Completion) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.complete(ctx, c)
	}()
}

func (w *Worker) complete(ctx context.Context, c Completion) {
	logger := w.logger.With("surface_id", string(c.ID))
	from := DecodePath(c.Path)
	moved := events.FileMoved{ID: c.ID, From: from}

	if !c.Success {
		moved.Err = fmt.Errorf("%w: %s", ErrDownloadFailed, from)
		logger.Warn("download did not complete", "path", from)
		w.send(moved)
		return
	}

	to := c.Policy.ResolveFS(w.fs, from)
	moved.To = to
	if err := ctx.Err(); err != nil {
		moved.Err = err
		w.send(moved)
		return
	}

	if filepath.Clean(to) != filepath.Clean(from) {
		logger.Debug("moving download", "from", from, "to", to)
		if err := w.move(from, to); err != nil {
			logger.Error("move download", "from", from, "to", to, "error", err)
			moved.Err = err
			w.send(moved)
			return
		}
	}

	sum, err := w.checksum(to)
	if err != nil {
		logger.Warn("checksum download", "path", to, "error", err)
	}
	moved.Checksum = sum
	w.send(moved)

	if c.Policy.IsExport() {
		w.send(events.SurfaceCloseRequested{ID: c.ID, Reason: events.ReasonExported})
	}
}

// WriteBlob decodes t and writes it where p resolves the transfer's name,
// in the background, then sends TransferFinished. A failed decode never
// leaves a partial file at the destination.
func (w *Worker) WriteBlob(ctx context.Context, id toolkit.SurfaceID, t *bridge.Transfer, p Policy) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		name := t.Name
		if name == "" {
			name = "download"
		}
		dest := p.ResolveFS(w.fs, name)
		done := events.TransferFinished{ID: id, Path: dest, Export: p.IsExport()}
		done.Checksum, done.Err = w.writeBlob(ctx, t, dest)
		if done.Err != nil {
			w.logger.Error("write blob", "surface_id", string(id), "path", dest, "error", done.Err)
		} else {
			w.logger.Debug("blob written", "surface_id", string(id), "path", dest, "checksum", done.Checksum)
		}
		w.send(done)
	}()
}

func (w *Worker) writeBlob(ctx context.Context, t *bridge.Transfer, dest string) (string, error) {
	data, err := t.Decode()
	if err != nil {
		return "", fmt.Errorf("decode blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := w.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := afero.WriteFile(w.fs, dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Wait blocks until every started task has reported.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) move(from, to string) error {
	if err := w.fs.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := w.fs.Rename(from, to); err == nil {
		return nil
	}

	// Rename fails across devices; fall back to copy + remove.
	if err := w.copy(from, to); err != nil {
		return err
	}
	if err := w.fs.Remove(from); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove original: %w", err)
	}
	return nil
}

func (w *Worker) copy(from, to string) error {
	src, err := w.fs.Open(from)
	if err != nil {
		return fmt.Errorf("open original: %w", err)
	}
	defer src.Close()

	dst, err := w.fs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return dst.Close()
}

func (w *Worker) checksum(path string) (string, error) {
	data, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (w *Worker) send(ev events.Event) {
	if err := w.out.Send(ev); err != nil {
		w.logger.Debug("dropped worker event", "error", err)
	}
}
