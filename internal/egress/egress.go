// Package egress writes result lines to the producer.
//
// Every line written to stdout is one whole JSON object. The result emitter
// and the console log handler share one LineWriter so their lines never
// interleave.
package egress

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/mattjoyce/vitrine/internal/log"
)

// LineWriter serialises whole writes to an underlying writer.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write writes p in one locked call. Callers pass whole lines.
func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Emitter writes {"result": ...} lines without blocking the caller. Lines
// from concurrently finishing jobs may arrive in any order.
type Emitter struct {
	out    io.Writer
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewEmitter creates an emitter writing to out.
func NewEmitter(out io.Writer) *Emitter {
	return &Emitter{out: out, logger: log.WithComponent("egress")}
}

// Emit url-decodes payload and writes it as a result line in the background.
func (e *Emitter) Emit(payload string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.write(payload); err != nil {
			e.logger.Debug("result not written", "error", err)
		}
	}()
}

// Wait blocks until every pending line is written.
func (e *Emitter) Wait() { e.wg.Wait() }

func (e *Emitter) write(payload string) error {
	line, err := ResultLine(payload)
	if err != nil {
		return err
	}
	_, err = e.out.Write(line)
	return err
}

// ResultLine renders one egress line for payload, url-decoding it first. A
// payload that is not valid percent-encoding is written as-is.
func ResultLine(payload string) ([]byte, error) {
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		decoded = payload
	}
	b, err := json.Marshal(struct {
		Result string `json:"result"`
	}{decoded})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
