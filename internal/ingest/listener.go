// Package ingest reads render requests from the producer's line stream.
package ingest

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/request"
)

// MaxLineBytes bounds one ingress line. Longer lines become placeholders.
const MaxLineBytes = 1 << 20

// Listener turns lines into NewRenderRequest events.
type Listener struct {
	parser *request.Parser
	out    events.Sender
	logger *slog.Logger
}

// NewListener creates a listener sending on out.
func NewListener(parser *request.Parser, out events.Sender) *Listener {
	return &Listener{
		parser: parser,
		out:    out,
		logger: log.WithComponent("ingest"),
	}
}

// Run reads r until EOF or ctx is done. It never signals the dispatcher on
// exit; already open surfaces keep being served.
func (l *Listener) Run(ctx context.Context, r io.Reader) {
	lines := make(chan ingressLine)
	done := make(chan struct{})
	defer close(done)

	go l.scan(r, lines, done)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				l.logger.Debug("ingress closed")
				return
			}
			l.handle(line)
		}
	}
}

type ingressLine struct {
	text    string
	tooLong bool
}

// scan runs in its own goroutine because a blocked Read cannot observe ctx.
func (l *Listener) scan(r io.Reader, lines chan<- ingressLine, done <-chan struct{}) {
	defer close(lines)
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		text, tooLong, err := readLine(br)
		if text != "" || tooLong || err == nil {
			select {
			case lines <- ingressLine{text: text, tooLong: tooLong}:
			case <-done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				l.logger.Debug("ingress read failed", "error", err)
			}
			return
		}
	}
}

// readLine returns one line without its terminator. Lines above MaxLineBytes
// are consumed and reported as tooLong.
func readLine(br *bufio.Reader) (string, bool, error) {
	var b strings.Builder
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if !tooLong {
			if b.Len()+len(chunk) > MaxLineBytes {
				tooLong = true
				b.Reset()
			} else {
				b.Write(chunk)
			}
		}
		if err != nil || !isPrefix {
			return b.String(), tooLong, err
		}
	}
}

func (l *Listener) handle(line ingressLine) {
	var req request.RenderRequest
	switch {
	case line.tooLong:
		l.logger.Debug("request line too long", "limit", MaxLineBytes)
		req = request.Placeholder()
	case line.text == "":
		l.logger.Debug("empty ingress line skipped")
		return
	default:
		var err error
		req, err = l.parser.Parse(line.text)
		if err != nil {
			l.logger.Debug("unparseable request", "error", err)
			req = request.Placeholder()
		}
	}
	if req.Placeholder {
		l.logger.Debug("request degraded to placeholder")
	}
	if err := l.out.Send(events.NewRenderRequest{Request: req}); err != nil {
		l.logger.Debug("dropped render request", "error", err)
	}
}
