package httpview

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// page is one surface. Pushed scripts queue until a tab is listening.
type page struct {
	id   toolkit.SurfaceID
	spec toolkit.Spec

	mu      sync.Mutex
	pending []string
	notify  chan struct{}
	done    chan struct{}
	closed  bool

	// attached counts event stream connections.
	attached uint64
}

func newPage(id toolkit.SurfaceID, spec toolkit.Spec) *page {
	return &page{
		id:     id,
		spec:   spec,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (p *page) push(script string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = append(p.pending, script)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *page) take() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

func (p *page) attach() {
	p.mu.Lock()
	p.attached++
	p.mu.Unlock()
}

func (p *page) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

func (p *page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	p.attach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		for _, script := range p.take() {
			if err := writeSSE(w, "eval", script); err != nil {
				return
			}
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-p.done:
			for _, script := range p.take() {
				_ = writeSSE(w, "eval", script)
			}
			_ = writeSSE(w, "close", "")
			flusher.Flush()
			return
		case <-p.notify:
		case <-keepAlive.C:
			// SSE comment line as keep-alive.
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
	}
}

// writeSSE frames data as a single-line JSON string.
func writeSSE(w http.ResponseWriter, event, data string) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}
