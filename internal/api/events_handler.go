package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/vitrine/internal/events"
)

const keepAliveInterval = 15 * time.Second

// noticeFilter keeps notices whose type starts with any of its prefixes.
// An empty filter keeps everything.
type noticeFilter []string

// parseNoticeFilter reads ?type=surface,result style prefix lists.
func parseNoticeFilter(raw string) noticeFilter {
	var f noticeFilter
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

func (f noticeFilter) keep(n events.Notice) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(n.Type, p) {
			return true
		}
	}
	return false
}

// handleEvents streams hub notices as SSE. Clients resuming with
// Last-Event-ID get the remembered notices they missed first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	filter := parseNoticeFilter(r.URL.Query().Get("type"))

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.notices.Subscribe()
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var sent int64
	for _, n := range s.notices.SnapshotSince(lastEventID(r)) {
		if !filter.keep(n) {
			continue
		}
		if err := writeNotice(w, n); err != nil {
			return
		}
		sent = n.ID
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			// Already replayed from the snapshot.
			if n.ID <= sent || !filter.keep(n) {
				continue
			}
			if err := writeNotice(w, n); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func lastEventID(r *http.Request) int64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeNotice writes one SSE frame. Notice payloads are single-line JSON.
func writeNotice(w http.ResponseWriter, n events.Notice) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.ID, n.Type, n.Data)
	return err
}
