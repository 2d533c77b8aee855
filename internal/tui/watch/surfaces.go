package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/surface"
)

// maxClosed bounds how many closed surfaces stay in the table.
const maxClosed = 20

// SurfaceState is what the monitor knows about one surface.
type SurfaceState struct {
	ID        string
	Kind      string
	Title     string
	CreatedAt time.Time
	Results   int
	Files     int
	LastPath  string
	Closed    bool
	Reason    string
	ClosedAt  time.Time
}

// Counters are running totals since the monitor connected.
type Counters struct {
	Closed  int
	Results int
	Files   int
}

type noticeData struct {
	ID        string    `json:"id"`
	SurfaceID string    `json:"surface_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason"`
	Path      string    `json:"path"`
}

func (d noticeData) surfaceID() string {
	if d.SurfaceID != "" {
		return d.SurfaceID
	}
	return d.ID
}

// applyNotice folds one notice into the surface map.
func applyNotice(surfaces map[string]*SurfaceState, counters *Counters, n events.Notice) {
	var data noticeData
	if err := json.Unmarshal(n.Data, &data); err != nil {
		return
	}
	id := data.surfaceID()
	if id == "" {
		return
	}

	s, ok := surfaces[id]
	if !ok {
		s = &SurfaceState{ID: id, CreatedAt: n.At}
		surfaces[id] = s
	}

	switch n.Type {
	case events.TopicSurfaceCreated:
		s.Kind = data.Kind
		s.Title = data.Title
		if !data.CreatedAt.IsZero() {
			s.CreatedAt = data.CreatedAt
		}
	case events.TopicSurfaceClosed:
		if !s.Closed {
			counters.Closed++
		}
		s.Closed = true
		s.Reason = data.Reason
		s.ClosedAt = n.At
	case events.TopicResultEmitted:
		s.Results++
		counters.Results++
	case events.TopicBlobWritten, events.TopicDownloadMoved:
		s.Files++
		s.LastPath = data.Path
		counters.Files++
	}
	pruneClosed(surfaces)
}

// applySnapshot reconciles the map with a /surfaces listing. Anything live
// locally but missing from the listing was closed while disconnected.
func applySnapshot(surfaces map[string]*SurfaceState, records []surface.Record, now time.Time) {
	live := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := string(rec.ID)
		live[id] = struct{}{}
		s, ok := surfaces[id]
		if !ok {
			s = &SurfaceState{ID: id}
			surfaces[id] = s
		}
		s.Kind = rec.KindName
		s.Title = rec.Title
		s.CreatedAt = rec.CreatedAt
		s.Closed = false
	}
	for id, s := range surfaces {
		if _, ok := live[id]; !ok && !s.Closed {
			s.Closed = true
			s.Reason = "unknown"
			s.ClosedAt = now
		}
	}
	pruneClosed(surfaces)
}

func pruneClosed(surfaces map[string]*SurfaceState) {
	var closed []*SurfaceState
	for _, s := range surfaces {
		if s.Closed {
			closed = append(closed, s)
		}
	}
	if len(closed) <= maxClosed {
		return
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ClosedAt.Before(closed[j].ClosedAt) })
	for _, s := range closed[:len(closed)-maxClosed] {
		delete(surfaces, s.ID)
	}
}

// sortedSurfaces lists live surfaces first, each group newest first.
func sortedSurfaces(surfaces map[string]*SurfaceState) []*SurfaceState {
	out := make([]*SurfaceState, 0, len(surfaces))
	for _, s := range surfaces {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Closed != out[j].Closed {
			return !out[i].Closed
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func liveCount(surfaces map[string]*SurfaceState) int {
	n := 0
	for _, s := range surfaces {
		if !s.Closed {
			n++
		}
	}
	return n
}
