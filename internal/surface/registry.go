// Package surface holds the registry of live display surfaces.
//
// The registry is owned by the dispatcher goroutine and is not safe for
// concurrent use. Other goroutines see it only through Snapshot copies handed
// out by the dispatcher.
package surface

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

var (
	// ErrIDReused is returned when adding an id that is live or was closed.
	ErrIDReused = errors.New("surface id reused")
	// ErrNotFound is returned for ids that are not live.
	ErrNotFound = errors.New("surface not found")
)

// Kind distinguishes per-request surfaces from the shared headless sink.
type Kind int

const (
	KindNormal Kind = iota
	KindHeadless
	KindPopup
)

func (k Kind) String() string {
	switch k {
	case KindHeadless:
		return "headless"
	case KindPopup:
		return "popup"
	default:
		return "normal"
	}
}

// Record is the dispatcher's view of one live surface.
type Record struct {
	ID          toolkit.SurfaceID `json:"id"`
	Kind        Kind              `json:"-"`
	KindName    string            `json:"kind"`
	Title       string            `json:"title"`
	Pinned      bool              `json:"pinned"`
	Minimized   bool              `json:"minimized"`
	ExportPath  string            `json:"export_path,omitempty"`
	DownloadDir string            `json:"download_dir,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Registry maps live surface ids to records and remembers every closed id.
type Registry struct {
	live   map[toolkit.SurfaceID]*Record
	closed map[toolkit.SurfaceID]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		live:   make(map[toolkit.SurfaceID]*Record),
		closed: make(map[toolkit.SurfaceID]struct{}),
	}
}

// Add registers a new surface.
func (r *Registry) Add(rec Record) error {
	if _, ok := r.live[rec.ID]; ok {
		return fmt.Errorf("%w: %s is live", ErrIDReused, rec.ID)
	}
	if _, ok := r.closed[rec.ID]; ok {
		return fmt.Errorf("%w: %s was closed", ErrIDReused, rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.KindName = rec.Kind.String()
	r.live[rec.ID] = &rec
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id toolkit.SurfaceID) (Record, bool) {
	rec, ok := r.live[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Remove erases id and tombstones it. The removed record is returned.
func (r *Registry) Remove(id toolkit.SurfaceID) (Record, error) {
	rec, ok := r.live[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.live, id)
	r.closed[id] = struct{}{}
	return *rec, nil
}

// Unpin clears the pinned flag. It reports true only on the call that
// actually cleared it.
func (r *Registry) Unpin(id toolkit.SurfaceID) bool {
	rec, ok := r.live[id]
	if !ok || !rec.Pinned {
		return false
	}
	rec.Pinned = false
	return true
}

// Len returns the number of live surfaces.
func (r *Registry) Len() int { return len(r.live) }

// IDs returns live ids in creation order.
func (r *Registry) IDs() []toolkit.SurfaceID {
	snap := r.Snapshot()
	ids := make([]toolkit.SurfaceID, len(snap))
	for i, rec := range snap {
		ids[i] = rec.ID
	}
	return ids
}

// Snapshot returns copies of every live record, oldest first.
func (r *Registry) Snapshot() []Record {
	out := make([]Record, 0, len(r.live))
	for _, rec := range r.live {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// WasClosed reports whether id was ever removed.
func (r *Registry) WasClosed(id toolkit.SurfaceID) bool {
	_, ok := r.closed[id]
	return ok
}
