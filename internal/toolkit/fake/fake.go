// Package fake is an in-memory Toolkit for tests. It records every call and
// lets a test play the part of the surface content (IPC, downloads, popups)
// and of the user (close requests).
package fake

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// Surface is the recorded state of one fake surface.
type Surface struct {
	ID          toolkit.SurfaceID
	Spec        toolkit.Spec
	AlwaysOnTop bool
	Scripts     []string
	DevTools    int
	Closed      bool
}

// Toolkit implements toolkit.Toolkit in memory.
type Toolkit struct {
	mu       sync.Mutex
	caps     toolkit.Capabilities
	surfaces map[toolkit.SurfaceID]*Surface
	order    []toolkit.SurfaceID
	events   chan toolkit.NativeEvent
	failNext error
}

var _ toolkit.Toolkit = (*Toolkit)(nil)

// New creates a fake toolkit with the given capabilities.
func New(caps toolkit.Capabilities) *Toolkit {
	return &Toolkit{
		caps:     caps,
		surfaces: make(map[toolkit.SurfaceID]*Surface),
		events:   make(chan toolkit.NativeEvent, 64),
	}
}

// FailNextCreate makes the next Create call return err.
func (t *Toolkit) FailNextCreate(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = err
}

func (t *Toolkit) Create(spec toolkit.Spec) (toolkit.SurfaceID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failNext; err != nil {
		t.failNext = nil
		return "", err
	}
	id := toolkit.SurfaceID(uuid.NewString())
	t.surfaces[id] = &Surface{ID: id, Spec: spec, AlwaysOnTop: spec.AlwaysOnTop}
	t.order = append(t.order, id)
	return id, nil
}

func (t *Toolkit) SetAlwaysOnTop(id toolkit.SurfaceID, on bool) error {
	return t.with(id, func(s *Surface) { s.AlwaysOnTop = on })
}

func (t *Toolkit) EvaluateScript(id toolkit.SurfaceID, script string) error {
	return t.with(id, func(s *Surface) { s.Scripts = append(s.Scripts, script) })
}

func (t *Toolkit) OpenDevTools(id toolkit.SurfaceID) error {
	return t.with(id, func(s *Surface) { s.DevTools++ })
}

func (t *Toolkit) Close(id toolkit.SurfaceID) error {
	return t.with(id, func(s *Surface) { s.Closed = true })
}

func (t *Toolkit) Events() <-chan toolkit.NativeEvent { return t.events }

func (t *Toolkit) Capabilities() toolkit.Capabilities { return t.caps }

func (t *Toolkit) with(id toolkit.SurfaceID, fn func(*Surface)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.surfaces[id]
	if !ok || s.Closed {
		return fmt.Errorf("%w: %s", toolkit.ErrUnknownSurface, id)
	}
	fn(s)
	return nil
}

// Surface returns a copy of the recorded surface state.
func (t *Toolkit) Surface(id toolkit.SurfaceID) (Surface, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	cp := *s
	cp.Scripts = append([]string(nil), s.Scripts...)
	return cp, true
}

// Created returns every id ever created, oldest first.
func (t *Toolkit) Created() []toolkit.SurfaceID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]toolkit.SurfaceID(nil), t.order...)
}

// UserClose simulates the user closing a surface through its chrome.
func (t *Toolkit) UserClose(id toolkit.SurfaceID) {
	t.events <- toolkit.CloseRequested{ID: id}
}

// PostMessage simulates the surface content posting a bridge message.
func (t *Toolkit) PostMessage(id toolkit.SurfaceID, message string) {
	h := t.handlers(id)
	if h.IPC != nil {
		h.IPC(id, message)
	}
}

// StartDownload simulates the content starting a download.
func (t *Toolkit) StartDownload(id toolkit.SurfaceID, uri, suggested string) (string, bool) {
	h := t.handlers(id)
	if h.DownloadStarted == nil {
		return suggested, true
	}
	return h.DownloadStarted(id, uri, suggested)
}

// FinishDownload simulates the toolkit reporting a finished download.
func (t *Toolkit) FinishDownload(id toolkit.SurfaceID, path string, success bool) {
	h := t.handlers(id)
	if h.DownloadCompleted != nil {
		h.DownloadCompleted(id, path, success)
	}
}

// RequestPopup simulates the content asking for a new window.
func (t *Toolkit) RequestPopup(id toolkit.SurfaceID, uri string) {
	h := t.handlers(id)
	if h.NewWindow != nil {
		h.NewWindow(id, uri)
	}
}

func (t *Toolkit) handlers(id toolkit.SurfaceID) toolkit.Handlers {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.surfaces[id]; ok {
		return s.Spec.Handlers
	}
	return toolkit.Handlers{}
}
