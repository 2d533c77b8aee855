// Package httpview is the bundled Toolkit. Each surface is a page served by a
// local chi server and shown in the system browser. Scripts are pushed to the
// page over SSE and bridge messages come back as POSTs.
//
// A browser tab cannot be hidden, kept on top or given devtools from the
// host, so visibility and pinning are advisory and Capabilities reports
// neither download rewriting nor devtools. Native downloads the page allows
// are left to the browser and never report completion.
package httpview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// maxMessageBytes bounds one bridge POST. A blob chunk is 64 KiB of base64
// plus its header.
const maxMessageBytes = 1 << 20

// defaultCloseGrace is how long a close beacon waits for the tab to reconnect.
// A reload sends the beacon too.
const defaultCloseGrace = 2 * time.Second

// Opener opens a URL in the system browser.
type Opener interface {
	Open(target string) error
}

// Config holds httpview settings.
type Config struct {
	Listen      string
	OpenBrowser bool
	Browser     Opener
	CloseGrace  time.Duration
}

// Server implements toolkit.Toolkit over HTTP.
type Server struct {
	config Config
	logger *slog.Logger
	events chan toolkit.NativeEvent

	mu    sync.Mutex
	pages map[toolkit.SurfaceID]*page
	base  string

	server   *http.Server
	listener net.Listener
}

var _ toolkit.Toolkit = (*Server)(nil)

// New creates a server. Call Start before creating surfaces that should open
// in a browser.
func New(config Config) *Server {
	if config.Listen == "" {
		config.Listen = "127.0.0.1:0"
	}
	if config.CloseGrace <= 0 {
		config.CloseGrace = defaultCloseGrace
	}
	return &Server{
		config: config,
		logger: log.WithComponent("httpview"),
		events: make(chan toolkit.NativeEvent, 64),
		pages:  make(map[toolkit.SurfaceID]*page),
	}
}

// Start binds the listener and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}
	s.listener = ln
	s.mu.Lock()
	s.base = "http://" + ln.Addr().String()
	s.mu.Unlock()

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.logger.Info("surface server listening", "url", s.base)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
		case err := <-errCh:
			s.logger.Error("surface server stopped", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeAll()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	return nil
}

// Handler returns the router. Tests mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Route("/s/{id}", func(r chi.Router) {
		r.Get("/", s.handlePage)
		r.Post("/ipc", s.handleIPC)
		r.Get("/events", s.handleEvents)
		r.Post("/close", s.handleClose)
		r.Post("/popup", s.handlePopup)
		r.Post("/download", s.handleDownload)
		r.Get("/asset/*", s.handleAsset)
	})
	return r
}

// URL returns the page address of id, empty before Start.
func (s *Server) URL(id toolkit.SurfaceID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == "" {
		return ""
	}
	return s.base + pagePath(id)
}

func (s *Server) Create(spec toolkit.Spec) (toolkit.SurfaceID, error) {
	id := toolkit.SurfaceID(uuid.NewString())
	p := newPage(id, spec)

	s.mu.Lock()
	s.pages[id] = p
	base := s.base
	s.mu.Unlock()

	if s.config.OpenBrowser && base != "" && s.config.Browser != nil {
		url := base + pagePath(id)
		go func() {
			if err := s.config.Browser.Open(url); err != nil {
				s.logger.Warn("open browser", "surface_id", string(id), "url", url, "error", err)
			}
		}()
	}
	return id, nil
}

func (s *Server) SetAlwaysOnTop(id toolkit.SurfaceID, on bool) error {
	_, err := s.page(id)
	return err
}

func (s *Server) EvaluateScript(id toolkit.SurfaceID, script string) error {
	p, err := s.page(id)
	if err != nil {
		return err
	}
	p.push(script)
	return nil
}

func (s *Server) OpenDevTools(id toolkit.SurfaceID) error {
	_, err := s.page(id)
	return err
}

func (s *Server) Close(id toolkit.SurfaceID) error {
	s.mu.Lock()
	p, ok := s.pages[id]
	delete(s.pages, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", toolkit.ErrUnknownSurface, id)
	}
	p.close()
	return nil
}

func (s *Server) Events() <-chan toolkit.NativeEvent { return s.events }

func (s *Server) Capabilities() toolkit.Capabilities { return toolkit.Capabilities{} }

func (s *Server) page(id toolkit.SurfaceID) (*page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", toolkit.ErrUnknownSurface, id)
	}
	return p, nil
}

func (s *Server) closeAll() {
	s.mu.Lock()
	pages := s.pages
	s.pages = make(map[toolkit.SurfaceID]*page)
	s.mu.Unlock()
	for _, p := range pages {
		p.close()
	}
}

func (s *Server) pageFromRequest(w http.ResponseWriter, r *http.Request) (*page, bool) {
	p, err := s.page(toolkit.SurfaceID(chi.URLParam(r, "id")))
	if err != nil {
		http.Error(w, "unknown surface", http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, renderPage(pagePath(p.id), p.spec))
}

func (s *Server) handleIPC(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}
	if h := p.spec.Handlers.IPC; h != nil {
		h(p.id, string(body))
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClose raises CloseRequested unless the page reconnects within the
// grace period.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	gen := p.generation()
	time.AfterFunc(s.config.CloseGrace, func() {
		if p.generation() != gen || p.isClosed() {
			s.logger.Debug("close beacon superseded", "surface_id", string(p.id))
			return
		}
		select {
		case s.events <- toolkit.CloseRequested{ID: p.id}:
		default:
			s.logger.Warn("native event buffer full, close dropped", "surface_id", string(p.id))
		}
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8*1024))
	if err != nil {
		http.Error(w, "bad popup request", http.StatusBadRequest)
		return
	}
	if h := p.spec.Handlers.NewWindow; h != nil {
		h(p.id, string(body))
	}
	w.WriteHeader(http.StatusNoContent)
}

type downloadRequest struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type downloadResponse struct {
	Allow bool   `json:"allow"`
	Path  string `json:"path,omitempty"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	var req downloadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		http.Error(w, "bad download request", http.StatusBadRequest)
		return
	}
	resp := downloadResponse{Allow: true, Path: req.Name}
	if h := p.spec.Handlers.DownloadStarted; h != nil {
		resp.Path, resp.Allow = h(p.id, req.URI, req.Name)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleAsset serves the surface icon and files under its asset directory.
// Anything else is reported missing.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFromRequest(w, r)
	if !ok {
		return
	}
	route := chi.URLParam(r, "*")
	path := filepath.FromSlash(route)
	if !filepath.IsAbs(path) {
		path = string(filepath.Separator) + path
	}
	if !allowsAsset(p.spec, route, path) {
		s.logger.Debug("asset outside surface roots", "surface_id", string(p.id), "path", path)
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if mt, err := mimetype.DetectReader(f); err == nil {
		w.Header().Set("Content-Type", mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "seek asset", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func allowsAsset(spec toolkit.Spec, route, path string) bool {
	if spec.Icon != "" && route == assetRoute(spec.Icon) {
		return true
	}
	if spec.AssetDir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(spec.AssetDir), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func pagePath(id toolkit.SurfaceID) string {
	return "/s/" + string(id)
}
