package dispatch

import (
	"errors"
	"strings"

	"github.com/mattjoyce/vitrine/internal/bridge"
	"github.com/mattjoyce/vitrine/internal/download"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/request"
	"github.com/mattjoyce/vitrine/internal/surface"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// blockedPopupHosts are popup origins that are never opened.
var blockedPopupHosts = []string{"https://ogs.google.com"}

func (d *Dispatcher) createSurface(ev events.NewRenderRequest) {
	req := ev.Request
	minimized := req.IsExport() && !d.console
	visible := !minimized
	policy := download.Policy{ExportPath: req.ExportPath, DownloadDir: req.DownloadDir}

	spec := toolkit.Spec{
		Title: req.Title,
		Size: toolkit.Size{
			Width:  req.Width + d.window.ChromeMargin,
			Height: req.Height + d.window.ChromeMargin,
		},
		MinSize:     toolkit.Size{Width: d.window.MinWidth, Height: d.window.MinHeight},
		Visible:     visible,
		Decorations: true,
		Resizable:   true,
		AlwaysOnTop: visible,
		Theme:       toolkit.Theme(req.Theme),
		Icon:        req.Icon,
		AssetDir:    req.BaseDir,
		Content:     d.content(req),
		InitScripts: []string{bridge.InitScript(bridge.ScriptOptions{
			Payload:    req.Payload,
			ExportPath: req.ExportPath,
			CopyPaste:  d.copyPaste,
			User:       req.InitScript,
		})},
		DevTools: d.console,
		Handlers: d.handlers(policy, req.Icon),
	}

	id, err := d.tk.Create(spec)
	if err != nil {
		d.logger.Error("create surface", "title", req.Title, "error", err)
		return
	}

	rec := surface.Record{
		ID:          id,
		Kind:        surface.KindNormal,
		Title:       req.Title,
		Pinned:      visible,
		Minimized:   minimized,
		ExportPath:  req.ExportPath,
		DownloadDir: req.DownloadDir,
	}
	if !d.register(rec) {
		return
	}
	d.logger.Info("surface created", "surface_id", string(id), "title", req.Title,
		"kind", req.Kind.String(), "placeholder", req.Placeholder)

	if rec.Pinned {
		d.send(events.SurfaceCreated{ID: id})
	}
}

// content picks what a request surface loads.
func (d *Dispatcher) content(req request.RenderRequest) toolkit.Content {
	if req.URL != "" {
		return toolkit.Content{URL: req.URL}
	}
	html := req.Content
	if html == "" && len(req.Payload) > 0 {
		html = bridge.HeadlessPage
	}
	if d.console {
		html = bridge.DevToolsBar + html
	}
	return toolkit.Content{HTML: html}
}

func (d *Dispatcher) createHeadless() {
	html := bridge.HeadlessPage
	if d.console {
		html = bridge.DevToolsBar + html
	}
	spec := toolkit.Spec{
		Title:       "vitrine headless",
		Size:        toolkit.Size{Width: d.window.DefaultWidth, Height: d.window.DefaultHeight},
		MinSize:     toolkit.Size{Width: d.window.MinWidth, Height: d.window.MinHeight},
		Visible:     d.console,
		Theme:       toolkit.ThemeDark,
		Content:     toolkit.Content{HTML: html},
		InitScripts: []string{bridge.InitScript(bridge.ScriptOptions{CopyPaste: d.copyPaste})},
		DevTools:    d.console,
		Handlers:    d.handlers(download.Policy{}, ""),
	}

	id, err := d.tk.Create(spec)
	if err != nil {
		d.logger.Error("create headless surface", "error", err)
		return
	}
	if !d.register(surface.Record{ID: id, Kind: surface.KindHeadless, Title: spec.Title}) {
		return
	}
	d.headlessID = id
	d.logger.Info("headless surface ready", "surface_id", string(id))
}

func (d *Dispatcher) renderHeadless(ev events.NewRenderRequest) {
	req := ev.Request
	if d.headlessID == "" {
		d.logger.Warn("no headless surface, request dropped", "title", req.Title)
		return
	}
	script, err := bridge.RenderCall(bridge.RenderInfo{
		Figure: req.Payload,
		Width:  req.Width,
		Height: req.Height,
		Format: bridge.FormatFor(req.ExportPath),
		Scale:  1,
	})
	if err != nil {
		d.logger.Warn("headless render", "title", req.Title, "error", err)
		return
	}
	if err := d.tk.EvaluateScript(d.headlessID, script); err != nil {
		d.logger.Warn("headless render", "surface_id", string(d.headlessID), "error", err)
	}
}

func (d *Dispatcher) createPopup(ev events.NewPopupRequested) {
	if !popupAllowed(ev.URI) {
		d.logger.Debug("popup refused", "from", string(ev.From), "uri", ev.URI)
		return
	}
	spec := toolkit.Spec{
		Title:       ev.URI,
		Size:        toolkit.Size{Width: d.window.PopupWidth, Height: d.window.PopupHeight},
		Visible:     true,
		Decorations: true,
		Resizable:   true,
		Theme:       toolkit.ThemeDark,
		Icon:        ev.Icon,
		Content:     toolkit.Content{URL: ev.URI},
		DevTools:    d.console,
		Handlers:    d.handlers(download.Policy{DownloadDir: d.downloadDir}, ev.Icon),
	}
	id, err := d.tk.Create(spec)
	if err != nil {
		d.logger.Error("create popup", "uri", ev.URI, "error", err)
		return
	}
	if d.register(surface.Record{ID: id, Kind: surface.KindPopup, Title: ev.URI}) {
		d.logger.Info("popup opened", "surface_id", string(id), "from", string(ev.From))
	}
}

func popupAllowed(uri string) bool {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return false
	}
	for _, host := range blockedPopupHosts {
		if strings.HasPrefix(uri, host) {
			return false
		}
	}
	return true
}

// register adds rec, closing the toolkit surface again if the id is unusable.
func (d *Dispatcher) register(rec surface.Record) bool {
	if err := d.registry.Add(rec); err != nil {
		d.logger.Error("register surface", "surface_id", string(rec.ID), "error", err)
		if errors.Is(err, surface.ErrIDReused) {
			_ = d.tk.Close(rec.ID)
		}
		return false
	}
	stored, _ := d.registry.Get(rec.ID)
	d.recorder.SurfaceOpened(stored)
	d.publisher.Publish(events.TopicSurfaceCreated, stored)
	return true
}

// closeSurface tears id down. Unknown ids are ignored.
func (d *Dispatcher) closeSurface(id toolkit.SurfaceID, reason events.CloseReason) {
	if _, ok := d.registry.Get(id); !ok {
		return
	}
	if _, err := d.registry.Remove(id); err != nil {
		d.logger.Debug("remove surface", "surface_id", string(id), "error", err)
		return
	}
	d.blobs.Discard(id)
	if err := d.tk.Close(id); err != nil && !errors.Is(err, toolkit.ErrUnknownSurface) {
		d.logger.Warn("close surface", "surface_id", string(id), "error", err)
	}
	if id == d.headlessID {
		d.headlessID = ""
	}
	d.logger.Info("surface closed", "surface_id", string(id), "reason", string(reason))
	d.recorder.SurfaceClosed(id, reason)
	d.publisher.Publish(events.TopicSurfaceClosed, closedNotice{ID: id, Reason: reason})
}

type closedNotice struct {
	ID     toolkit.SurfaceID  `json:"surface_id"`
	Reason events.CloseReason `json:"reason"`
}
