package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/vitrine/internal/bridge"
	"github.com/mattjoyce/vitrine/internal/download"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/surface"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// Artifact kinds recorded in history.
const (
	ArtifactDownload = "download"
	ArtifactBlob     = "blob"
)

func (d *Dispatcher) handleNative(ev toolkit.NativeEvent) {
	switch ev := ev.(type) {
	case toolkit.CloseRequested:
		d.logger.Debug("close requested", "surface_id", string(ev.ID))
		d.closeSurface(ev.ID, events.ReasonUser)
	}
}

// handle applies one dispatch event. Unmatched events are no-ops.
func (d *Dispatcher) handle(ctx context.Context, ev events.Event) {
	switch ev := ev.(type) {
	case events.NewRenderRequest:
		if d.headless {
			d.renderHeadless(ev)
			return
		}
		d.createSurface(ev)

	case events.SurfaceCreated:
		if !d.registry.Unpin(ev.ID) {
			return
		}
		if err := d.tk.SetAlwaysOnTop(ev.ID, false); err != nil {
			d.logger.Debug("unpin surface", "surface_id", string(ev.ID), "error", err)
		}

	case events.SurfaceCloseRequested:
		d.closeSurface(ev.ID, ev.Reason)

	case events.ResultProduced:
		d.onResult(ev)

	case events.OpenFileRequested:
		path := download.DecodePath(ev.Path)
		opener := d.opener
		go func() {
			if err := opener.Open(path); err != nil {
				d.logger.Error("open file", "path", path, "error", err)
			}
		}()

	case events.DevToolsRequested:
		if _, ok := d.registry.Get(ev.ID); !ok {
			d.logger.Debug("devtools for unknown surface", "surface_id", string(ev.ID))
			return
		}
		if !d.caps.DevTools {
			d.logger.Debug("toolkit has no devtools", "surface_id", string(ev.ID))
			return
		}
		if err := d.tk.OpenDevTools(ev.ID); err != nil {
			d.logger.Warn("open devtools", "surface_id", string(ev.ID), "error", err)
		}

	case events.DownloadStarted:
		d.onDownloadStarted(ev)

	case events.DownloadCompleted:
		d.onDownloadCompleted(ctx, ev)

	case events.BlobChunk:
		d.onBlobChunk(ctx, ev)

	case events.NewPopupRequested:
		d.createPopup(ev)

	case events.TransferFinished:
		if ev.Err != nil {
			return
		}
		d.recorder.ArtifactWritten(ev.ID, ArtifactBlob, ev.Path, ev.Checksum)
		d.publisher.Publish(events.TopicBlobWritten, artifactNotice{ID: ev.ID, Path: ev.Path, Checksum: ev.Checksum})
		if ev.Export {
			d.closeSurface(ev.ID, events.ReasonExported)
		}

	case events.FileMoved:
		if ev.Err != nil {
			return
		}
		d.recorder.ArtifactWritten(ev.ID, ArtifactDownload, ev.To, ev.Checksum)
		d.publisher.Publish(events.TopicDownloadMoved, artifactNotice{ID: ev.ID, Path: ev.To, Checksum: ev.Checksum})

	case events.SnapshotRequested:
		select {
		case ev.Reply <- d.registry.Snapshot():
		default:
			d.logger.Debug("snapshot reply dropped")
		}

	default:
		d.logger.Debug("unhandled event", "event", eventName(ev))
	}
}

func (d *Dispatcher) onResult(ev events.ResultProduced) {
	d.emitter.Emit(ev.Payload)
	d.recorder.ResultEmitted(ev.ID, len(ev.Payload))
	d.publisher.Publish(events.TopicResultEmitted, resultNotice{ID: ev.ID, Bytes: len(ev.Payload)})

	rec, ok := d.registry.Get(ev.ID)
	if !ok || d.console || rec.Kind == surface.KindHeadless {
		return
	}
	d.closeSurface(ev.ID, events.ReasonResult)
}

func (d *Dispatcher) onDownloadStarted(ev events.DownloadStarted) {
	if len(ev.URI) < 200 {
		d.logger.Debug("download started", "surface_id", string(ev.ID), "uri", ev.URI, "path", ev.SuggestedPath)
	}
	if !isBlobURI(ev.URI) {
		return
	}
	if _, ok := d.registry.Get(ev.ID); !ok {
		d.logger.Debug("blob download for unknown surface", "surface_id", string(ev.ID))
		return
	}
	name := filepath.Base(ev.SuggestedPath)
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	if err := d.tk.EvaluateScript(ev.ID, bridge.StreamBlobCall(ev.URI, name)); err != nil {
		d.logger.Warn("stream blob", "surface_id", string(ev.ID), "error", err)
	}
}

func (d *Dispatcher) onDownloadCompleted(ctx context.Context, ev events.DownloadCompleted) {
	d.logger.Debug("download complete", "surface_id", string(ev.ID), "success", ev.Success, "path", ev.Path)
	policy := download.Policy{ExportPath: ev.ExportPath, DownloadDir: ev.DownloadDir}

	if d.caps.NativeDownloadRewrite {
		// The toolkit already wrote to the resolved path.
		if !ev.Success {
			return
		}
		d.recorder.ArtifactWritten(ev.ID, ArtifactDownload, download.DecodePath(ev.Path), "")
		if policy.IsExport() {
			d.closeSurface(ev.ID, events.ReasonExported)
		}
		return
	}
	d.worker.Complete(ctx, download.Completion{ID: ev.ID, Path: ev.Path, Success: ev.Success, Policy: policy})
}

func (d *Dispatcher) onBlobChunk(ctx context.Context, ev events.BlobChunk) {
	if ev.Data != nil {
		if err := d.blobs.Append(ev.ID, *ev.Data); err != nil {
			if errors.Is(err, bridge.ErrTransferOpen) {
				d.logger.Warn("rejected overlapping blob transfer", "surface_id", string(ev.ID))
				return
			}
			d.logger.Warn("blob chunk", "surface_id", string(ev.ID), "error", err)
		}
		return
	}

	t, err := d.blobs.Finish(ev.ID)
	if err != nil {
		d.logger.Warn("blob end", "surface_id", string(ev.ID), "error", err)
		return
	}
	policy := download.Policy{DownloadDir: d.downloadDir}
	if rec, ok := d.registry.Get(ev.ID); ok && (rec.ExportPath != "" || rec.DownloadDir != "") {
		policy = download.Policy{ExportPath: rec.ExportPath, DownloadDir: rec.DownloadDir}
	}
	d.worker.WriteBlob(ctx, ev.ID, t, policy)
}

// forward maps one inbound bridge message onto the dispatch channel. It runs
// on toolkit goroutines.
func (d *Dispatcher) forward(id toolkit.SurfaceID, raw string) {
	switch cmd := bridge.Parse(raw).(type) {
	case bridge.Result:
		d.send(events.ResultProduced{ID: id, Payload: cmd.Payload})
	case bridge.BlobData:
		d.send(events.Chunk(id, cmd.Raw))
	case bridge.BlobEOF:
		d.send(events.EOF(id))
	case bridge.OpenFile:
		d.send(events.OpenFileRequested{ID: id, Path: cmd.Path})
	case bridge.DevTools:
		d.send(events.DevToolsRequested{ID: id})
	case bridge.Unrecognized:
	}
}

// handlers builds the toolkit callbacks for one bridged surface. They only
// forward intent onto the dispatch channel.
func (d *Dispatcher) handlers(policy download.Policy, icon string) toolkit.Handlers {
	rewrite := d.caps.NativeDownloadRewrite
	return toolkit.Handlers{
		IPC: d.forward,
		DownloadStarted: func(id toolkit.SurfaceID, uri, suggested string) (string, bool) {
			d.send(events.DownloadStarted{ID: id, URI: uri, SuggestedPath: suggested})
			if isBlobURI(uri) {
				return suggested, false
			}
			if rewrite {
				return policy.Resolve(suggested), true
			}
			return suggested, true
		},
		DownloadCompleted: func(id toolkit.SurfaceID, path string, success bool) {
			d.send(events.DownloadCompleted{
				ID: id, Path: path, Success: success,
				DownloadDir: policy.DownloadDir, ExportPath: policy.ExportPath,
			})
		},
		NewWindow: func(id toolkit.SurfaceID, uri string) {
			d.send(events.NewPopupRequested{From: id, URI: uri, Icon: icon})
		},
	}
}

func isBlobURI(uri string) bool {
	return strings.HasPrefix(uri, "blob:")
}

func eventName(ev events.Event) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", ev), "events.")
}

type artifactNotice struct {
	ID       toolkit.SurfaceID `json:"surface_id"`
	Path     string            `json:"path"`
	Checksum string            `json:"checksum,omitempty"`
}

type resultNotice struct {
	ID    toolkit.SurfaceID `json:"surface_id"`
	Bytes int               `json:"bytes"`
}
