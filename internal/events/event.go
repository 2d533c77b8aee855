// Package events defines the dispatch vocabulary and the channels that carry it.
//
// Event is the only thing the dispatcher understands. Every background
// activity (ingestion, toolkit callbacks, filesystem work) talks to the
// dispatcher by sending Events on a Channel. Hub is the read-only fan-out of
// lifecycle notices for the status API and the monitor.
package events

import (
	"github.com/mattjoyce/vitrine/internal/request"
	"github.com/mattjoyce/vitrine/internal/surface"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// Event is a closed union; only types in this package implement it.
type Event interface {
	event()
}

// Sender is the producer side of a Channel.
type Sender interface {
	Send(ev Event) error
}

// CloseReason says why a surface is closing.
type CloseReason string

const (
	ReasonUser     CloseReason = "user"
	ReasonResult   CloseReason = "result"
	ReasonExported CloseReason = "exported"
	ReasonShutdown CloseReason = "shutdown"
)

type (
	// NewRenderRequest carries one parsed ingress line.
	NewRenderRequest struct {
		Request request.RenderRequest
	}

	// SurfaceCreated clears pinning on the next dispatch turn.
	SurfaceCreated struct {
		ID toolkit.SurfaceID
	}

	// SurfaceCloseRequested asks the dispatcher to close and forget a surface.
	SurfaceCloseRequested struct {
		ID     toolkit.SurfaceID
		Reason CloseReason
	}

	// ResultProduced carries a bridge result, still url-encoded.
	ResultProduced struct {
		ID      toolkit.SurfaceID
		Payload string
	}

	// OpenFileRequested asks for Path to be opened by the system handler.
	OpenFileRequested struct {
		ID   toolkit.SurfaceID
		Path string
	}

	// DevToolsRequested asks for the devtools panel of ID.
	DevToolsRequested struct {
		ID toolkit.SurfaceID
	}

	// DownloadStarted reports a native download start. Blob URIs are never
	// allowed natively; the dispatcher streams them over the bridge instead.
	DownloadStarted struct {
		ID            toolkit.SurfaceID
		URI           string
		SuggestedPath string
	}

	// DownloadCompleted reports where the toolkit wrote a finished download.
	DownloadCompleted struct {
		ID          toolkit.SurfaceID
		Path        string
		Success     bool
		DownloadDir string
		ExportPath  string
	}

	// BlobChunk is one bridge blob message. A nil Data is the end-of-transfer
	// sentinel.
	BlobChunk struct {
		ID   toolkit.SurfaceID
		Data *string
	}

	// NewPopupRequested asks for a plain surface showing URI.
	NewPopupRequested struct {
		From toolkit.SurfaceID
		URI  string
		Icon string
	}

	// TransferFinished reports a written blob.
	TransferFinished struct {
		ID       toolkit.SurfaceID
		Path     string
		Checksum string
		Export   bool
		Err      error
	}

	// FileMoved reports a reconciled download.
	FileMoved struct {
		ID       toolkit.SurfaceID
		From     string
		To       string
		Checksum string
		Err      error
	}

	// SnapshotRequested asks for a copy of the registry. Reply must be
	// buffered; the dispatcher never blocks on it.
	SnapshotRequested struct {
		Reply chan<- []surface.Record
	}
)

func (NewRenderRequest) event()      {}
func (SurfaceCreated) event()        {}
func (SurfaceCloseRequested) event() {}
func (ResultProduced) event()        {}
func (OpenFileRequested) event()     {}
func (DevToolsRequested) event()     {}
func (DownloadStarted) event()       {}
func (DownloadCompleted) event()     {}
func (BlobChunk) event()             {}
func (NewPopupRequested) event()     {}
func (TransferFinished) event()      {}
func (FileMoved) event()             {}
func (SnapshotRequested) event()     {}

// Chunk returns a BlobChunk carrying data.
func Chunk(id toolkit.SurfaceID, data string) BlobChunk {
	return BlobChunk{ID: id, Data: &data}
}

// EOF returns the end-of-transfer BlobChunk.
func EOF(id toolkit.SurfaceID) BlobChunk {
	return BlobChunk{ID: id}
}
