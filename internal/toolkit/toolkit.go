// Package toolkit is the seam between vitrine and the native display toolkit.
//
// The dispatcher only ever talks to a Toolkit: it builds surfaces from a Spec,
// pushes scripts into them, and closes them. Toolkit callbacks (Handlers) run
// on toolkit-owned goroutines and must do nothing except forward intent onto
// the dispatch channel. Close requests coming from the toolkit itself (a user
// closing a window or a tab) arrive on Events.
package toolkit

import "errors"

// SurfaceID identifies one surface. It is assigned by the toolkit in Create and
// never reused for the life of the process.
type SurfaceID string

// Theme selects the surface chrome theme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ErrUnknownSurface is returned for operations on ids the toolkit does not own.
var ErrUnknownSurface = errors.New("unknown surface")

// Size is a logical pixel size.
type Size struct {
	Width  int
	Height int
}

// Content is what a surface loads: inline HTML, or a URL when URL is set.
type Content struct {
	HTML string
	URL  string
}

// Handlers are the per-surface callbacks. Every field is optional.
type Handlers struct {
	// IPC receives each raw bridge message posted by the surface content.
	IPC func(id SurfaceID, message string)
	// DownloadStarted may rewrite the destination. Returning allow=false
	// cancels the native download.
	DownloadStarted func(id SurfaceID, uri, suggestedPath string) (path string, allow bool)
	// DownloadCompleted reports where the toolkit put the file.
	DownloadCompleted func(id SurfaceID, path string, success bool)
	// NewWindow reports a popup request. The toolkit never opens popups itself.
	NewWindow func(id SurfaceID, uri string)
}

// Spec describes a surface to build.
type Spec struct {
	Title       string
	Size        Size
	MinSize     Size
	Visible     bool
	Decorations bool
	Resizable   bool
	AlwaysOnTop bool
	Theme       Theme
	Icon        string
	// AssetDir is the only directory local content may load files from.
	AssetDir    string
	Content     Content
	InitScripts []string
	DevTools    bool
	Handlers    Handlers
}

// NativeEvent is an event raised by the toolkit outside any handler.
type NativeEvent interface {
	nativeEvent()
}

// CloseRequested is raised when the user closes a surface through its chrome.
type CloseRequested struct {
	ID SurfaceID
}

func (CloseRequested) nativeEvent() {}

// Capabilities are resolved once at startup.
type Capabilities struct {
	// NativeDownloadRewrite is true when DownloadStarted can redirect the
	// destination path before the toolkit writes the file.
	NativeDownloadRewrite bool
	// DevTools is true when OpenDevTools does something.
	DevTools bool
}

//go:generate mockgen -destination=mocks/mock_toolkit.go -package=mocks github.com/mattjoyce/vitrine/internal/toolkit Toolkit

// Toolkit is the external GUI collaborator. Create/SetAlwaysOnTop/
// EvaluateScript/OpenDevTools/Close are only called from the dispatcher
// goroutine.
type Toolkit interface {
	Create(spec Spec) (SurfaceID, error)
	SetAlwaysOnTop(id SurfaceID, on bool) error
	EvaluateScript(id SurfaceID, script string) error
	OpenDevTools(id SurfaceID) error
	Close(id SurfaceID) error
	Events() <-chan NativeEvent
	Capabilities() Capabilities
}
