// Package download reconciles finished downloads and blob transfers with the
// destination a request asked for. All filesystem work runs off the dispatcher
// goroutine and reports back as events.
package download

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Policy is the destination preference of one surface.
type Policy struct {
	ExportPath  string
	DownloadDir string
}

// IsExport reports whether completion is terminal for the surface.
func (p Policy) IsExport() bool { return p.ExportPath != "" }

// Resolve picks the destination for suggested on the real filesystem.
func (p Policy) Resolve(suggested string) string {
	return p.ResolveFS(afero.NewOsFs(), suggested)
}

// ResolveFS picks the destination for suggested: the export path wins (with
// the suggested base name appended when it is a directory), then
// DownloadDir/<base>, then suggested itself.
func (p Policy) ResolveFS(fs afero.Fs, suggested string) string {
	base := filepath.Base(suggested)
	switch {
	case p.ExportPath != "":
		if ok, _ := afero.IsDir(fs, p.ExportPath); ok && base != "." && base != string(filepath.Separator) {
			return filepath.Join(p.ExportPath, base)
		}
		return p.ExportPath
	case p.DownloadDir != "":
		return filepath.Join(p.DownloadDir, base)
	default:
		return suggested
	}
}

// DecodePath turns a toolkit-reported path or file:// URL into a filesystem
// path. Percent escapes are decoded; a drive letter after file:/// keeps its
// colon and loses the leading slash.
func DecodePath(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if !strings.HasPrefix(decoded, "file://") {
		return decoded
	}
	p := strings.TrimPrefix(decoded, "file://")
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}
