// Package request turns one ingress line into a RenderRequest.
//
// Parsing never fails the pipeline: anything unusable becomes the canonical
// placeholder request so exactly one surface-or-nothing decision is made per
// line.
package request

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	PlaceholderTitle = "Error Creating Showable Object"
	PlaceholderHTML  = "<h1 style='color:red'>There was an error displaying the HTML</h1>"
)

// Theme is the requested surface theme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Kind says how a request is rendered.
type Kind int

const (
	// KindInteractive opens a visible surface.
	KindInteractive Kind = iota
	// KindExport opens a surface whose only job is to produce a file.
	KindExport
	// KindHeadless renders into the shared hidden surface.
	KindHeadless
)

func (k Kind) String() string {
	switch k {
	case KindExport:
		return "export"
	case KindHeadless:
		return "headless"
	default:
		return "interactive"
	}
}

// RenderRequest is one display job.
type RenderRequest struct {
	Content     string
	Title       string
	Width       int
	Height      int
	Theme       Theme
	Icon        string
	// BaseDir is the directory of html_path, empty for inline content.
	BaseDir     string
	Payload     json.RawMessage
	DownloadDir string
	ExportPath  string
	URL         string
	InitScript  string

	Kind        Kind
	Placeholder bool
}

// IsExport reports whether the request names a single-shot export destination.
func (r RenderRequest) IsExport() bool {
	return r.ExportPath != ""
}

// Placeholder returns the canonical error request.
func Placeholder() RenderRequest {
	return RenderRequest{
		Content:     PlaceholderHTML,
		Title:       PlaceholderTitle,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Theme:       ThemeDark,
		Kind:        KindInteractive,
		Placeholder: true,
	}
}

// wire is the accepted JSON shape of one ingress line.
type wire struct {
	HTML         *string         `json:"html"`
	HTMLStr      *string         `json:"html_str"`
	HTMLPath     *string         `json:"html_path"`
	Title        string          `json:"title"`
	Icon         string          `json:"icon"`
	JSONData     json.RawMessage `json:"json_data"`
	DownloadPath string          `json:"download_path"`
	ExportImage  string          `json:"export_image"`
	Theme        string          `json:"theme"`
	URL          string          `json:"url"`
	InitScript   string          `json:"init_script"`
}

// Parser parses ingress lines. Headless selects KindHeadless for export
// requests.
type Parser struct {
	Headless bool
	// ReadFile loads html_path. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// NewParser creates a parser for the given mode.
func NewParser(headless bool) *Parser {
	return &Parser{Headless: headless, ReadFile: os.ReadFile}
}

// Parse turns a line into a RenderRequest. The error is always nil; malformed
// input yields Placeholder.
func (p *Parser) Parse(line string) (RenderRequest, error) {
	line = strings.TrimSpace(line)
	if !gjson.Valid(line) || !gjson.Parse(line).IsObject() {
		return Placeholder(), nil
	}

	var w wire
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Placeholder(), nil
	}

	req := RenderRequest{
		Title:       w.Title,
		Width:       dimension(gjson.Get(line, "width"), DefaultWidth),
		Height:      dimension(gjson.Get(line, "height"), DefaultHeight),
		Theme:       ThemeDark,
		Icon:        w.Icon,
		DownloadDir: w.DownloadPath,
		ExportPath:  w.ExportImage,
		URL:         w.URL,
		InitScript:  w.InitScript,
		Payload:     unwrapPayload(w.JSONData),
	}
	if strings.EqualFold(w.Theme, string(ThemeLight)) {
		req.Theme = ThemeLight
	}

	switch {
	case w.HTML != nil:
		req.Content = *w.HTML
	case w.HTMLStr != nil:
		req.Content = *w.HTMLStr
	case w.HTMLPath != nil:
		read := p.ReadFile
		if read == nil {
			read = os.ReadFile
		}
		b, err := read(*w.HTMLPath)
		if err != nil {
			return Placeholder(), nil
		}
		req.Content = string(b)
		if abs, err := filepath.Abs(*w.HTMLPath); err == nil {
			req.BaseDir = filepath.Dir(abs)
		}
	case req.URL != "", len(req.Payload) > 0:
	default:
		return Placeholder(), nil
	}

	if len(req.Payload) > 0 {
		layout := gjson.GetBytes(req.Payload, "layout")
		req.Width = dimension(layout.Get("width"), req.Width)
		req.Height = dimension(layout.Get("height"), req.Height)
	}

	switch {
	case req.IsExport() && p.Headless:
		req.Kind = KindHeadless
	case req.IsExport():
		req.Kind = KindExport
	default:
		req.Kind = KindInteractive
	}
	return req, nil
}

// dimension clamps a numeric field to def when missing, non-numeric or not
// positive.
func dimension(v gjson.Result, def int) int {
	if v.Type != gjson.Number || v.Int() <= 0 {
		return def
	}
	return int(v.Int())
}

// unwrapPayload returns raw as-is, or the JSON held inside a JSON string.
func unwrapPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		if inner := res.String(); gjson.Valid(inner) {
			return json.RawMessage(inner)
		}
	}
	return raw
}
