package bridge

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ChunkChars is the base64 fragment length posted per blob chunk. It is a
// multiple of 4 so every fragment boundary is a base64 quantum boundary.
const ChunkChars = 64 * 1024

// BlobRegistryScript keeps every object URL's blob so it can be streamed back
// later. Download hooks only ever see the blob: URI, never the bytes.
const BlobRegistryScript = `
(() => {
	const create = URL.createObjectURL;
	const revoke = URL.revokeObjectURL;
	const dict = {};
	Object.defineProperty(URL, 'createObjectURL', {
		get: () => function (blob) {
			const url = create(blob);
			dict[url] = blob;
			return url;
		}
	});
	Object.defineProperty(URL, 'revokeObjectURL', {
		get: () => function (url) {
			revoke(url);
		}
	});
	Object.defineProperty(URL, 'getFromObjectURL', {
		get: () => function (url) {
			return dict[url] || null;
		}
	});
})();
`

// WindowAPIScript exposes window.vitrine to the content.
var WindowAPIScript = fmt.Sprintf(`
window.vitrine = {
	result: function (result) {
		window.ipc.postMessage('%[1]s' + result);
	},
	open_file: function (path) {
		window.ipc.postMessage('%[2]s' + path);
	},
	devtools: function () {
		window.ipc.postMessage('%[3]s');
	},
	streamBlob: function (uri, name) {
		const blob = URL.getFromObjectURL(uri);
		if (!blob) {
			return false;
		}
		const reader = new FileReader();
		reader.onload = function () {
			const b64 = String(reader.result).split(',')[1] || '';
			const head = '%[4]s' + (blob.type || 'application/octet-stream') +
				';name=' + encodeURIComponent(name || 'download') + ';size=' + blob.size;
			let seq = 0;
			for (let i = 0; i < b64.length || seq === 0; i += %[5]d) {
				window.ipc.postMessage(head + ';seq=' + seq + ';base64,' + b64.slice(i, i + %[5]d));
				seq++;
			}
			window.ipc.postMessage('%[6]s');
		};
		reader.readAsDataURL(blob);
		return true;
	},
};
`, PrefixResult, PrefixOpenFile, LiteralDevTool, PrefixData, ChunkChars, LiteralEOF)

// RenderHookScript defines vitrineRender, the headless render entry point.
const RenderHookScript = `
function vitrineRender(info) {
	const opts = {};
	try {
		const figure = info.figure;
		const config = Object.assign({ plotGlPixelRatio: (info.scale || 2) * 2 }, figure.config);
		opts.figure = { ...figure, config: config };
		opts.imgOpts = {
			format: info.format || 'png',
			width: info.width,
			height: info.height,
			scale: info.scale,
			imageDataOnly: info.format !== 'svg',
		};
	} catch (err) {
		return window.vitrine.result(err);
	}
	try {
		Plotly.toImage(opts.figure, opts.imgOpts).then(function (data) {
			return window.vitrine.result(data);
		});
	} catch (err) {
		return window.vitrine.result(err);
	}
	return true;
}
`

// CopyPasteScript restores copy/paste shortcuts on macOS webviews.
const CopyPasteScript = `
try {
	window.addEventListener('keydown', (e) => {
		if (e.key.toLowerCase() === 'c' && (e.ctrlKey || e.metaKey)) {
			e.preventDefault();
			document.execCommand('copy');
		}
		if (e.key.toLowerCase() === 'v' && (e.ctrlKey || e.metaKey)) {
			e.preventDefault();
			document.execCommand('paste');
		}
	});
} catch (error) {
	console.log(error);
}
`

// DevToolsBar is prepended to content when a console is attached.
const DevToolsBar = `<style>
#vitrine-devtools {
	position: relative;
	top: 0;
	left: 0;
	width: 100%;
	height: 20px;
	background-color: #0f0f0f;
	display: flex;
	z-index: 9999;
}
#vitrine-devtools button {
	background-color: #0f0f0f;
	color: #fff;
	border: 1px solid #404040;
	padding: 2px 10px;
	font-size: 10px;
	cursor: pointer;
}
#vitrine-devtools button:hover {
	background-color: #404040;
}
</style>
<div id='vitrine-devtools'>
	<button onclick="window.vitrine.devtools()">DevTools</button>
</div>
`

// HeadlessPage is the content of the shared headless surface.
const HeadlessPage = `<html>
<head>
	<meta charset='utf-8' />
	<meta name='viewport' content='width=device-width, initial-scale=1' />
	<script src='https://cdn.plot.ly/plotly-2.21.0.min.js'></script>
	<style>
		html, body { margin: 0; padding: 0; overflow: hidden; }
	</style>
</head>
<body></body>
</html>
`

// ScriptOptions selects the optional parts of the init script.
type ScriptOptions struct {
	// Payload becomes window.json_data when set.
	Payload json.RawMessage
	// ExportPath becomes window.export_image when Payload is set.
	ExportPath string
	// CopyPaste adds CopyPasteScript.
	CopyPaste bool
	// User is the request's own init_script, run last.
	User string
}

// InitScript builds the script injected into every bridged surface.
func InitScript(opts ScriptOptions) string {
	parts := []string{BlobRegistryScript, WindowAPIScript, RenderHookScript}
	if len(opts.Payload) > 0 {
		export, _ := json.Marshal(opts.ExportPath)
		parts = append(parts, fmt.Sprintf("window.json_data = %s; window.export_image = %s;", opts.Payload, export))
	}
	if opts.CopyPaste {
		parts = append(parts, CopyPasteScript)
	}
	if opts.User != "" {
		parts = append(parts, opts.User)
	}
	return strings.Join(parts, "\n")
}

// RenderInfo is the argument of vitrineRender.
type RenderInfo struct {
	Figure json.RawMessage `json:"figure"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Format string          `json:"format"`
	Scale  int             `json:"scale"`
}

// RenderCall returns the script that renders info in the headless surface.
func RenderCall(info RenderInfo) (string, error) {
	if len(info.Figure) == 0 {
		info.Figure = json.RawMessage("{}")
	}
	b, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encode render info: %w", err)
	}
	return fmt.Sprintf("vitrineRender(%s);", b), nil
}

// StreamBlobCall returns the script that streams the blob behind uri back
// over the bridge.
func StreamBlobCall(uri, name string) string {
	u, _ := json.Marshal(uri)
	n, _ := json.Marshal(name)
	return fmt.Sprintf("window.vitrine.streamBlob(%s, %s);", u, n)
}

// FormatFor maps an export path to the image format the render hook produces.
func FormatFor(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpg", "jpeg":
		return "jpeg"
	case "svg", "webp", "pdf":
		return ext
	default:
		return "png"
	}
}
