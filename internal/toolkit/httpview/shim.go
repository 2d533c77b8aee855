package httpview

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

// shimScript connects a page to its surface. Bridge messages are posted in
// order through one promise chain; pushed scripts and the close order arrive
// over SSE.
const shimScript = `
(() => {
	const base = %q;
	let chain = Promise.resolve();
	const post = (path, body, type) => fetch(base + path, {
		method: 'POST',
		headers: { 'Content-Type': type || 'text/plain' },
		body: body,
	});
	window.ipc = {
		postMessage: function (msg) {
			chain = chain.then(() => post('/ipc', String(msg))).catch(() => {});
		},
	};
	const es = new EventSource(base + '/events');
	es.addEventListener('eval', (e) => {
		try {
			(0, eval)(JSON.parse(e.data));
		} catch (err) {
			console.error(err);
		}
	});
	es.addEventListener('close', () => {
		es.close();
		window.close();
	});
	window.addEventListener('pagehide', (e) => {
		if (!e.persisted) {
			navigator.sendBeacon(base + '/close');
		}
	});
	window.open = function (url) {
		post('/popup', String(url));
		return null;
	};
	document.addEventListener('click', (e) => {
		const a = e.target && e.target.closest ? e.target.closest('a[download]') : null;
		if (!a || a.dataset.vitrineAllowed) {
			return;
		}
		e.preventDefault();
		post('/download', JSON.stringify({ uri: a.href, name: a.download }), 'application/json')
			.then((r) => r.json())
			.then((res) => {
				if (res.allow) {
					a.dataset.vitrineAllowed = '1';
					a.click();
					delete a.dataset.vitrineAllowed;
				}
			});
	}, true);
})();
`

// renderPage builds the document served for a surface.
func renderPage(base string, spec toolkit.Spec) string {
	var b strings.Builder
	b.WriteString("<!doctype html>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(spec.Title))
	if spec.Theme == toolkit.ThemeLight {
		b.WriteString("<meta name=\"color-scheme\" content=\"light\">\n")
	} else {
		b.WriteString("<meta name=\"color-scheme\" content=\"dark\">\n")
	}
	if spec.Icon != "" {
		fmt.Fprintf(&b, "<link rel=\"icon\" href=\"%s\">\n", html.EscapeString(assetURL(base, spec.Icon)))
	}
	writeScript(&b, fmt.Sprintf(shimScript, base))
	for _, s := range spec.InitScripts {
		writeScript(&b, s)
	}

	if spec.Content.URL != "" {
		fmt.Fprintf(&b, "<style>html,body{margin:0;height:100%%}iframe{border:0;width:100%%;height:100%%}</style>\n<iframe src=\"%s\"></iframe>\n",
			html.EscapeString(spec.Content.URL))
		return b.String()
	}
	b.WriteString(spec.Content.HTML)
	return b.String()
}

func writeScript(b *strings.Builder, src string) {
	b.WriteString("<script>")
	b.WriteString(strings.ReplaceAll(src, "</script", "<\\/script"))
	b.WriteString("</script>\n")
}

// assetURL maps a local file path onto the surface's asset route. URLs pass
// through.
func assetURL(base, path string) string {
	if strings.Contains(path, "://") || strings.HasPrefix(path, "data:") {
		return path
	}
	return base + "/asset/" + assetRoute(path)
}

func assetRoute(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(path), "/")
}
