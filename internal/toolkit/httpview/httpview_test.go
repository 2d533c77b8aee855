package httpview

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vitrine/internal/log"
	"github.com/mattjoyce/vitrine/internal/toolkit"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", log.FormatJSON, nil)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{CloseGrace: 50 * time.Millisecond})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestPageCarriesShimAndInitScripts(t *testing.T) {
	s, ts := newTestServer(t)
	id, err := s.Create(toolkit.Spec{
		Title:       "Sales <Q1>",
		InitScripts: []string{"window.x = '</script>';"},
		Content:     toolkit.Content{HTML: "<h1>hello</h1>"},
	})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/s/" + string(id))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "<title>Sales &lt;Q1&gt;</title>")
	assert.Contains(t, page, "window.ipc")
	assert.Contains(t, page, `window.x = '<\/script>';`)
	assert.True(t, strings.HasSuffix(page, "<h1>hello</h1>"))
}

func TestURLContentIsFramed(t *testing.T) {
	page := renderPage("/s/x", toolkit.Spec{Content: toolkit.Content{URL: "https://example.com/?a=1&b=2"}})
	assert.Contains(t, page, `<iframe src="https://example.com/?a=1&amp;b=2">`)
}

func TestIPCDeliversInOrder(t *testing.T) {
	s, ts := newTestServer(t)
	var (
		mu  sync.Mutex
		got []string
	)
	id, _ := s.Create(toolkit.Spec{Handlers: toolkit.Handlers{
		IPC: func(_ toolkit.SurfaceID, msg string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
		},
	}})

	for _, msg := range []string{"#RESULT:1", "data:text/plain;base64,aGk=", "#EOF"} {
		resp, err := http.Post(ts.URL+"/s/"+string(id)+"/ipc", "text/plain", strings.NewReader(msg))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"#RESULT:1", "data:text/plain;base64,aGk=", "#EOF"}, got)
}

func TestUnknownSurface(t *testing.T) {
	s, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/s/nope/ipc", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.ErrorIs(t, s.Close("nope"), toolkit.ErrUnknownSurface)
	assert.ErrorIs(t, s.EvaluateScript("nope", "1"), toolkit.ErrUnknownSurface)
}

func TestEvaluateScriptStreamsOverSSE(t *testing.T) {
	s, ts := newTestServer(t)
	id, _ := s.Create(toolkit.Spec{})
	require.NoError(t, s.EvaluateScript(id, `vitrineRender({"width":640});`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/s/"+string(id)+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	assert.Equal(t, "eval", event)
	var script string
	require.NoError(t, json.Unmarshal([]byte(data), &script))
	assert.Equal(t, `vitrineRender({"width":640});`, script)

	// Closing ends the stream with a close event.
	require.NoError(t, s.Close(id))
	var sawClose bool
	for sc.Scan() {
		if sc.Text() == "event: close" {
			sawClose = true
		}
	}
	assert.True(t, sawClose)
}

func TestCloseBeaconRaisesNativeEvent(t *testing.T) {
	s, ts := newTestServer(t)
	id, _ := s.Create(toolkit.Spec{})

	resp, err := http.Post(ts.URL+"/s/"+string(id)+"/close", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()

	select {
	case ev := <-s.Events():
		assert.Equal(t, toolkit.CloseRequested{ID: id}, ev)
	case <-time.After(time.Second):
		t.Fatal("no close event")
	}
}

func TestReloadSupersedesCloseBeacon(t *testing.T) {
	s, ts := newTestServer(t)
	id, _ := s.Create(toolkit.Spec{})

	resp, err := http.Post(ts.URL+"/s/"+string(id)+"/close", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()

	// The reloaded tab reconnects its event stream inside the grace period.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/s/"+string(id)+"/events", nil)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected native event %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestShimIgnoresCachedPageHide(t *testing.T) {
	assert.Contains(t, shimScript, "e.persisted")
}

func TestDownloadAndPopupUseHandlers(t *testing.T) {
	s, ts := newTestServer(t)
	popups := make(chan string, 1)
	id, _ := s.Create(toolkit.Spec{Handlers: toolkit.Handlers{
		DownloadStarted: func(_ toolkit.SurfaceID, uri, name string) (string, bool) {
			return name, !strings.HasPrefix(uri, "blob:")
		},
		NewWindow: func(_ toolkit.SurfaceID, uri string) { popups <- uri },
	}})

	resp, err := http.Post(ts.URL+"/s/"+string(id)+"/download", "application/json",
		strings.NewReader(`{"uri":"blob:null/1","name":"plot.png"}`))
	require.NoError(t, err)
	var dl downloadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dl))
	resp.Body.Close()
	assert.False(t, dl.Allow)
	assert.Equal(t, "plot.png", dl.Path)

	resp, err = http.Post(ts.URL+"/s/"+string(id)+"/popup", "text/plain", strings.NewReader("https://example.com"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://example.com", <-popups)
}

func TestAssetServedWithDetectedType(t *testing.T) {
	s, ts := newTestServer(t)
	dir := t.TempDir()
	id, _ := s.Create(toolkit.Spec{AssetDir: dir})

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	path := filepath.Join(dir, "pixel.bin")
	require.NoError(t, os.WriteFile(path, png, 0o644))

	resp, err := http.Get(ts.URL + assetURL("/s/"+string(id), path))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp2, err := http.Get(ts.URL + assetURL("/s/"+string(id), filepath.Join(dir, "missing.png")))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestAssetLimitedToIconAndAssetDir(t *testing.T) {
	s, ts := newTestServer(t)
	dir := t.TempDir()
	other := t.TempDir()

	icon := filepath.Join(other, "icon.png")
	secret := filepath.Join(other, "secret.txt")
	page := filepath.Join(dir, "data.csv")
	for _, p := range []string{icon, secret, page} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	status := func(id toolkit.SurfaceID, path string) int {
		resp, err := http.Get(ts.URL + assetURL("/s/"+string(id), path))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	id, _ := s.Create(toolkit.Spec{Icon: icon, AssetDir: dir})
	assert.Equal(t, http.StatusOK, status(id, icon))
	assert.Equal(t, http.StatusOK, status(id, page))
	assert.Equal(t, http.StatusNotFound, status(id, secret))
	assert.Equal(t, http.StatusNotFound, status(id, filepath.Join(dir, "..", filepath.Base(other), "secret.txt")))

	bare, _ := s.Create(toolkit.Spec{})
	assert.Equal(t, http.StatusNotFound, status(bare, page))
}

func TestAllowsAsset(t *testing.T) {
	spec := toolkit.Spec{Icon: "/icons/app.png", AssetDir: "/srv/report"}
	tests := []struct {
		path string
		want bool
	}{
		{"/icons/app.png", true},
		{"/icons/other.png", false},
		{"/srv/report/plot.png", true},
		{"/srv/report/sub/plot.png", true},
		{"/srv/report", false},
		{"/srv/report/../secret", false},
		{"/srv/reporting/x", false},
		{"/etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, allowsAsset(spec, assetRoute(tt.path), tt.path))
		})
	}
}

func TestCapabilitiesAreAdvisory(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, toolkit.Capabilities{}, s.Capabilities())
	id, _ := s.Create(toolkit.Spec{})
	assert.NoError(t, s.SetAlwaysOnTop(id, true))
	assert.NoError(t, s.OpenDevTools(id))
	assert.Empty(t, s.URL(id), "no address before Start")
}

type recordingBrowser struct{ urls chan string }

func (b recordingBrowser) Open(u string) error {
	b.urls <- u
	return nil
}

func TestStartOpensBrowser(t *testing.T) {
	b := recordingBrowser{urls: make(chan string, 1)}
	s := New(Config{Listen: "127.0.0.1:0", OpenBrowser: true, Browser: b})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	id, _ := s.Create(toolkit.Spec{Title: "T"})
	select {
	case u := <-b.urls:
		assert.Equal(t, s.URL(id), u)
		resp, err := http.Get(u)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("browser not opened")
	}
}
