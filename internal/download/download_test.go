package download

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/vitrine/internal/bridge"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", log.FormatJSON, nil)
	os.Exit(m.Run())
}

func drain(c *events.Channel) []events.Event {
	var out []events.Event
	for {
		ev, ok := c.TryRecv()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func blake(data string) string {
	sum := blake3.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestPolicyResolve(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/exports", 0o755))

	tests := []struct {
		name   string
		policy Policy
		want   string
	}{
		{"export wins over download dir", Policy{ExportPath: "/out/chart.png", DownloadDir: "/dl"}, "/out/chart.png"},
		{"export directory gets base name", Policy{ExportPath: "/exports"}, "/exports/file.csv"},
		{"download dir", Policy{DownloadDir: "/dl"}, "/dl/file.csv"},
		{"native default", Policy{}, "/tmp/x/file.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ResolveFS(fs, "/tmp/x/file.csv"))
		})
	}
}

func TestDecodePath(t *testing.T) {
	assert.Equal(t, "/tmp/my file.csv", DecodePath("file:///tmp/my%20file.csv"))
	assert.Equal(t, "/tmp/a.csv", DecodePath("/tmp/a.csv"))
	assert.Equal(t, "/tmp/100%", DecodePath("/tmp/100%"), "invalid escapes are kept")
	assert.Equal(t, filepath.FromSlash("C:/Users/a.csv"), DecodePath("file:///C:/Users/a.csv"))
}

func TestCompleteExportBeatsDownloadDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/dl/chart.png", []byte("png"), 0o644))

	out := events.NewChannel()
	w := NewWorker(fs, out)
	w.Complete(context.Background(), Completion{
		ID: "s1", Path: "file:///tmp/dl/chart.png", Success: true,
		Policy: Policy{ExportPath: "/out/final.png", DownloadDir: "/downloads"},
	})
	w.Wait()

	evs := drain(out)
	require.Len(t, evs, 2)
	moved, ok := evs[0].(events.FileMoved)
	require.True(t, ok, "first event %T", evs[0])
	require.NoError(t, moved.Err)
	assert.Equal(t, "/out/final.png", moved.To)
	assert.Equal(t, blake("png"), moved.Checksum)
	assert.Equal(t, events.SurfaceCloseRequested{ID: "s1", Reason: events.ReasonExported}, evs[1])

	exists, _ := afero.Exists(fs, "/downloads/chart.png")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/tmp/dl/chart.png")
	assert.False(t, exists)
}

func TestCompleteDownloadDirMovesAndDeletes(t *testing.T) {
	// Real filesystem so the original temp file is observable.
	tmp := t.TempDir()
	orig := filepath.Join(tmp, "native", "report.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(orig), 0o755))
	require.NoError(t, os.WriteFile(orig, []byte("a,b\n"), 0o644))
	dir := filepath.Join(tmp, "wanted", "nested")

	out := events.NewChannel()
	w := NewWorker(afero.NewOsFs(), out)
	w.Complete(context.Background(), Completion{
		ID: "s2", Path: orig, Success: true, Policy: Policy{DownloadDir: dir},
	})
	w.Wait()

	evs := drain(out)
	require.Len(t, evs, 1, "no close request without an export path")
	moved := evs[0].(events.FileMoved)
	require.NoError(t, moved.Err)
	assert.Equal(t, filepath.Join(dir, "report.csv"), moved.To)

	got, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))
	_, err = os.Stat(orig)
	assert.True(t, os.IsNotExist(err), "original temp file must be gone")
}

func TestCompleteFailureLeavesSurfaceOpen(t *testing.T) {
	out := events.NewChannel()
	w := NewWorker(afero.NewMemMapFs(), out)

	w.Complete(context.Background(), Completion{ID: "s3", Path: "/missing", Success: false,
		Policy: Policy{ExportPath: "/out.png"}})
	w.Complete(context.Background(), Completion{ID: "s4", Path: "/also-missing", Success: true,
		Policy: Policy{ExportPath: "/out.png"}})
	w.Wait()

	for _, ev := range drain(out) {
		moved, ok := ev.(events.FileMoved)
		require.True(t, ok, "failures must not request close, got %T", ev)
		assert.Error(t, moved.Err)
	}
}

func TestWriteBlob(t *testing.T) {
	fs := afero.NewMemMapFs()
	out := events.NewChannel()
	w := NewWorker(fs, out)

	a := bridge.NewAssembler()
	b64 := base64.StdEncoding.EncodeToString([]byte("ab"))
	require.NoError(t, a.Append("s", bridge.Chunk{Mime: "text/plain", Name: "out.txt", Size: 2, Seq: 0, Fragment: b64}.String()))
	tr, err := a.Finish("s")
	require.NoError(t, err)

	w.WriteBlob(context.Background(), "s", tr, Policy{DownloadDir: "/dl/sub"})
	w.Wait()

	evs := drain(out)
	require.Len(t, evs, 1)
	done := evs[0].(events.TransferFinished)
	require.NoError(t, done.Err)
	assert.False(t, done.Export)
	assert.Equal(t, "/dl/sub/out.txt", done.Path)
	assert.Equal(t, blake("ab"), done.Checksum)
	data, err := afero.ReadFile(fs, "/dl/sub/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestWriteBlobCorruptNeverWritesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	out := events.NewChannel()
	w := NewWorker(fs, out)

	tr := &bridge.Transfer{Size: 10, Chunks: []bridge.Chunk{{Seq: 0, Size: 10, Fragment: "YWJj"}}}
	w.WriteBlob(context.Background(), "s", tr, Policy{ExportPath: "/dl/out.bin"})
	w.Wait()

	done := drain(out)[0].(events.TransferFinished)
	assert.ErrorIs(t, done.Err, bridge.ErrSizeMismatch)
	assert.True(t, done.Export)
	exists, _ := afero.Exists(fs, "/dl/out.bin")
	assert.False(t, exists)
}

func TestOpenCommand(t *testing.T) {
	assert.Equal(t, []string{"open", "/a b.pdf"}, openCommand("darwin", "/a b.pdf").Args)
	assert.Equal(t, []string{"xdg-open", "/a.pdf"}, openCommand("linux", "/a.pdf").Args)
	assert.Equal(t, "rundll32", openCommand("windows", `C:\a.pdf`).Args[0])
}
