package bridge

import (
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{"#RESULT:abc%20d", Result{Payload: "abc%20d"}},
		{"#RESULT:", Result{Payload: ""}},
		{"data:image/png;base64,AAAA", BlobData{Raw: "data:image/png;base64,AAAA"}},
		{"#EOF", BlobEOF{}},
		{"#EOF ", Unrecognized{Raw: "#EOF "}},
		{"#OPEN_FILE:/tmp/a%20b.txt", OpenFile{Path: "/tmp/a%20b.txt"}},
		{"#DEVTOOLS", DevTools{}},
		{"#PYWRY_RESULT:x", Unrecognized{Raw: "#PYWRY_RESULT:x"}},
		{"", Unrecognized{Raw: ""}},
	}
	for _, tt := range tests {
		got := Parse(tt.raw)
		assert.Equal(t, tt.want, got, "Parse(%q)", tt.raw)
		assert.Equal(t, tt.raw, Encode(got), "Encode(Parse(%q))", tt.raw)
	}
}

func TestParseChunk(t *testing.T) {
	c, err := ParseChunk("data:text/csv;name=my%3Bfile.csv;size=3;seq=0;base64,YWJj")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", c.Mime)
	assert.Equal(t, "my;file.csv", c.Name)
	assert.Equal(t, int64(3), c.Size)
	assert.Equal(t, 0, c.Seq)
	assert.Equal(t, "YWJj", c.Fragment)

	legacy, err := ParseChunk("data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, -1, legacy.Seq)
	assert.Equal(t, int64(-1), legacy.Size)

	for _, bad := range []string{
		"data:text/plain,hello",
		"data:text/plain;base64",
		"data:x;seq=-1;base64,AA==",
		"data:x;size=big;base64,AA==",
		"#EOF",
	} {
		_, err := ParseChunk(bad)
		assert.True(t, errors.Is(err, ErrMalformedChunk), "ParseChunk(%q) = %v", bad, err)
	}
}

func chunks(data []byte, splits []int, name string) []string {
	b64 := base64.StdEncoding.EncodeToString(data)
	var out []string
	prev := 0
	for i, at := range append(splits, len(b64)) {
		out = append(out, Chunk{
			Mime: "application/octet-stream", Name: name, Size: int64(len(data)), Seq: i,
			Fragment: b64[prev:at],
		}.String())
		prev = at
	}
	return out
}

func TestAssemblerRoundTrip(t *testing.T) {
	a := NewAssembler()
	const id = toolkit.SurfaceID("s1")
	for _, c := range chunks([]byte("hello, world"), []int{4, 8}, "greeting.txt") {
		require.NoError(t, a.Append(id, c))
	}
	assert.True(t, a.Open(id))

	tr, err := a.Finish(id)
	require.NoError(t, err)
	assert.False(t, a.Open(id))
	assert.Equal(t, "greeting.txt", tr.Name)

	data, err := tr.Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(data))
}

func TestAssemblerErrors(t *testing.T) {
	a := NewAssembler()

	_, err := a.Finish("none")
	assert.ErrorIs(t, err, ErrNoTransfer)

	parts := chunks([]byte("abcdefgh"), []int{4}, "x")
	assert.ErrorIs(t, a.Append("s", parts[1]), ErrOutOfOrder)

	require.NoError(t, a.Append("s", parts[0]))
	assert.ErrorIs(t, a.Append("s", parts[0]), ErrTransferOpen)

	// Streams on different surfaces do not interfere.
	require.NoError(t, a.Append("t", parts[0]))
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Discard("t"))
	assert.False(t, a.Discard("t"))
}

func TestTransferDecodeRejectsGaps(t *testing.T) {
	tr := &Transfer{Size: -1, Chunks: []Chunk{
		{Seq: 0, Fragment: "YWJj"},
		{Seq: 2, Fragment: "ZGVm"},
	}}
	_, err := tr.Decode()
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestAssemblerRejectsUnframedChunks(t *testing.T) {
	a := NewAssembler()
	for _, raw := range []string{
		"data:text/plain;base64,YWJj",
		"data:text/plain;seq=0;base64,YWJj",
		"data:text/plain;size=6;base64,YWJj",
	} {
		assert.ErrorIs(t, a.Append("s", raw), ErrMalformedChunk, raw)
	}
	assert.False(t, a.Open("s"))

	_, err := a.Finish("s")
	assert.ErrorIs(t, err, ErrNoTransfer)

	tr := &Transfer{Size: -1, Chunks: []Chunk{{Seq: 0, Size: -1, Fragment: "YWJj"}}}
	_, err = tr.Decode()
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestOverlappingStreamLeavesOpenTransferIntact(t *testing.T) {
	a := NewAssembler()
	first := chunks([]byte("first stream"), []int{4, 8}, "first.txt")
	second := chunks([]byte("another one!"), []int{4, 8}, "second.txt")

	require.NoError(t, a.Append("s", first[0]))
	assert.ErrorIs(t, a.Append("s", second[0]), ErrTransferOpen)
	assert.ErrorIs(t, a.Append("s", second[1]), ErrTransferOpen)
	require.NoError(t, a.Append("s", first[1]))
	assert.ErrorIs(t, a.Append("s", second[2]), ErrTransferOpen)
	require.NoError(t, a.Append("s", first[2]))

	tr, err := a.Finish("s")
	require.NoError(t, err)
	data, err := tr.Decode()
	require.NoError(t, err)
	assert.Equal(t, "first stream", string(data))
	assert.Equal(t, "first.txt", tr.Name)
}

func TestAssemblerRejectsSkippedSeq(t *testing.T) {
	a := NewAssembler()
	parts := chunks([]byte("abcdefghijkl"), []int{4, 8}, "x")
	require.NoError(t, a.Append("s", parts[0]))
	assert.ErrorIs(t, a.Append("s", parts[2]), ErrOutOfOrder)
	require.NoError(t, a.Append("s", parts[1]))
	require.NoError(t, a.Append("s", parts[2]))

	tr, err := a.Finish("s")
	require.NoError(t, err)
	data, err := tr.Decode()
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijkl", string(data))
}

// An EOF that arrives before every chunk has been appended must never decode
// to a valid file.
func TestEarlyEOFNeverYieldsFile(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 200).Draw(rt, "data")
		b64Len := base64.StdEncoding.EncodedLen(len(data))
		splits := rapid.SliceOfNDistinct(rapid.IntRange(1, b64Len-1), 0, min(5, b64Len-1), rapid.ID[int]).Draw(rt, "splits")
		sort.Ints(splits)

		parts := chunks(data, splits, "f")
		delivered := rapid.IntRange(1, len(parts)).Draw(rt, "delivered")

		a := NewAssembler()
		for _, c := range parts[:delivered] {
			if err := a.Append("s", c); err != nil {
				rt.Fatalf("append: %v", err)
			}
		}
		tr, err := a.Finish("s")
		if err != nil {
			rt.Fatalf("finish: %v", err)
		}
		got, err := tr.Decode()
		if delivered == len(parts) {
			if err != nil || string(got) != string(data) {
				rt.Fatalf("complete transfer: got %q err %v", got, err)
			}
			return
		}
		if err == nil {
			rt.Fatalf("early EOF after %d/%d chunks decoded %d bytes", delivered, len(parts), len(got))
		}
	})
}

func TestInitScript(t *testing.T) {
	plain := InitScript(ScriptOptions{})
	assert.Contains(t, plain, "getFromObjectURL")
	assert.Contains(t, plain, "'#RESULT:'")
	assert.Contains(t, plain, "function vitrineRender")
	assert.NotContains(t, plain, "window.json_data")
	assert.NotContains(t, plain, "execCommand")

	full := InitScript(ScriptOptions{
		Payload:    []byte(`{"a":1}`),
		ExportPath: "/tmp/out.png",
		CopyPaste:  true,
		User:       "console.log('mine');",
	})
	assert.Contains(t, full, `window.json_data = {"a":1}; window.export_image = "/tmp/out.png";`)
	assert.Contains(t, full, "execCommand('paste')")
	assert.True(t, strings.HasSuffix(full, "console.log('mine');"), "user script must run last")
}

func TestRenderCall(t *testing.T) {
	js, err := RenderCall(RenderInfo{Figure: []byte(`{"layout":{}}`), Width: 640, Height: 480, Format: "png", Scale: 1})
	require.NoError(t, err)
	assert.Equal(t, `vitrineRender({"figure":{"layout":{}},"width":640,"height":480,"format":"png","scale":1});`, js)

	assert.Equal(t, `window.vitrine.streamBlob("blob:null/1", "a.csv");`, StreamBlobCall("blob:null/1", "a.csv"))
	assert.Equal(t, "jpeg", FormatFor("/x/OUT.JPG"))
	assert.Equal(t, "svg", FormatFor("a.svg"))
	assert.Equal(t, "png", FormatFor("noext"))
}
