package bridge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mattjoyce/vitrine/internal/toolkit"
)

var (
	// ErrNoTransfer is returned when a transfer is finished that was never opened.
	ErrNoTransfer = errors.New("no open blob transfer")
	// ErrOutOfOrder is returned when chunk sequence numbers are not contiguous from zero.
	ErrOutOfOrder = errors.New("blob chunk out of order")
	// ErrTransferOpen is returned when a new stream starts before the previous EOF.
	ErrTransferOpen = errors.New("blob transfer already open")
	// ErrSizeMismatch is returned when the decoded length differs from the announced size.
	ErrSizeMismatch = errors.New("blob size mismatch")
	// ErrMalformedChunk is returned for chunks that are not base64 data URLs.
	ErrMalformedChunk = errors.New("malformed blob chunk")
)

// Chunk is one parsed data URL fragment.
//
//	data:<mime>[;name=<pct-encoded>][;size=<n>][;seq=<i>];base64,<fragment>
type Chunk struct {
	Mime     string
	Name     string
	Size     int64 // -1 when not announced
	Seq      int   // -1 when not numbered
	Fragment string
}

// ParseChunk splits a data URL chunk into header fields and fragment.
func ParseChunk(raw string) (Chunk, error) {
	if !strings.HasPrefix(raw, PrefixData) {
		return Chunk{}, fmt.Errorf("%w: missing data: prefix", ErrMalformedChunk)
	}
	header, frag, ok := strings.Cut(raw[len(PrefixData):], ",")
	if !ok {
		return Chunk{}, fmt.Errorf("%w: missing comma", ErrMalformedChunk)
	}

	c := Chunk{Size: -1, Seq: -1, Fragment: frag}
	params := strings.Split(header, ";")
	c.Mime = params[0]
	base64Seen := false
	for _, p := range params[1:] {
		key, val, _ := strings.Cut(p, "=")
		switch key {
		case "base64":
			base64Seen = true
		case "name":
			name, err := url.PathUnescape(val)
			if err != nil {
				return Chunk{}, fmt.Errorf("%w: name: %v", ErrMalformedChunk, err)
			}
			c.Name = name
		case "size":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil || n < 0 {
				return Chunk{}, fmt.Errorf("%w: size %q", ErrMalformedChunk, val)
			}
			c.Size = n
		case "seq":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return Chunk{}, fmt.Errorf("%w: seq %q", ErrMalformedChunk, val)
			}
			c.Seq = n
		}
	}
	if !base64Seen {
		return Chunk{}, fmt.Errorf("%w: not base64", ErrMalformedChunk)
	}
	return c, nil
}

// String renders the chunk back into data URL form.
func (c Chunk) String() string {
	var b strings.Builder
	b.WriteString(PrefixData)
	b.WriteString(c.Mime)
	if c.Name != "" {
		b.WriteString(";name=")
		b.WriteString(url.PathEscape(c.Name))
	}
	if c.Size >= 0 {
		fmt.Fprintf(&b, ";size=%d", c.Size)
	}
	if c.Seq >= 0 {
		fmt.Fprintf(&b, ";seq=%d", c.Seq)
	}
	b.WriteString(";base64,")
	b.WriteString(c.Fragment)
	return b.String()
}

// Transfer is the ordered chunk list of one blob stream.
type Transfer struct {
	Surface toolkit.SurfaceID
	Mime    string
	Name    string
	Size    int64
	Chunks  []Chunk
}

// Decode verifies sequencing and returns the blob bytes. A transfer without
// an announced size never decodes, so a truncated stream cannot pass.
func (t *Transfer) Decode() ([]byte, error) {
	if len(t.Chunks) == 0 {
		return nil, ErrNoTransfer
	}
	var b strings.Builder
	for i, c := range t.Chunks {
		if c.Seq != i {
			return nil, fmt.Errorf("%w: chunk %d has seq %d", ErrOutOfOrder, i, c.Seq)
		}
		b.WriteString(c.Fragment)
	}
	if t.Size < 0 {
		return nil, fmt.Errorf("%w: size not announced", ErrMalformedChunk)
	}

	data, err := base64.StdEncoding.DecodeString(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if int64(len(data)) != t.Size {
		return nil, fmt.Errorf("%w: got %d bytes, announced %d", ErrSizeMismatch, len(data), t.Size)
	}
	return data, nil
}

// belongs reports whether c carries the same stream header as t.
func (t *Transfer) belongs(c Chunk) bool {
	return c.Mime == t.Mime && c.Name == t.Name && c.Size == t.Size
}

// Assembler holds at most one open transfer per surface. It is owned by the
// dispatcher goroutine.
type Assembler struct {
	open map[toolkit.SurfaceID]*Transfer
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{open: make(map[toolkit.SurfaceID]*Transfer)}
}

// Append adds a raw chunk to id's transfer, opening one on seq 0. Every chunk
// must announce size and seq. Chunks from a second stream that overlaps the
// open one are rejected without touching it.
func (a *Assembler) Append(id toolkit.SurfaceID, raw string) error {
	c, err := ParseChunk(raw)
	if err != nil {
		return err
	}
	if c.Size < 0 || c.Seq < 0 {
		return fmt.Errorf("%w: size and seq are required", ErrMalformedChunk)
	}

	t, ok := a.open[id]
	switch {
	case !ok && c.Seq > 0:
		return fmt.Errorf("%w: seq %d with no open transfer", ErrOutOfOrder, c.Seq)
	case !ok:
		t = &Transfer{Surface: id, Mime: c.Mime, Name: c.Name, Size: c.Size}
		a.open[id] = t
	case c.Seq == 0:
		return ErrTransferOpen
	case !t.belongs(c):
		return fmt.Errorf("%w: chunk for %q while %q is open", ErrTransferOpen, c.Name, t.Name)
	case c.Seq != len(t.Chunks):
		return fmt.Errorf("%w: seq %d, want %d", ErrOutOfOrder, c.Seq, len(t.Chunks))
	}
	t.Chunks = append(t.Chunks, c)
	return nil
}

// Finish closes id's transfer and returns it for decoding.
func (a *Assembler) Finish(id toolkit.SurfaceID) (*Transfer, error) {
	t, ok := a.open[id]
	if !ok {
		return nil, ErrNoTransfer
	}
	delete(a.open, id)
	return t, nil
}

// Discard drops any open transfer for id.
func (a *Assembler) Discard(id toolkit.SurfaceID) bool {
	_, ok := a.open[id]
	delete(a.open, id)
	return ok
}

// Open reports whether id has a transfer in flight.
func (a *Assembler) Open(id toolkit.SurfaceID) bool {
	_, ok := a.open[id]
	return ok
}

// Len returns the number of open transfers.
func (a *Assembler) Len() int { return len(a.open) }
