// Package bridge implements the text protocol spoken on each surface's
// bidirectional channel.
//
// Inbound (content -> host) messages are plain strings:
//
//	#RESULT:<payload>    job result ready
//	data:<...>           one blob-transfer chunk
//	#EOF                 blob transfer complete
//	#OPEN_FILE:<path>    open a file with the system handler
//	#DEVTOOLS            open the devtools panel
//
// Anything else is Unrecognized and ignored by the dispatcher. Outbound
// (host -> content) is the init script built by InitScript.
package bridge

import "strings"

const (
	PrefixResult   = "#RESULT:"
	PrefixData     = "data:"
	LiteralEOF     = "#EOF"
	PrefixOpenFile = "#OPEN_FILE:"
	LiteralDevTool = "#DEVTOOLS"
)

// Command is one decoded inbound message.
type Command interface {
	command()
}

// Result carries a job result. Payload is still url-encoded.
type Result struct{ Payload string }

// BlobData is one blob chunk, the full data URL.
type BlobData struct{ Raw string }

// BlobEOF ends the current blob transfer.
type BlobEOF struct{}

// OpenFile asks the host to open Path.
type OpenFile struct{ Path string }

// DevTools asks the host to open the devtools panel.
type DevTools struct{}

// Unrecognized is any message outside the vocabulary.
type Unrecognized struct{ Raw string }

func (Result) command()       {}
func (BlobData) command()     {}
func (BlobEOF) command()      {}
func (OpenFile) command()     {}
func (DevTools) command()     {}
func (Unrecognized) command() {}

// Parse decodes a raw bridge message.
func Parse(raw string) Command {
	switch {
	case strings.HasPrefix(raw, PrefixResult):
		return Result{Payload: raw[len(PrefixResult):]}
	case strings.HasPrefix(raw, PrefixData):
		return BlobData{Raw: raw}
	case raw == LiteralEOF:
		return BlobEOF{}
	case strings.HasPrefix(raw, PrefixOpenFile):
		return OpenFile{Path: raw[len(PrefixOpenFile):]}
	case raw == LiteralDevTool:
		return DevTools{}
	default:
		return Unrecognized{Raw: raw}
	}
}

// Encode returns the wire form of c.
func Encode(c Command) string {
	switch c := c.(type) {
	case Result:
		return PrefixResult + c.Payload
	case BlobData:
		return c.Raw
	case BlobEOF:
		return LiteralEOF
	case OpenFile:
		return PrefixOpenFile + c.Path
	case DevTools:
		return LiteralDevTool
	case Unrecognized:
		return c.Raw
	default:
		return ""
	}
}
