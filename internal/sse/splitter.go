// Package sse implements a byte-level pass-through transform over an
// upstream event stream that forwards every chunk unmodified while
// incrementally scanning complete `data: {...}` lines on the side to
// latch the first-seen {model, usage} pair.
//
// Unlike a JSON-reconstructing stream reader, Splitter never rewrites
// what it forwards -- the caller still owns copying the original
// chunk straight through to the client; Splitter only observes it.
package sse

import (
	"bytes"

	gateway "github.com/aipipe/gateway/internal"
)

var dataPrefix = []byte("data: ")
var doneSentinel = []byte("[DONE]")

// Splitter scans a byte stream for SSE `data:` frames without
// buffering the stream itself. Feed it each chunk as it arrives via
// Observe; it never reorders or withholds bytes -- the caller is
// responsible for forwarding the original chunk to the client.
type Splitter struct {
	adapter gateway.Adapter
	buf     []byte // partial line carried across chunks
	model   string
	usage   *gateway.Usage
}

// New creates a Splitter that parses frames with adapter's Parse.
func New(adapter gateway.Adapter) *Splitter {
	return &Splitter{adapter: adapter}
}

// Observe scans chunk for complete lines, latching the first non-empty
// model and the first non-nil usage seen across the whole stream.
// Observe never returns an error: malformed or partial frames are
// silently skipped.
func (s *Splitter) Observe(chunk []byte) {
	s.buf = append(s.buf, chunk...)

	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(s.buf[:i], []byte{'\r'})
		s.buf = s.buf[i+1:]
		s.consumeLine(line)
	}
}

func (s *Splitter) consumeLine(line []byte) {
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := line[len(dataPrefix):]
	if bytes.Equal(payload, doneSentinel) {
		return
	}

	model, usage := s.adapter.Parse(payload)
	if model != "" && s.model == "" {
		s.model = model
	}
	if usage != nil && s.usage == nil {
		s.usage = usage
	}
}

// Result returns the latched model/usage pair at stream end. Either
// may be zero-valued if the stream never carried it; callers must
// treat a nil Usage as zero cost.
func (s *Splitter) Result() (model string, usage *gateway.Usage) {
	return s.model, s.usage
}
