// Package zstream wraps a zlib deflate stream with incremental
// feed/flush/finish semantics and a selectable effort level.
//
// The underlying engine is github.com/klauspost/compress/zlib. No single
// Write is guaranteed to be reflected immediately in output: the engine
// buffers freely for ratio, and only Flush and Close force bytes out.
package zstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// ErrCompression reports compressor misuse: writing or finishing an already
// finished stream, or constructing one with an invalid effort level.
var ErrCompression = errors.New("zstream: compressor misuse")

// Level selects the deflate effort, trading CPU for ratio.
type Level int

const (
	// Default is the balanced speed/ratio trade-off.
	Default Level = 0
	// NoCompression stores bytes without deflate matching.
	NoCompression Level = -1
	// Fast favors throughput over ratio.
	Fast Level = -2
	// Best favors ratio over throughput.
	Best Level = -3
)

// flate maps a Level to the engine's numeric compression level.
func (l Level) flate() (int, error) {
	switch l {
	case Default:
		return flate.DefaultCompression, nil
	case NoCompression:
		return flate.NoCompression, nil
	case Fast:
		return flate.BestSpeed, nil
	case Best:
		return flate.BestCompression, nil
	}
	return 0, fmt.Errorf("%w: invalid effort level %d", ErrCompression, l)
}

// Stream is one zlib stream in progress. It accepts bytes incrementally and
// emits compressed output to the sink opportunistically; Close flushes all
// buffered input and writes the end-of-stream marker plus the Adler-32
// trailer. A Stream is not safe for concurrent use.
type Stream struct {
	zw     *zlib.Writer
	closed bool
}

// New returns a Stream compressing to w at the given effort level.
func New(w io.Writer, level Level) (*Stream, error) {
	fl, err := level.flate()
	if err != nil {
		return nil, err
	}
	zw, err := zlib.NewWriterLevel(w, fl)
	if err != nil {
		// Levels are validated above, so this only fires if the engine's
		// accepted range ever diverges.
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	return &Stream{zw: zw}, nil
}

// Write feeds raw bytes into the stream.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: write after finish", ErrCompression)
	}
	return s.zw.Write(p)
}

// Flush forces all pending input through the engine and emits an aligned
// sync marker, so every byte fed so far is represented in the output. It
// costs a few bytes of ratio and is never required for correctness.
func (s *Stream) Flush() error {
	if s.closed {
		return fmt.Errorf("%w: flush after finish", ErrCompression)
	}
	return s.zw.Flush()
}

// Close finishes the stream: all buffered input is compressed and the final
// end-of-stream marker and checksum are written to the sink. Further Write,
// Flush, or Close calls fail with ErrCompression.
func (s *Stream) Close() error {
	if s.closed {
		return fmt.Errorf("%w: finish after finish", ErrCompression)
	}
	s.closed = true
	return s.zw.Close()
}
