package apng

import (
	"fmt"

	"github.com/deepteams/apng/internal/pool"
)

// StreamWriter adapts the Writer's strict row interface to io.WriteCloser:
// it accepts pixel bytes in pieces of any size and re-chunks them into exact
// scanlines. Pushes may span row and frame boundaries freely; frames begin
// and finish automatically as their rows complete.
//
// A partial row is carried over between pushes. Finish (or Close) with a
// dangling partial row fails with ErrIncompleteImage and terminates the
// session.
type StreamWriter struct {
	w      *Writer
	carry  []byte // partial-row carry-over, sized to the current row
	n      int    // carried bytes
	closed bool
}

// StreamWriter returns an incremental writer over the remaining pixel data
// of the image, spanning all remaining frames.
func (w *Writer) StreamWriter() (*StreamWriter, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &StreamWriter{w: w}, nil
}

// Write consumes len(p) pixel bytes. Full rows pass through to the encoder
// directly; a trailing partial row is buffered for the next push.
func (sw *StreamWriter) Write(p []byte) (int, error) {
	if sw.closed {
		return 0, fmt.Errorf("%w: write after close", ErrFrameSequence)
	}
	total := 0
	for len(p) > 0 {
		rowSize := sw.w.currentRowSize()
		if sw.n == 0 && len(p) >= rowSize {
			// Whole row available in place, no copy needed.
			if err := sw.w.writeRow(p[:rowSize]); err != nil {
				return total, err
			}
			p = p[rowSize:]
			total += rowSize
			continue
		}
		carry := sw.carryBuf(rowSize)
		take := rowSize - sw.n
		if take > len(p) {
			take = len(p)
		}
		copy(carry[sw.n:], p[:take])
		sw.n += take
		p = p[take:]
		total += take
		if sw.n == rowSize {
			sw.n = 0
			if err := sw.w.writeRow(carry); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// carryBuf returns the carry-over buffer sized for the current row. Row size
// only changes at frame boundaries, where the carry is necessarily empty.
func (sw *StreamWriter) carryBuf(rowSize int) []byte {
	if len(sw.carry) != rowSize {
		if sw.carry != nil {
			pool.Put(sw.carry)
		}
		sw.carry = pool.Get(rowSize)
	}
	return sw.carry
}

// Finish completes the session: it rejects a dangling partial row, validates
// that every declared frame was written, and emits the trailer record.
func (sw *StreamWriter) Finish() error {
	if sw.closed {
		return fmt.Errorf("%w: already closed", ErrFrameSequence)
	}
	sw.closed = true
	if sw.carry != nil {
		pool.Put(sw.carry)
		sw.carry = nil
	}
	if sw.n != 0 {
		err := fmt.Errorf("%w: %d bytes of a partial scanline pending", ErrIncompleteImage, sw.n)
		if sw.w.err == nil {
			sw.w.err = err
		}
		return err
	}
	return sw.w.Finish()
}

// Close implements io.Closer as an alias for Finish.
func (sw *StreamWriter) Close() error { return sw.Finish() }
