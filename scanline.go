package apng

import (
	"fmt"
	"io"

	"github.com/deepteams/apng/internal/filter"
	"github.com/deepteams/apng/internal/pool"
	"github.com/deepteams/apng/internal/zstream"
)

// scanlineEncoder filters and compresses the rows of one frame. It accepts
// rows strictly in top-to-bottom order, keeps the previous raw row for the
// vertical predictors, and feeds tag-prefixed filtered rows into one zlib
// stream per frame.
type scanlineEncoder struct {
	zs      *zstream.Stream
	rowSize int
	bpp     int
	mode    Filter

	prev    []byte // previous raw row, zero before the first row
	cur     []byte // current raw row copy, becomes prev after the write
	back    []byte // backing storage for the per-predictor scratch rows
	scratch [filter.NumTypes][]byte
	tag     [1]byte
}

func newScanlineEncoder(w io.Writer, rowSize, bpp int, level CompressionLevel, mode Filter) (*scanlineEncoder, error) {
	zs, err := zstream.New(w, level.zlevel())
	if err != nil {
		return nil, err
	}
	s := &scanlineEncoder{
		zs:      zs,
		rowSize: rowSize,
		bpp:     bpp,
		mode:    mode,
		prev:    pool.Get(rowSize),
		cur:     pool.Get(rowSize),
		back:    pool.Get(rowSize * filter.NumTypes),
	}
	for i := range s.scratch {
		s.scratch[i] = s.back[i*rowSize : (i+1)*rowSize]
	}
	return s, nil
}

// writeRow filters one raw scanline and feeds it, tag first, into the
// compression stream.
func (s *scanlineEncoder) writeRow(row []byte) error {
	if len(row) != s.rowSize {
		return fmt.Errorf("%w: got %d bytes, scanline is %d bytes",
			ErrScanlineSize, len(row), s.rowSize)
	}
	// Copy before filtering: the caller may reuse row, and this row becomes
	// prev for the next one.
	copy(s.cur, row)

	var t filter.Type
	if s.mode == FilterAdaptive {
		t = filter.Select(&s.scratch, s.cur, s.prev, s.bpp)
	} else {
		t = filter.Type(s.mode - FilterNone)
		filter.Apply(t, s.scratch[t], s.cur, s.prev, s.bpp)
	}

	s.tag[0] = byte(t)
	if _, err := s.zs.Write(s.tag[:]); err != nil {
		return err
	}
	if _, err := s.zs.Write(s.scratch[t]); err != nil {
		return err
	}
	s.prev, s.cur = s.cur, s.prev
	return nil
}

// finish closes the frame's compression stream, pushing all residual output
// to the sink, and releases the row buffers.
func (s *scanlineEncoder) finish() error {
	err := s.zs.Close()
	pool.Put(s.prev)
	pool.Put(s.cur)
	pool.Put(s.back)
	s.prev, s.cur, s.back = nil, nil, nil
	return err
}
