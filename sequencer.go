package apng

import (
	"encoding/binary"
	"fmt"

	"github.com/deepteams/apng/internal/chunk"
)

// sequencerState tracks the animation protocol. Transitions are validated
// before any mutation, so a failed call leaves the sequencer unchanged.
type sequencerState uint8

const (
	// stateIdle: no animation declared; the session encodes one still image.
	stateIdle sequencerState = iota
	// stateDeclared: acTL emitted, no frame started yet.
	stateDeclared
	// stateEmitting: at least one frame control record emitted.
	stateEmitting
	// stateFinalized: all declared frames written; only IEND may follow.
	stateFinalized
)

// frameControl carries one frame's geometry, timing, and operators. For a
// still image only width/height are meaningful.
type frameControl struct {
	width, height      uint32
	xOffset, yOffset   uint32
	delayNum, delayDen uint16
	dispose            DisposeOp
	blend              BlendOp
}

// frameSequencer partitions the stream of submitted frames into container
// records: it emits fcTL records, assigns the single interleaved sequence
// counter shared by fcTL and fdAT records, and decides whether a frame's
// pixel data travels as IDAT (the default image) or as fdAT.
//
// Frame data is consumed and discarded as it is encoded; the sequencer holds
// counters only, never pixel data.
type frameSequencer struct {
	state       sequencerState
	total       uint32 // declared animation frames
	written     uint32 // animation frames fully emitted
	sepDefault  bool   // the first image is a default-image-only IDAT, outside the animation
	defaultDone bool   // separate default image fully emitted
	stillDone   bool   // still image fully emitted (stateIdle sessions)
	nextSeq     uint32
	canvasW     uint32
	canvasH     uint32
}

// declare records the animation frame count. The acTL record itself is
// written with the header. A zero frame count is rejected.
func (s *frameSequencer) declare(numFrames uint32) error {
	if numFrames == 0 {
		return fmt.Errorf("%w: animation declared with zero frames", ErrConfig)
	}
	if s.state != stateIdle {
		return fmt.Errorf("%w: animation already declared", ErrFrameSequence)
	}
	s.state = stateDeclared
	s.total = numFrames
	return nil
}

// begin starts the next frame: it validates geometry and protocol state,
// emits the fcTL record when the frame is part of the animation, and
// reports whether the frame's data records need the fdAT sequence prefix.
func (s *frameSequencer) begin(cw *chunk.Writer, fc frameControl) (useFdat bool, err error) {
	if err := s.checkGeometry(fc); err != nil {
		return false, err
	}

	switch s.state {
	case stateIdle:
		// Still image: exactly one data stream, no control records, full
		// canvas coverage.
		if s.stillDone {
			return false, fmt.Errorf("%w: image data already written", ErrFrameSequence)
		}
		if fc.width != s.canvasW || fc.height != s.canvasH || fc.xOffset != 0 || fc.yOffset != 0 {
			return false, fmt.Errorf("%w: still image must cover the full %dx%d canvas",
				ErrConfig, s.canvasW, s.canvasH)
		}
		return false, nil

	case stateFinalized:
		return false, fmt.Errorf("%w: animation already finalized", ErrFrameSequence)

	case stateDeclared, stateEmitting:
		if s.sepDefault && !s.defaultDone {
			// The standalone default image precedes the animation and
			// carries neither an fcTL record nor sequence numbers. It must
			// cover the full canvas.
			if fc.width != s.canvasW || fc.height != s.canvasH || fc.xOffset != 0 || fc.yOffset != 0 {
				return false, fmt.Errorf("%w: default image must cover the full %dx%d canvas",
					ErrConfig, s.canvasW, s.canvasH)
			}
			return false, nil
		}
		if s.written >= s.total {
			return false, fmt.Errorf("%w: declared %d frames, frame %d submitted",
				ErrFrameCountExceeded, s.total, s.written+1)
		}

		first := s.written == 0 && !s.sepDefault
		if first {
			// The first frame doubles as the default image and must cover
			// the full canvas per the APNG specification.
			if fc.width != s.canvasW || fc.height != s.canvasH || fc.xOffset != 0 || fc.yOffset != 0 {
				return false, fmt.Errorf("%w: first frame is the default image and must cover the full %dx%d canvas",
					ErrConfig, s.canvasW, s.canvasH)
			}
		}
		if err := s.writeFrameControl(cw, fc); err != nil {
			return false, err
		}
		s.state = stateEmitting
		// The default image's data reuses the plain IDAT record type and
		// carries no sequence prefix; every other frame's data is fdAT.
		return !first, nil
	}
	return false, fmt.Errorf("%w: invalid sequencer state %d", ErrFrameSequence, s.state)
}

// checkGeometry validates a frame rectangle against the canvas. The sums are
// widened so offsets near 2^32 cannot wrap past the bounds check.
func (s *frameSequencer) checkGeometry(fc frameControl) error {
	if fc.width == 0 || fc.height == 0 {
		return fmt.Errorf("%w: frame dimensions %dx%d must be positive", ErrConfig, fc.width, fc.height)
	}
	if uint64(fc.xOffset)+uint64(fc.width) > uint64(s.canvasW) ||
		uint64(fc.yOffset)+uint64(fc.height) > uint64(s.canvasH) {
		return fmt.Errorf("%w: frame %dx%d at (%d,%d) exceeds %dx%d canvas",
			ErrConfig, fc.width, fc.height, fc.xOffset, fc.yOffset, s.canvasW, s.canvasH)
	}
	return nil
}

// writeFrameControl emits one fcTL record, consuming a sequence number.
func (s *frameSequencer) writeFrameControl(cw *chunk.Writer, fc frameControl) error {
	var buf [chunk.FCTLSize]byte
	binary.BigEndian.PutUint32(buf[0:4], s.nextSequence())
	binary.BigEndian.PutUint32(buf[4:8], fc.width)
	binary.BigEndian.PutUint32(buf[8:12], fc.height)
	binary.BigEndian.PutUint32(buf[12:16], fc.xOffset)
	binary.BigEndian.PutUint32(buf[16:20], fc.yOffset)
	binary.BigEndian.PutUint16(buf[20:22], fc.delayNum)
	binary.BigEndian.PutUint16(buf[22:24], fc.delayDen)
	buf[24] = byte(fc.dispose)
	buf[25] = byte(fc.blend)
	return cw.WriteChunk(chunk.TypeFCTL, buf[:])
}

// nextSequence consumes the next sequence number. The counter is shared
// across fcTL and fdAT records: strictly increasing, no gaps, no duplicates.
func (s *frameSequencer) nextSequence() uint32 {
	n := s.nextSeq
	s.nextSeq++
	return n
}

// frameDone records that the current frame's data stream is complete.
func (s *frameSequencer) frameDone() {
	switch {
	case s.state == stateIdle:
		s.stillDone = true
	case s.sepDefault && !s.defaultDone:
		s.defaultDone = true
	default:
		s.written++
	}
}

// finalize validates that the session emitted everything it declared. On
// success the sequencer accepts no further frames.
func (s *frameSequencer) finalize() error {
	switch s.state {
	case stateIdle:
		if !s.stillDone {
			return fmt.Errorf("%w: no image data written", ErrIncompleteImage)
		}
	case stateDeclared, stateEmitting:
		if s.written < s.total {
			return fmt.Errorf("%w: declared %d frames, only %d written",
				ErrFrameSequence, s.total, s.written)
		}
	case stateFinalized:
		return fmt.Errorf("%w: already finalized", ErrFrameSequence)
	}
	s.state = stateFinalized
	return nil
}
