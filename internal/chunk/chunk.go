package chunk

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

var (
	ErrChunkTooLarge = errors.New("chunk: payload exceeds 2^31-1 byte chunk limit")
)

// SinkError wraps a failure of the underlying byte sink. It is propagated,
// never retried; the encode session that hit it is terminal.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return "chunk: sink write failed: " + e.Err.Error()
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Writer frames typed payloads into PNG chunks on an underlying byte sink.
// It is stateless apart from the sink itself: each WriteChunk call emits one
// complete, self-contained record.
type Writer struct {
	w   io.Writer
	hdr [HeaderSize]byte
	ftr [CRCSize]byte
}

// NewWriter returns a chunk writer emitting to w. The sink is exclusively
// owned by this writer for the encode session's lifetime.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteSignature writes the 8-byte PNG magic signature.
func (cw *Writer) WriteSignature() error {
	return cw.sink([]byte(Signature))
}

// WriteChunk emits one chunk: big-endian payload length, the type tag, the
// payload verbatim, and a CRC-32 over tag + payload. Payloads larger than
// MaxPayload fail with ErrChunkTooLarge before anything is written.
func (cw *Writer) WriteChunk(typ Type, payload []byte) error {
	if err := checkPayload(int64(len(payload))); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(cw.hdr[:4], uint32(len(payload)))
	copy(cw.hdr[4:], typ[:])

	crc := crc32.NewIEEE()
	crc.Write(cw.hdr[4:])
	crc.Write(payload)
	binary.BigEndian.PutUint32(cw.ftr[:], crc.Sum32())

	if err := cw.sink(cw.hdr[:]); err != nil {
		return err
	}
	if err := cw.sink(payload); err != nil {
		return err
	}
	return cw.sink(cw.ftr[:])
}

// checkPayload reports whether a payload of n bytes fits the format's
// 31-bit chunk length field.
func checkPayload(n int64) error {
	if n > MaxPayload {
		return ErrChunkTooLarge
	}
	return nil
}

// sink writes b to the underlying writer, wrapping failures in SinkError.
func (cw *Writer) sink(b []byte) error {
	if _, err := cw.w.Write(b); err != nil {
		return &SinkError{Err: err}
	}
	return nil
}
