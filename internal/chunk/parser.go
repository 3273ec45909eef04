package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

var (
	ErrBadSignature = errors.New("chunk: missing or corrupt PNG signature")
	ErrTruncated    = errors.New("chunk: truncated chunk stream")
	ErrBadCRC       = errors.New("chunk: CRC mismatch")
)

// Raw is a single parsed chunk. Data is a sub-slice of the original input
// (zero-copy).
type Raw struct {
	Type Type
	Data []byte
}

// Parse splits a complete PNG byte stream into its chunks, verifying the
// signature and every chunk's CRC. It performs a single pass and stops at
// the IEND chunk (trailing bytes after IEND are ignored).
func Parse(data []byte) ([]Raw, error) {
	if len(data) < len(Signature) || string(data[:len(Signature)]) != Signature {
		return nil, ErrBadSignature
	}
	buf := data[len(Signature):]

	var chunks []Raw
	for len(buf) > 0 {
		if len(buf) < Overhead {
			return nil, fmt.Errorf("%w: %d bytes left, need at least %d", ErrTruncated, len(buf), Overhead)
		}
		length := binary.BigEndian.Uint32(buf[:4])
		if length > MaxPayload {
			return nil, ErrChunkTooLarge
		}
		end := HeaderSize + int(length)
		if end+CRCSize > len(buf) {
			return nil, fmt.Errorf("%w: chunk %s declares %d payload bytes, only %d available",
				ErrTruncated, string(buf[4:8]), length, len(buf)-HeaderSize-CRCSize)
		}

		var typ Type
		copy(typ[:], buf[4:8])
		payload := buf[HeaderSize:end]

		want := binary.BigEndian.Uint32(buf[end : end+CRCSize])
		got := crc32.ChecksumIEEE(buf[4:end])
		if got != want {
			return nil, fmt.Errorf("%w: chunk %s: computed %08x, stored %08x", ErrBadCRC, typ, got, want)
		}

		chunks = append(chunks, Raw{Type: typ, Data: payload})
		buf = buf[end+CRCSize:]
		if typ == TypeIEND {
			break
		}
	}
	return chunks, nil
}

// Header holds the fields of a parsed IHDR chunk.
type Header struct {
	Width, Height uint32
	BitDepth      byte
	ColorType     byte
	Compression   byte
	FilterMethod  byte
	Interlace     byte
}

// ParseHeader decodes an IHDR payload.
func ParseHeader(payload []byte) (Header, error) {
	if len(payload) != IHDRSize {
		return Header{}, fmt.Errorf("chunk: IHDR payload is %d bytes, want %d", len(payload), IHDRSize)
	}
	return Header{
		Width:        binary.BigEndian.Uint32(payload[0:4]),
		Height:       binary.BigEndian.Uint32(payload[4:8]),
		BitDepth:     payload[8],
		ColorType:    payload[9],
		Compression:  payload[10],
		FilterMethod: payload[11],
		Interlace:    payload[12],
	}, nil
}

// AnimationControl holds the fields of a parsed acTL chunk.
type AnimationControl struct {
	NumFrames uint32
	NumPlays  uint32
}

// ParseAnimationControl decodes an acTL payload.
func ParseAnimationControl(payload []byte) (AnimationControl, error) {
	if len(payload) != ACTLSize {
		return AnimationControl{}, fmt.Errorf("chunk: acTL payload is %d bytes, want %d", len(payload), ACTLSize)
	}
	return AnimationControl{
		NumFrames: binary.BigEndian.Uint32(payload[0:4]),
		NumPlays:  binary.BigEndian.Uint32(payload[4:8]),
	}, nil
}

// FrameControl holds the fields of a parsed fcTL chunk.
type FrameControl struct {
	Sequence      uint32
	Width, Height uint32
	XOffset       uint32
	YOffset       uint32
	DelayNum      uint16
	DelayDen      uint16
	DisposeOp     byte
	BlendOp       byte
}

// ParseFrameControl decodes an fcTL payload.
func ParseFrameControl(payload []byte) (FrameControl, error) {
	if len(payload) != FCTLSize {
		return FrameControl{}, fmt.Errorf("chunk: fcTL payload is %d bytes, want %d", len(payload), FCTLSize)
	}
	return FrameControl{
		Sequence:  binary.BigEndian.Uint32(payload[0:4]),
		Width:     binary.BigEndian.Uint32(payload[4:8]),
		Height:    binary.BigEndian.Uint32(payload[8:12]),
		XOffset:   binary.BigEndian.Uint32(payload[12:16]),
		YOffset:   binary.BigEndian.Uint32(payload[16:20]),
		DelayNum:  binary.BigEndian.Uint16(payload[20:22]),
		DelayDen:  binary.BigEndian.Uint16(payload[22:24]),
		DisposeOp: payload[24],
		BlendOp:   payload[25],
	}, nil
}
