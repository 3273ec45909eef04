// Package chunk implements the PNG chunk layer: typed, length-prefixed,
// CRC-checksummed records, plus a parser for reading them back.
//
// A chunk is 4 bytes big-endian payload length, a 4-byte ASCII type tag,
// the payload, and a 4-byte CRC-32 (IEEE) computed over tag + payload.
package chunk

// Signature is the 8-byte magic sequence at the start of every PNG stream.
const Signature = "\x89PNG\r\n\x1a\n"

// Type is a 4-byte ASCII PNG chunk type tag.
type Type [4]byte

// String returns the tag as a 4-character string.
func (t Type) String() string {
	return string(t[:])
}

// Chunk type tags used by the encoder.
var (
	TypeIHDR = Type{'I', 'H', 'D', 'R'}
	TypePLTE = Type{'P', 'L', 'T', 'E'}
	TypeTRNS = Type{'t', 'R', 'N', 'S'}
	TypeIDAT = Type{'I', 'D', 'A', 'T'}
	TypeIEND = Type{'I', 'E', 'N', 'D'}
	TypeACTL = Type{'a', 'c', 'T', 'L'}
	TypeFCTL = Type{'f', 'c', 'T', 'L'}
	TypeFDAT = Type{'f', 'd', 'A', 'T'}
	TypeTEXT = Type{'t', 'E', 'X', 't'}
	TypeZTXT = Type{'z', 'T', 'X', 't'}
	TypeITXT = Type{'i', 'T', 'X', 't'}
)

// Structure sizes.
const (
	TagSize    = 4  // size of a chunk type tag
	LengthSize = 4  // size of the payload length field
	CRCSize    = 4  // size of the CRC field
	HeaderSize = 8  // length + tag
	Overhead   = 12 // length + tag + CRC
	IHDRSize   = 13 // IHDR payload size
	ACTLSize   = 8  // acTL payload size
	FCTLSize   = 26 // fcTL payload size
	SeqNumSize = 4  // fdAT sequence-number prefix size
)

// MaxPayload is the largest legal chunk payload. The PNG specification caps
// chunk lengths at 2^31-1 so that readers using signed 32-bit arithmetic
// cannot overflow.
const MaxPayload = 1<<31 - 1
