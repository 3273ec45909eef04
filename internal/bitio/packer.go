// Package bitio provides MSB-first bit packing for sub-byte PNG samples.
//
// PNG packs pixels of bit depth 1, 2, and 4 into bytes starting at the high
// bit, and pads the final byte of each scanline with zero bits. Rows never
// share bytes, so the packer is reset (or flushed) at every row boundary.
package bitio

// Packer writes fixed-width sample values MSB-first into a byte slice.
type Packer struct {
	dst  []byte
	pos  int
	bit  uint // bits already used in dst[pos], 0..7
}

// NewPacker returns a Packer writing into dst starting at its first byte.
// dst must be zero-filled over the range the packer will touch.
func NewPacker(dst []byte) *Packer {
	return &Packer{dst: dst}
}

// WriteBits appends the low n bits of v, most significant bit first.
// n must be 1..8 and v must fit in n bits.
func (p *Packer) WriteBits(v uint8, n uint) {
	for n > 0 {
		free := 8 - p.bit
		if n <= free {
			p.dst[p.pos] |= v << (free - n)
			p.bit += n
			if p.bit == 8 {
				p.pos++
				p.bit = 0
			}
			return
		}
		// Split across the byte boundary.
		p.dst[p.pos] |= v >> (n - free)
		v &= 1<<(n-free) - 1
		n -= free
		p.pos++
		p.bit = 0
	}
}

// FlushByte pads the current byte with zero bits and advances to the next
// byte boundary. A no-op when already aligned.
func (p *Packer) FlushByte() {
	if p.bit != 0 {
		p.pos++
		p.bit = 0
	}
}

// Len returns the number of complete bytes written so far.
func (p *Packer) Len() int {
	return p.pos
}
