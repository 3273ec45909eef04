// Package pool provides bucketed sync.Pool byte buffers for the encoder's
// hot paths: scanline scratch rows and IDAT/fdAT staging buffers. Buffers
// are organized by size class to minimize waste across encode sessions.
package pool

import "sync"

// Size classes. Rows of common image widths land in the small classes;
// the chunk staging buffer uses Size64K.
const (
	Size1K   = 1 << 10
	Size8K   = 1 << 13
	Size64K  = 1 << 16
	Size512K = 1 << 19
)

var sizes = [4]int{Size1K, Size8K, Size64K, Size512K}

var pools [4]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// bucketIndex returns the smallest pool class holding size bytes, or -1 if
// the size exceeds all classes.
func bucketIndex(size int) int {
	for i, sz := range sizes {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Get returns a zero-filled byte slice of exactly the requested length.
// Oversized requests are allocated directly and will not be pooled.
// The caller should call Put when done.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := (*bp)[:size]
	clear(b)
	return b
}

// Put returns a slice obtained from Get to its pool. Slices whose capacity
// does not match a size class are dropped.
func Put(b []byte) {
	c := cap(b)
	for i, sz := range sizes {
		if c == sz {
			b = b[:c]
			pools[i].Put(&b)
			return
		}
	}
}
