package pool

import "testing"

func TestGetReturnsZeroedExactLength(t *testing.T) {
	for _, size := range []int{1, 100, Size1K, Size1K + 1, Size64K, Size512K + 1} {
		b := Get(size)
		if len(b) != size {
			t.Errorf("Get(%d) returned %d bytes", size, len(b))
		}
		for i, v := range b {
			if v != 0 {
				t.Errorf("Get(%d): byte %d = %d, want 0", size, i, v)
				break
			}
		}
		Put(b)
	}
}

func TestGetZeroesRecycledBuffer(t *testing.T) {
	b := Get(100)
	for i := range b {
		b[i] = 0xFF
	}
	Put(b)

	// Whether or not the same buffer comes back, it must read as zeros.
	b = Get(200)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("recycled buffer byte %d = %d, want 0", i, v)
		}
	}
	Put(b)
}

func TestPutForeignBuffer(t *testing.T) {
	// Buffers whose capacity matches no size class are silently dropped.
	Put(make([]byte, 33))
	b := Get(33)
	if len(b) != 33 {
		t.Errorf("Get after foreign Put returned %d bytes", len(b))
	}
	Put(b)
}
