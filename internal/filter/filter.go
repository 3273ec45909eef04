// Package filter implements the five PNG scanline predictors and adaptive
// per-row filter selection.
//
// A predictor is a reversible byte-wise transform that subtracts a
// prediction derived from neighboring raw bytes (left, up, upper-left) from
// each byte of a scanline, so the residual compresses better. Every filtered
// row is prefixed with a one-byte tag naming the predictor; Reconstruct
// inverts the transform given the same neighbors.
package filter

import "fmt"

// Type identifies one of the five PNG scanline predictors.
type Type byte

const (
	None Type = iota
	Sub
	Up
	Average
	Paeth

	// NumTypes is the number of predictors.
	NumTypes = 5
)

// String returns the predictor name.
func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Sub:
		return "Sub"
	case Up:
		return "Up"
	case Average:
		return "Average"
	case Paeth:
		return "Paeth"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// PaethPredictor returns the Paeth prediction for left neighbor a, up
// neighbor b, and upper-left neighbor c: whichever of the three is closest
// to a+b-c, with ties broken in the order a, b, c.
func PaethPredictor(a, b, c byte) byte {
	pa := int(b) - int(c)
	pb := int(a) - int(c)
	pc := abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// abs8 is the absolute value of a byte interpreted as a signed int8. It is
// the per-byte cost used by the adaptive selection heuristic: minimizing the
// sum of these over a row minimizes the row's total variation.
func abs8(d byte) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

// Apply computes the predictor transform of cur into dst. prev is the
// previous row's unfiltered bytes and must be all zeros for the first row.
// bpp is the number of bytes per complete pixel (minimum 1), which is the
// distance to the "left" neighbor. dst, cur, and prev must all have the same
// length; dst must not alias cur or prev.
func Apply(t Type, dst, cur, prev []byte, bpp int) {
	n := len(cur)
	switch t {
	case None:
		copy(dst, cur)
	case Sub:
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cur[i]
		}
		for i := bpp; i < n; i++ {
			dst[i] = cur[i] - cur[i-bpp]
		}
	case Up:
		for i := 0; i < n; i++ {
			dst[i] = cur[i] - prev[i]
		}
	case Average:
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cur[i] - prev[i]/2
		}
		for i := bpp; i < n; i++ {
			dst[i] = cur[i] - byte((int(cur[i-bpp])+int(prev[i]))/2)
		}
	case Paeth:
		// For the first bpp bytes the left and upper-left neighbors are
		// zero, and PaethPredictor(0, b, 0) is b.
		for i := 0; i < bpp && i < n; i++ {
			dst[i] = cur[i] - prev[i]
		}
		for i := bpp; i < n; i++ {
			dst[i] = cur[i] - PaethPredictor(cur[i-bpp], prev[i], prev[i-bpp])
		}
	}
}

// Select tries all five predictors on cur, scores each output by the sum of
// absolute signed-byte residuals, and returns the lowest-scoring predictor.
// Ties are broken by predictor priority order None, Sub, Up, Average, Paeth.
//
// scratch provides one output buffer per predictor, each len(cur) bytes; on
// return scratch[t] for the returned t holds the complete filtered row.
// Buffers of losing predictors may be left partially written: scoring a
// candidate aborts as soon as its running sum reaches the current best.
//
// The choice is fully deterministic: the same cur/prev/bpp always yields the
// same predictor and the same filtered bytes.
func Select(scratch *[NumTypes][]byte, cur, prev []byte, bpp int) Type {
	n := len(cur)

	// None: residual is the raw row.
	copy(scratch[None], cur)
	best := 0
	for i := 0; i < n; i++ {
		best += abs8(cur[i])
	}
	choice := None

	// Sub.
	sum := 0
	out := scratch[Sub]
	for i := 0; i < bpp && i < n; i++ {
		out[i] = cur[i]
		sum += abs8(out[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		out[i] = cur[i] - cur[i-bpp]
		sum += abs8(out[i])
	}
	if sum < best {
		best = sum
		choice = Sub
	}

	// Up.
	sum = 0
	out = scratch[Up]
	for i := 0; i < n && sum < best; i++ {
		out[i] = cur[i] - prev[i]
		sum += abs8(out[i])
	}
	if sum < best {
		best = sum
		choice = Up
	}

	// Average.
	sum = 0
	out = scratch[Average]
	for i := 0; i < bpp && i < n; i++ {
		out[i] = cur[i] - prev[i]/2
		sum += abs8(out[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		out[i] = cur[i] - byte((int(cur[i-bpp])+int(prev[i]))/2)
		sum += abs8(out[i])
	}
	if sum < best {
		best = sum
		choice = Average
	}

	// Paeth.
	sum = 0
	out = scratch[Paeth]
	for i := 0; i < bpp && i < n; i++ {
		out[i] = cur[i] - prev[i]
		sum += abs8(out[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		out[i] = cur[i] - PaethPredictor(cur[i-bpp], prev[i], prev[i-bpp])
		sum += abs8(out[i])
	}
	if sum < best {
		choice = Paeth
	}

	return choice
}

// Reconstruct inverts the predictor transform in place: row holds the
// filtered bytes on entry and the raw bytes on return. prev is the previous
// row's already-reconstructed raw bytes (all zeros for the first row).
func Reconstruct(t Type, row, prev []byte, bpp int) error {
	n := len(row)
	switch t {
	case None:
		// Nothing to do.
	case Sub:
		for i := bpp; i < n; i++ {
			row[i] += row[i-bpp]
		}
	case Up:
		for i := 0; i < n; i++ {
			row[i] += prev[i]
		}
	case Average:
		for i := 0; i < bpp && i < n; i++ {
			row[i] += prev[i] / 2
		}
		for i := bpp; i < n; i++ {
			row[i] += byte((int(row[i-bpp]) + int(prev[i])) / 2)
		}
	case Paeth:
		for i := 0; i < bpp && i < n; i++ {
			row[i] += prev[i]
		}
		for i := bpp; i < n; i++ {
			row[i] += PaethPredictor(row[i-bpp], prev[i], prev[i-bpp])
		}
	default:
		return fmt.Errorf("filter: unknown predictor tag %d", byte(t))
	}
	return nil
}
