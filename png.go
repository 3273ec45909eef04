package apng

import (
	"errors"

	"github.com/deepteams/apng/internal/chunk"
	"github.com/deepteams/apng/internal/zstream"
)

// MaxDimension is the maximum allowed width or height in pixels. The PNG
// format stores dimensions as 31-bit values so that readers using signed
// 32-bit arithmetic cannot overflow.
const MaxDimension = 1<<31 - 1

// Errors returned by the encoder.
var (
	// ErrConfig reports an invalid color-mode/depth/dimension combination or
	// other rejected encoder configuration.
	ErrConfig = errors.New("apng: invalid encoder configuration")

	// ErrScanlineSize reports pixel data whose byte length does not match
	// the declared geometry.
	ErrScanlineSize = errors.New("apng: scanline size mismatch")

	// ErrIncompleteImage reports a finish call while a partial scanline or
	// frame is still pending.
	ErrIncompleteImage = errors.New("apng: incomplete image data")

	// ErrFrameCountExceeded reports a frame submitted beyond the declared
	// animation frame count.
	ErrFrameCountExceeded = errors.New("apng: frame count exceeded")

	// ErrFrameSequence reports any other violation of the frame protocol,
	// such as finishing an animation before all declared frames are written.
	ErrFrameSequence = errors.New("apng: frame sequence violation")

	// ErrUnencodableText reports a text value not representable in the
	// requested metadata variant.
	ErrUnencodableText = errors.New("apng: text not encodable in requested variant")
)

// Errors surfaced from the chunk and compression layers, re-exported so
// callers can match them with errors.Is without importing internal packages.
var (
	// ErrChunkTooLarge reports a chunk payload exceeding the format's
	// 2^31-1 byte limit.
	ErrChunkTooLarge = chunk.ErrChunkTooLarge

	// ErrCompression reports internal compressor misuse.
	ErrCompression = zstream.ErrCompression
)

// SinkError wraps a failure of the underlying byte sink. It is propagated
// unmodified and never retried; use errors.As to recover the sink's error.
type SinkError = chunk.SinkError

// ColorType is the image color mode, with values as stored in the IHDR chunk.
type ColorType uint8

const (
	ColorGrayscale      ColorType = 0
	ColorRGB            ColorType = 2
	ColorIndexed        ColorType = 3
	ColorGrayscaleAlpha ColorType = 4
	ColorRGBA           ColorType = 6
)

// String returns the color mode name.
func (c ColorType) String() string {
	switch c {
	case ColorGrayscale:
		return "grayscale"
	case ColorRGB:
		return "rgb"
	case ColorIndexed:
		return "indexed"
	case ColorGrayscaleAlpha:
		return "grayscale+alpha"
	case ColorRGBA:
		return "rgba"
	}
	return "invalid"
}

// channels returns the number of samples per pixel, or 0 for an invalid mode.
func (c ColorType) channels() int {
	switch c {
	case ColorGrayscale, ColorIndexed:
		return 1
	case ColorGrayscaleAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	}
	return 0
}

// allowsDepth reports whether d is a legal bit depth for the color mode.
func (c ColorType) allowsDepth(d BitDepth) bool {
	switch c {
	case ColorGrayscale:
		return d == 1 || d == 2 || d == 4 || d == 8 || d == 16
	case ColorIndexed:
		return d == 1 || d == 2 || d == 4 || d == 8
	case ColorRGB, ColorGrayscaleAlpha, ColorRGBA:
		return d == 8 || d == 16
	}
	return false
}

// BitDepth is the number of bits per sample.
type BitDepth uint8

const (
	Depth1  BitDepth = 1
	Depth2  BitDepth = 2
	Depth4  BitDepth = 4
	Depth8  BitDepth = 8
	Depth16 BitDepth = 16
)

// CompressionLevel tells the compressor how to trade CPU time for ratio.
type CompressionLevel int

const (
	// DefaultCompression is the balanced speed/ratio trade-off.
	DefaultCompression CompressionLevel = 0
	// NoCompression stores scanlines without deflate matching.
	NoCompression CompressionLevel = -1
	// BestSpeed favors throughput over ratio.
	BestSpeed CompressionLevel = -2
	// BestCompression favors ratio over throughput.
	BestCompression CompressionLevel = -3
)

// zlevel maps the public level onto the compression layer's level, which
// uses the same value assignments.
func (l CompressionLevel) zlevel() zstream.Level {
	return zstream.Level(l)
}

// Filter selects the scanline predictor policy.
type Filter int

const (
	// FilterAdaptive scores all five predictors per row and picks the one
	// minimizing total variation. This is the default.
	FilterAdaptive Filter = iota

	// The remaining values pin a single predictor for the whole image,
	// trading compression ratio for speed.
	FilterNone
	FilterSub
	FilterUp
	FilterAverage
	FilterPaeth
)

// DisposeOp specifies how a frame's canvas region is treated after the
// frame's display time elapses, before the next frame renders. It is
// recorded per frame for the downstream renderer; the encoder performs no
// compositing itself.
type DisposeOp uint8

const (
	// DisposeNone leaves the canvas as-is.
	DisposeNone DisposeOp = 0
	// DisposeBackground clears the frame's region to fully transparent.
	DisposeBackground DisposeOp = 1
	// DisposePrevious reverts the frame's region to its prior contents.
	DisposePrevious DisposeOp = 2
)

// BlendOp specifies how a frame's pixels are written onto the canvas.
type BlendOp uint8

const (
	// BlendSource replaces the canvas region with the frame's pixels.
	BlendSource BlendOp = 0
	// BlendOver alpha-composites the frame over the existing canvas.
	BlendOver BlendOp = 1
)

// rowBytes returns the raw byte length of one scanline (without the filter
// tag byte) for the given width, color mode, and depth. Sub-byte depths pack
// samples MSB-first and pad the final byte.
func rowBytes(width int, c ColorType, d BitDepth) int {
	return (width*c.channels()*int(d) + 7) / 8
}

// bytesPerPixel returns the filter "left neighbor" distance: the byte count
// of one complete pixel, with a minimum of 1 for sub-byte depths.
func bytesPerPixel(c ColorType, d BitDepth) int {
	bpp := c.channels() * int(d) / 8
	if bpp < 1 {
		bpp = 1
	}
	return bpp
}
