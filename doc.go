// Package apng provides a pure Go streaming encoder for the PNG and APNG
// (animated PNG) image formats.
//
// The encoder is incremental: pixel data can be pushed in arbitrary-sized
// pieces and is compressed scanline by scanline, so a whole image never has
// to be resident in memory. The package implements adaptive per-scanline
// filter selection, all five PNG predictors, selectable compression effort,
// textual metadata (tEXt/zTXt/iTXt), and the full APNG frame protocol
// (acTL/fcTL/fdAT with dispose/blend operators and default-image handling).
//
// The package supports:
//   - Grayscale, grayscale+alpha, indexed, RGB, and RGBA color modes
//   - Bit depths 1/2/4/8/16 (as permitted per color mode)
//   - Palette (PLTE) and transparency (tRNS) chunks
//   - Animated output with per-frame geometry, timing, dispose, and blend
//   - Streaming writes with exact scanline re-chunking
//
// Basic usage for a still image:
//
//	enc := apng.NewEncoder(w, 256, 256)
//	enc.SetColor(apng.ColorRGB)
//	wr, err := enc.WriteHeader()
//	err = wr.WriteImageData(pixels)
//	err = wr.Finish()
//
// Basic usage for an image.Image:
//
//	err := apng.Encode(w, img, nil)
package apng
