package apng

import (
	"bytes"
	"testing"

	"github.com/deepteams/apng/internal/chunk"
)

// addEncodedSeeds seeds the corpus with real encoder output across color
// modes and features.
func addEncodedSeeds(f *testing.F) {
	f.Helper()
	add := func(cfg func(*Encoder), width, height, size int) {
		var buf bytes.Buffer
		e := NewEncoder(&buf, width, height)
		cfg(e)
		w, err := e.WriteHeader()
		if err != nil {
			return
		}
		if err := w.WriteImageData(make([]byte, size)); err != nil {
			return
		}
		if err := w.Finish(); err != nil {
			return
		}
		f.Add(buf.Bytes())
	}

	add(func(e *Encoder) {}, 2, 2, 2*2*4)
	add(func(e *Encoder) { e.SetColor(ColorGrayscale) }, 3, 3, 9)
	add(func(e *Encoder) {
		e.SetColor(ColorIndexed)
		e.SetDepth(Depth4)
		e.SetPalette([]byte{0, 0, 0, 255, 255, 255})
		e.AddText("Title", "seed")
	}, 5, 2, 3*2)

	// An animated seed with an fdAT frame.
	var buf bytes.Buffer
	e := NewEncoder(&buf, 2, 2)
	if err := e.SetAnimated(2, 0); err == nil {
		if w, err := e.WriteHeader(); err == nil {
			w.WriteImageData(make([]byte, 16))
			w.WriteImageData(make([]byte, 16))
			if w.Finish() == nil {
				f.Add(buf.Bytes())
			}
		}
	}
}

// FuzzParseChunks ensures the chunk parser never panics on arbitrary input,
// however mangled the length, type, or CRC fields are.
func FuzzParseChunks(f *testing.F) {
	addEncodedSeeds(f)
	f.Add([]byte(chunk.Signature))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		chunk.Parse(data) //nolint:errcheck
	})
}

// FuzzStreamWriterChunking ensures that however the input is split, the
// streamed encode neither panics nor diverges from the whole-image encode.
func FuzzStreamWriterChunking(f *testing.F) {
	f.Add([]byte{1, 2, 3, 4}, uint8(1))
	f.Add(bytes.Repeat([]byte{7}, 64), uint8(5))

	f.Fuzz(func(t *testing.T, pixels []byte, step uint8) {
		// Shape a 4-wide grayscale image out of whatever bytes arrive.
		const width = 4
		height := len(pixels) / width
		if height == 0 || height > 64 {
			t.Skip()
		}
		pixels = pixels[:width*height]
		if step == 0 {
			step = 1
		}

		var whole bytes.Buffer
		e := NewEncoder(&whole, width, height)
		e.SetColor(ColorGrayscale)
		w, err := e.WriteHeader()
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteImageData(pixels); err != nil {
			t.Fatal(err)
		}
		if err := w.Finish(); err != nil {
			t.Fatal(err)
		}

		var streamed bytes.Buffer
		e2 := NewEncoder(&streamed, width, height)
		e2.SetColor(ColorGrayscale)
		w2, err := e2.WriteHeader()
		if err != nil {
			t.Fatal(err)
		}
		sw, err := w2.StreamWriter()
		if err != nil {
			t.Fatal(err)
		}
		for off := 0; off < len(pixels); off += int(step) {
			end := off + int(step)
			if end > len(pixels) {
				end = len(pixels)
			}
			if _, err := sw.Write(pixels[off:end]); err != nil {
				t.Fatal(err)
			}
		}
		if err := sw.Finish(); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(whole.Bytes(), streamed.Bytes()) {
			t.Fatal("streamed encode diverges from whole-image encode")
		}
	})
}
