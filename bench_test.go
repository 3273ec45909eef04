package apng

import (
	"io"
	"testing"
)

func benchPixels(width, height, channels int) []byte {
	p := make([]byte, width*height*channels)
	for i := range p {
		p[i] = byte(i>>3 + i*i>>11)
	}
	return p
}

func benchEncode(b *testing.B, width, height int, c ColorType, f Filter, level CompressionLevel) {
	pixels := benchPixels(width, height, c.channels())
	b.SetBytes(int64(len(pixels)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEncoder(io.Discard, width, height)
		e.SetColor(c)
		e.SetFilter(f)
		e.SetCompressionLevel(level)
		w, err := e.WriteHeader()
		if err != nil {
			b.Fatal(err)
		}
		if err := w.WriteImageData(pixels); err != nil {
			b.Fatal(err)
		}
		if err := w.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeRGBA(b *testing.B) {
	benchEncode(b, 256, 256, ColorRGBA, FilterAdaptive, DefaultCompression)
}

func BenchmarkEncodeGray(b *testing.B) {
	benchEncode(b, 256, 256, ColorGrayscale, FilterAdaptive, DefaultCompression)
}

func BenchmarkEncodeFilters(b *testing.B) {
	filters := []struct {
		name string
		f    Filter
	}{
		{"Adaptive", FilterAdaptive},
		{"None", FilterNone},
		{"Sub", FilterSub},
		{"Up", FilterUp},
		{"Average", FilterAverage},
		{"Paeth", FilterPaeth},
	}
	for _, tc := range filters {
		b.Run(tc.name, func(b *testing.B) {
			benchEncode(b, 256, 256, ColorRGBA, tc.f, DefaultCompression)
		})
	}
}

func BenchmarkEncodeLevels(b *testing.B) {
	levels := []struct {
		name  string
		level CompressionLevel
	}{
		{"None", NoCompression},
		{"Fast", BestSpeed},
		{"Default", DefaultCompression},
		{"Best", BestCompression},
	}
	for _, tc := range levels {
		b.Run(tc.name, func(b *testing.B) {
			benchEncode(b, 256, 256, ColorRGBA, FilterAdaptive, tc.level)
		})
	}
}

func BenchmarkEncodeAnimation(b *testing.B) {
	const width, height, frames = 128, 128, 8
	pixels := make([][]byte, frames)
	for i := range pixels {
		pixels[i] = benchPixels(width, height, 4)
		for j := range pixels[i] {
			pixels[i][j] += byte(i * 17)
		}
	}
	b.SetBytes(int64(frames * width * height * 4))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEncoder(io.Discard, width, height)
		if err := e.SetAnimated(frames, 0); err != nil {
			b.Fatal(err)
		}
		w, err := e.WriteHeader()
		if err != nil {
			b.Fatal(err)
		}
		for _, p := range pixels {
			if err := w.WriteImageData(p); err != nil {
				b.Fatal(err)
			}
		}
		if err := w.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStreamWriter(b *testing.B) {
	const width, height = 256, 256
	pixels := benchPixels(width, height, 4)
	b.SetBytes(int64(len(pixels)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEncoder(io.Discard, width, height)
		w, err := e.WriteHeader()
		if err != nil {
			b.Fatal(err)
		}
		sw, err := w.StreamWriter()
		if err != nil {
			b.Fatal(err)
		}
		// Pushes deliberately misaligned with the 1 KiB row size.
		for off := 0; off < len(pixels); off += 4000 {
			end := off + 4000
			if end > len(pixels) {
				end = len(pixels)
			}
			if _, err := sw.Write(pixels[off:end]); err != nil {
				b.Fatal(err)
			}
		}
		if err := sw.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}
