package apng

import (
	"bytes"
	"errors"
	"testing"

	"github.com/deepteams/apng/internal/chunk"
)

// encodeWithText encodes a 1x1 image after applying cfg and returns the
// parsed chunks.
func encodeWithText(t *testing.T, cfg func(*Encoder) error) []chunk.Raw {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf, 1, 1)
	e.SetColor(ColorGrayscale)
	if err := cfg(e); err != nil {
		t.Fatalf("configuring text: %v", err)
	}
	w, err := e.WriteHeader()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteImageData([]byte{128}); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	return parseChunks(t, buf.Bytes())
}

// findChunk returns the first chunk of the given type.
func findChunk(t *testing.T, chunks []chunk.Raw, typ chunk.Type) chunk.Raw {
	t.Helper()
	for _, c := range chunks {
		if c.Type == typ {
			return c
		}
	}
	t.Fatalf("no %s chunk in output", typ)
	return chunk.Raw{}
}

func TestAddText(t *testing.T) {
	chunks := encodeWithText(t, func(e *Encoder) error {
		return e.AddText("Title", "Hello PNG")
	})
	c := findChunk(t, chunks, chunk.TypeTEXT)
	want := append([]byte("Title"), 0)
	want = append(want, "Hello PNG"...)
	if !bytes.Equal(c.Data, want) {
		t.Errorf("tEXt payload = % x, want % x", c.Data, want)
	}

	// Text chunks come before any pixel data.
	for _, cc := range chunks {
		if cc.Type == chunk.TypeIDAT {
			break
		}
		if cc.Type == chunk.TypeTEXT {
			return
		}
	}
	t.Error("tEXt chunk appears after IDAT")
}

func TestAddTextLatin1(t *testing.T) {
	chunks := encodeWithText(t, func(e *Encoder) error {
		return e.AddText("Comment", "café")
	})
	c := findChunk(t, chunks, chunk.TypeTEXT)
	i := bytes.IndexByte(c.Data, 0)
	if got := c.Data[i+1:]; !bytes.Equal(got, []byte{'c', 'a', 'f', 0xE9}) {
		t.Errorf("Latin-1 value = % x, want caf\\xe9", got)
	}
}

func TestAddTextUnencodable(t *testing.T) {
	e := NewEncoder(bytes.NewBuffer(nil), 1, 1)
	if err := e.AddText("Title", "日本語"); !errors.Is(err, ErrUnencodableText) {
		t.Errorf("non-Latin-1 tEXt value = %v, want ErrUnencodableText", err)
	}
	if err := e.AddCompressedText("Title", "日本語"); !errors.Is(err, ErrUnencodableText) {
		t.Errorf("non-Latin-1 zTXt value = %v, want ErrUnencodableText", err)
	}
	if err := e.AddText("日本語", "value"); !errors.Is(err, ErrUnencodableText) {
		t.Errorf("non-Latin-1 keyword = %v, want ErrUnencodableText", err)
	}
}

func TestKeywordValidation(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
	}{
		{"empty", ""},
		{"too long", string(bytes.Repeat([]byte{'k'}, 80))},
		{"leading space", " Title"},
		{"trailing space", "Title "},
		{"consecutive spaces", "My  Title"},
		{"control character", "Ti\ttle"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEncoder(bytes.NewBuffer(nil), 1, 1)
			if err := e.AddText(tc.keyword, "v"); !errors.Is(err, ErrConfig) {
				t.Errorf("AddText(%q) = %v, want ErrConfig", tc.keyword, err)
			}
		})
	}

	// 79 bytes with single interior spaces is the longest legal keyword.
	e := NewEncoder(bytes.NewBuffer(nil), 1, 1)
	ok := "a" + string(bytes.Repeat([]byte{'b'}, 77)) + "c"
	if err := e.AddText(ok, "v"); err != nil {
		t.Errorf("79-byte keyword rejected: %v", err)
	}
}

func TestAddCompressedText(t *testing.T) {
	value := string(bytes.Repeat([]byte("compressible text "), 50))
	chunks := encodeWithText(t, func(e *Encoder) error {
		return e.AddCompressedText("Description", value)
	})
	c := findChunk(t, chunks, chunk.TypeZTXT)

	i := bytes.IndexByte(c.Data, 0)
	if string(c.Data[:i]) != "Description" {
		t.Fatalf("keyword = %q", c.Data[:i])
	}
	if method := c.Data[i+1]; method != 0 {
		t.Fatalf("compression method = %d, want 0", method)
	}
	body := inflateAll(t, c.Data[i+2:])
	if string(body) != value {
		t.Error("inflated zTXt body differs from the value")
	}
	if len(c.Data) >= len(value) {
		t.Errorf("zTXt payload is %d bytes for a %d-byte value, no compression happened",
			len(c.Data), len(value))
	}
}

func TestAddInternationalText(t *testing.T) {
	const value = "国際化テキスト"
	for _, compress := range []bool{false, true} {
		chunks := encodeWithText(t, func(e *Encoder) error {
			return e.AddInternationalText("Comment", "ja-JP", "コメント", value, compress)
		})
		c := findChunk(t, chunks, chunk.TypeITXT)

		i := bytes.IndexByte(c.Data, 0)
		if string(c.Data[:i]) != "Comment" {
			t.Fatalf("keyword = %q", c.Data[:i])
		}
		rest := c.Data[i+1:]
		flag, method := rest[0], rest[1]
		if method != 0 {
			t.Fatalf("compression method = %d, want 0", method)
		}
		rest = rest[2:]

		j := bytes.IndexByte(rest, 0)
		if string(rest[:j]) != "ja-JP" {
			t.Fatalf("language tag = %q", rest[:j])
		}
		rest = rest[j+1:]
		k := bytes.IndexByte(rest, 0)
		if string(rest[:k]) != "コメント" {
			t.Fatalf("translated keyword = %q", rest[:k])
		}
		body := rest[k+1:]

		if compress {
			if flag != 1 {
				t.Fatalf("compression flag = %d, want 1", flag)
			}
			body = inflateAll(t, body)
		} else if flag != 0 {
			t.Fatalf("compression flag = %d, want 0", flag)
		}
		if string(body) != value {
			t.Errorf("compress=%v: value = %q, want %q", compress, body, value)
		}
	}
}

func TestInvalidLanguageTag(t *testing.T) {
	e := NewEncoder(bytes.NewBuffer(nil), 1, 1)
	if err := e.AddInternationalText("Comment", "ja JP", "", "v", false); !errors.Is(err, ErrConfig) {
		t.Errorf("language tag with space = %v, want ErrConfig", err)
	}
}

func TestAddTextAfterHeader(t *testing.T) {
	e := NewEncoder(bytes.NewBuffer(nil), 1, 1)
	if _, err := e.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := e.AddText("Title", "late"); !errors.Is(err, ErrConfig) {
		t.Errorf("AddText after header = %v, want ErrConfig", err)
	}
}
