package apng

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/deepteams/apng/internal/chunk"
	"github.com/deepteams/apng/internal/zstream"
)

// textEntry is one prepared textual metadata record. Entries are validated
// and encoded when added and emitted verbatim with the header, before any
// pixel data.
type textEntry struct {
	typ     chunk.Type
	payload []byte
}

// AddText adds an uncompressed Latin-1 text record. The keyword and value
// must both be representable in Latin-1.
func (e *Encoder) AddText(keyword, value string) error {
	if e.wroteHeader {
		return fmt.Errorf("%w: text added after header", ErrConfig)
	}
	k, err := encodeKeyword(keyword)
	if err != nil {
		return err
	}
	v, err := encodeLatin1(value)
	if err != nil {
		return err
	}
	payload := make([]byte, 0, len(k)+1+len(v))
	payload = append(payload, k...)
	payload = append(payload, 0)
	payload = append(payload, v...)
	e.texts = append(e.texts, textEntry{chunk.TypeTEXT, payload})
	return nil
}

// AddCompressedText adds a deflate-compressed Latin-1 text record. The value
// must be representable in Latin-1; it is compressed at the balanced level
// regardless of the pixel-data level.
func (e *Encoder) AddCompressedText(keyword, value string) error {
	if e.wroteHeader {
		return fmt.Errorf("%w: text added after header", ErrConfig)
	}
	k, err := encodeKeyword(keyword)
	if err != nil {
		return err
	}
	v, err := encodeLatin1(value)
	if err != nil {
		return err
	}
	cv, err := deflateText(v)
	if err != nil {
		return err
	}
	payload := make([]byte, 0, len(k)+2+len(cv))
	payload = append(payload, k...)
	payload = append(payload, 0)
	payload = append(payload, 0) // compression method: deflate
	payload = append(payload, cv...)
	e.texts = append(e.texts, textEntry{chunk.TypeZTXT, payload})
	return nil
}

// AddInternationalText adds a UTF-8 text record with a language tag and a
// translated keyword. The keyword itself is still Latin-1; langTag is a
// hyphen-separated ASCII tag (may be empty); translated and value are UTF-8.
func (e *Encoder) AddInternationalText(keyword, langTag, translated, value string, compress bool) error {
	if e.wroteHeader {
		return fmt.Errorf("%w: text added after header", ErrConfig)
	}
	k, err := encodeKeyword(keyword)
	if err != nil {
		return err
	}
	if err := validateLangTag(langTag); err != nil {
		return err
	}
	v := []byte(value)
	flag := byte(0)
	if compress {
		flag = 1
		if v, err = deflateText(v); err != nil {
			return err
		}
	}
	payload := make([]byte, 0, len(k)+5+len(langTag)+len(translated)+len(v))
	payload = append(payload, k...)
	payload = append(payload, 0)
	payload = append(payload, flag)
	payload = append(payload, 0) // compression method: deflate
	payload = append(payload, langTag...)
	payload = append(payload, 0)
	payload = append(payload, translated...)
	payload = append(payload, 0)
	payload = append(payload, v...)
	e.texts = append(e.texts, textEntry{chunk.TypeITXT, payload})
	return nil
}

// encodeKeyword transcodes and validates a record keyword: 1 to 79 bytes of
// printable Latin-1, no leading, trailing, or consecutive spaces.
func encodeKeyword(keyword string) ([]byte, error) {
	k, err := encodeLatin1(keyword)
	if err != nil {
		return nil, err
	}
	if len(k) == 0 || len(k) > 79 {
		return nil, fmt.Errorf("%w: keyword must be 1 to 79 bytes, got %d", ErrConfig, len(k))
	}
	if k[0] == ' ' || k[len(k)-1] == ' ' {
		return nil, fmt.Errorf("%w: keyword %q has leading or trailing space", ErrConfig, keyword)
	}
	prevSpace := false
	for _, b := range k {
		printable := (b >= 32 && b <= 126) || b >= 161
		if !printable {
			return nil, fmt.Errorf("%w: keyword %q contains non-printable byte 0x%02x",
				ErrConfig, keyword, b)
		}
		if b == ' ' {
			if prevSpace {
				return nil, fmt.Errorf("%w: keyword %q has consecutive spaces", ErrConfig, keyword)
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
	}
	return k, nil
}

// encodeLatin1 transcodes s to Latin-1, failing on unmappable runes.
func encodeLatin1(s string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not representable in Latin-1", ErrUnencodableText, s)
	}
	return b, nil
}

// validateLangTag accepts an empty tag or hyphen-separated ASCII
// alphanumeric words.
func validateLangTag(tag string) error {
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		ok := c == '-' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if !ok {
			return fmt.Errorf("%w: invalid language tag %q", ErrConfig, tag)
		}
	}
	return nil
}

// deflateText compresses a text body as one complete zlib stream.
func deflateText(v []byte) ([]byte, error) {
	var buf bytes.Buffer
	zs, err := zstream.New(&buf, zstream.Default)
	if err != nil {
		return nil, err
	}
	if _, err := zs.Write(v); err != nil {
		return nil, err
	}
	if err := zs.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
