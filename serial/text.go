package serial

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/clusterkit/pkg/types"
)

// Text stores strings in a character encoding.
type Text struct {
	Encoding encoding.Encoding
}

// Common text encodings.
var (
	UTF8        = Text{Encoding: unicode.UTF8}
	UTF16LE     = Text{Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
	Windows1252 = Text{Encoding: charmap.Windows1252}
)

// TextEncoding returns the Text serializer for "utf-8", "utf-16le" or
// "windows-1252".
func TextEncoding(name string) (Text, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "utf16le", "utf-16le":
		return UTF16LE, nil
	case "cp1252", "windows-1252":
		return Windows1252, nil
	default:
		return Text{}, fmt.Errorf("serial: unknown text encoding %q", name)
	}
}

// Marshal rejects strings that are not valid UTF-8, since the encoders would
// replace the offending bytes with U+FFFD.
func (t Text) Marshal(v string) ([]byte, error) {
	if !utf8.ValidString(v) {
		return nil, types.Preconditionf("serial: text %q is not valid UTF-8", v)
	}
	b, err := t.Encoding.NewEncoder().Bytes([]byte(v))
	if err != nil {
		return nil, fmt.Errorf("serial: encode text: %w", err)
	}
	return b, nil
}

func (t Text) Unmarshal(b []byte) (string, error) {
	if t.Encoding == unicode.UTF8 && !utf8.Valid(b) {
		return "", types.Corruptf("serial: stored text is not valid UTF-8")
	}
	s, err := t.Encoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", types.WrapCorrupt(err, "serial: decode text")
	}
	return string(s), nil
}
