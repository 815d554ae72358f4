package parser

import (
	"unicode/utf8"

	"mpath/internal/core/errors"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeSource converts file bytes to UTF-8. A byte order mark selects the
// UTF-8 or UTF-16 decoder; otherwise input that is not valid UTF-8 is read as
// Windows-1252, the historical MATLAB default on Windows.
func DecodeSource(src []byte) ([]byte, error) {
	var fallback encoding.Encoding = unicode.UTF8
	if !utf8.Valid(src) {
		fallback = charmap.Windows1252
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback.NewDecoder()), src)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "decode source")
	}
	return out, nil
}
