package roster

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeUpload turns the bytes of an uploaded file into NFC normalised UTF-8 text.
// UTF-16 files need a BOM. Anything that is not valid UTF-8 is read as ISO-8859-1,
// which is what spreadsheet exports on Windows usually are.
func DecodeUpload(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", errors.Wrap(err, "decoding UTF-16")
		}
		return norm.NFC.String(string(out)), nil
	}

	data = bytes.TrimPrefix(data, bomUTF8)
	if utf8.Valid(data) {
		return norm.NFC.String(string(data)), nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrap(err, "decoding ISO-8859-1")
	}
	return norm.NFC.String(string(out)), nil
}
