package erplink

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts a contract dump into a string. SQL Server bcp exports
// arrive as UTF-16 with a BOM, as the local GBK codepage, or occasionally as
// plain UTF-8, so the bytes are sniffed rather than trusting any one format.
func decodeText(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	if bytes.HasPrefix(raw, utf8BOM) {
		raw = raw[len(utf8BOM):]
	}
	// NUL bytes never occur in UTF-8 or GBK text dumps but riddle BOM-less
	// UTF-16, so they decide before the cheaper UTF-8 check gets a chance to
	// wave ASCII-heavy UTF-16 through.
	if bytes.IndexByte(raw, 0x00) >= 0 {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	// The GBK decoder substitutes U+FFFD for undecodable bytes instead of
	// failing, so treat any replacement rune as a wrong-encoding signal.
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", errors.New("unsupported text encoding")
	}
	return string(decoded), nil
}
