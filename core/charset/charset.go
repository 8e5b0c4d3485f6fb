// Package charset decides how the bytes of an ID3 text frame should be
// decoded. Frames declared as Latin-1 are frequently Shift-JIS written by
// Windows-locale taggers, or UTF-8 written by modern ones that left the
// indicator at its default.
package charset

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ankit-chaubey/id3-surgery/core"
)

// ID3v2 text encoding indicators.
const (
	IndicatorLatin1  byte = 0
	IndicatorUTF16   byte = 1
	IndicatorUTF16BE byte = 2
	IndicatorUTF8    byte = 3
)

// TryUTF8 returns b as a string if it is strictly valid UTF-8.
func TryUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// DecodeShiftJIS decodes b as Shift-JIS (Windows code page 932 superset).
func DecodeShiftJIS(b []byte) (string, bool) {
	s, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// DecodeUTF16 decodes b as UTF-16. A leading BOM selects the byte order;
// without one, bigEndian picks the default. Files from some taggers end a
// UTF-16 frame with one stray NUL byte; it is dropped on read.
func DecodeUTF16(b []byte, bigEndian bool) (string, bool) {
	if len(b)%2 == 1 {
		if b[len(b)-1] != 0 {
			return "", false
		}
		b = b[:len(b)-1]
	}
	order := unicode.LittleEndian
	if bigEndian {
		order = unicode.BigEndian
	}
	s, _, err := transform.Bytes(unicode.UTF16(order, unicode.UseBOM).NewDecoder(), b)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// DecodeDeclared decodes frame content according to its encoding indicator.
//
//	indicator  attempt                       result class
//	0          strict UTF-8                  UTF-8
//	0          Shift-JIS (UTF-8 invalid)     Shift-JIS
//	1          UTF-16, BOM or little-endian  Unknown
//	2          UTF-16, BOM or big-endian     Unknown
//	3          strict UTF-8                  UTF-8
//
// Any other indicator, or a failed decode for 1-3, reports ok == false.
func DecodeDeclared(indicator byte, b []byte) (s string, enc core.Encoding, ok bool) {
	switch indicator {
	case IndicatorLatin1:
		if s, ok := TryUTF8(b); ok {
			return s, core.EncodingUTF8, true
		}
		if s, ok := DecodeShiftJIS(b); ok {
			return s, core.EncodingShiftJIS, true
		}
	case IndicatorUTF16:
		if s, ok := DecodeUTF16(b, false); ok {
			return s, core.EncodingUnknown, true
		}
	case IndicatorUTF16BE:
		if s, ok := DecodeUTF16(b, true); ok {
			return s, core.EncodingUnknown, true
		}
	case IndicatorUTF8:
		if s, ok := TryUTF8(b); ok {
			return s, core.EncodingUTF8, true
		}
	}
	return "", core.EncodingUnknown, false
}

// Clean strips NUL padding and surrounding whitespace.
func Clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// IsJunk reports whether s is unusable: empty, or carrying a C0 control
// character other than tab, LF and CR.
func IsJunk(s string) bool {
	if s == "" {
		return true
	}
	return strings.IndexFunc(s, isMismatchControl) >= 0
}

func isMismatchControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r == 0x0B || r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	}
	return false
}

// Resolve runs DecodeDeclared, Clean and IsJunk in sequence. ok is false when
// the frame should be treated as absent.
func Resolve(indicator byte, b []byte) (string, core.Encoding, bool) {
	s, enc, ok := DecodeDeclared(indicator, b)
	if !ok {
		return "", core.EncodingUnknown, false
	}
	s = Clean(s)
	if IsJunk(s) {
		return "", enc, false
	}
	return s, enc, true
}
