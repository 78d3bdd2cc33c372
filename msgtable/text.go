package msgtable

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// mc.exe writes ANSI entries with the build machine code page, Windows-1252
// covers the messages Microsoft ships.
var defaultANSIEncoding encoding.Encoding = charmap.Windows1252

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeANSI decodes a NUL terminated (or padded) 8-bit string.
func decodeANSI(enc encoding.Encoding, b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return ""
	}
	s, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		// Bytes outside the code page, keep what the raw bytes say.
		return string(b)
	}
	return string(s)
}

// decodeUTF16 decodes a NUL terminated (or padded) UTF-16LE string.
func decodeUTF16(b []byte) string {
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			n = i
			break
		}
	}
	if n == 0 {
		return ""
	}
	s, err := utf16le.NewDecoder().Bytes(b[:n])
	if err != nil {
		return ""
	}
	return string(s)
}
