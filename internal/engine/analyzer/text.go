package analyzer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"pyscope/internal/core/errors"
)

const (
	sniffBytes       = 8 << 10
	maxControlRatio  = 0.30
	byteOrderMarkUTF = "\xef\xbb\xbf"
)

// CheckSourceText fails with CodeNotSourceText for input that is clearly
// binary: a NUL byte near the start, invalid UTF-8, or mostly control bytes.
// Empty input is valid.
func CheckSourceText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	head := text
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return errors.New(errors.CodeNotSourceText, "input contains NUL bytes")
	}
	if !utf8.Valid(text) {
		return errors.New(errors.CodeNotSourceText, "input is not valid UTF-8")
	}
	control := 0
	for _, b := range head {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			control++
		}
	}
	if float64(control) > maxControlRatio*float64(len(head)) {
		return errors.New(errors.CodeNotSourceText, "input is mostly control characters")
	}
	return nil
}

// Normalize strips a UTF-8 byte order mark and converts CRLF and lone CR
// line endings to LF.
func Normalize(text []byte) string {
	s := strings.TrimPrefix(string(text), byteOrderMarkUTF)
	if strings.IndexByte(s, '\r') < 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
