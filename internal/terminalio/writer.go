// Package terminalio adapts relay text to the client's terminal encoding.
package terminalio

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// OutputMode selects how text is encoded for the local terminal.
type OutputMode int

const (
	OutputModeUTF8  OutputMode = iota // Pass UTF-8 through unchanged
	OutputModeCP437                   // Encode runes as IBM code page 437
)

func (m OutputMode) String() string {
	switch m {
	case OutputModeCP437:
		return "cp437"
	default:
		return "utf8"
	}
}

// ParseOutputMode maps a flag value to an OutputMode.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf8", "utf-8":
		return OutputModeUTF8, nil
	case "cp437":
		return OutputModeCP437, nil
	}
	return OutputModeUTF8, fmt.Errorf("unknown output mode %q (want utf8 or cp437)", s)
}

// NewWriter wraps w so everything written to it arrives in mode's encoding.
func NewWriter(w io.Writer, mode OutputMode) io.Writer {
	if mode == OutputModeCP437 {
		return NewCP437Writer(w)
	}
	return w
}

// findAnsiEnd returns the index after the escape sequence starting at start.
func findAnsiEnd(data []byte, start int) int {
	if start+1 >= len(data) {
		return start + 1 // Incomplete sequence
	}

	seqEnd := start + 1
	switch data[seqEnd] {
	case '[': // CSI
		seqEnd++
		for seqEnd < len(data) {
			c := data[seqEnd]
			seqEnd++
			if c >= '@' && c <= '~' {
				return seqEnd
			}
			if seqEnd-start > 32 {
				return seqEnd
			}
		}
		return seqEnd
	case '(', ')': // Character set designation
		if start+2 < len(data) {
			return start + 3
		}
		return start + 2
	default:
		return start + 2
	}
}

// EncodeCP437 converts UTF-8 text to CP437 bytes. ANSI escape sequences and
// ASCII pass through, runes with no CP437 form become '?', and bytes that
// are not valid UTF-8 are copied as-is.
func EncodeCP437(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]

		if b == 0x1B {
			end := findAnsiEnd(data, i)
			out = append(out, data[i:end]...)
			i = end
			continue
		}

		if b < utf8.RuneSelf {
			out = append(out, b)
			i++
			continue
		}

		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			out = append(out, b)
			i++
			continue
		}
		if enc, ok := charmap.CodePage437.EncodeRune(r); ok {
			out = append(out, enc)
		} else {
			out = append(out, '?')
		}
		i += size
	}
	return out
}
