package terminalio

import (
	"io"
	"unicode/utf8"
)

// CP437Writer encodes UTF-8 text to CP437 on its way to w. A rune split
// across two Write calls is held back until its remaining bytes arrive.
type CP437Writer struct {
	w       io.Writer
	pending []byte // Leading bytes of an incomplete rune
}

// NewCP437Writer creates a CP437 writer over w.
func NewCP437Writer(w io.Writer) *CP437Writer {
	return &CP437Writer{w: w}
}

// Write implements io.Writer. It reports len(p) on success even though the
// encoded output is usually shorter.
func (cw *CP437Writer) Write(p []byte) (int, error) {
	data := p
	if len(cw.pending) > 0 {
		data = append(cw.pending, p...)
		cw.pending = nil
	}

	cut := incompleteTail(data)
	if cut < len(data) {
		cw.pending = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}

	if len(data) == 0 {
		return len(p), nil
	}
	if _, err := cw.w.Write(EncodeCP437(data)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes out any held-back bytes unencoded.
func (cw *CP437Writer) Flush() error {
	if len(cw.pending) == 0 {
		return nil
	}
	_, err := cw.w.Write(cw.pending)
	cw.pending = nil
	return err
}

// incompleteTail returns the index where a trailing partial UTF-8 sequence
// begins, or len(data) when the data ends on a rune boundary.
func incompleteTail(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if data[i] >= utf8.RuneSelf && !utf8.FullRune(data[i:]) {
			return i
		}
		break
	}
	return len(data)
}
