package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/stlalpha/chatrelay/internal/terminalio"
)

// LineView is a plain line-oriented View over a reader and a writer.
type LineView struct {
	in     *bufio.Reader
	out    io.Writer
	preset string

	mu sync.Mutex
}

// NewLineView creates a view reading from in and printing to out in mode's
// encoding. A non-empty name skips the name prompt.
func NewLineView(in io.Reader, out io.Writer, mode terminalio.OutputMode, name string) *LineView {
	return &LineView{
		in:     bufio.NewReader(in),
		out:    terminalio.NewWriter(out, mode),
		preset: name,
	}
}

// Render prints line followed by a newline.
func (v *LineView) Render(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, line)
}

// PromptForName returns the preset name, or asks for one. The answer is
// used as typed apart from the line ending.
func (v *LineView) PromptForName() (string, bool) {
	if v.preset != "" {
		return v.preset, true
	}
	v.mu.Lock()
	fmt.Fprint(v.out, "Choose your nickname: ")
	v.mu.Unlock()

	line, err := v.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false
	}
	name := strings.TrimRight(line, "\r\n")
	return name, name != ""
}

// ReadInput calls send for every line typed until input ends or send fails.
func (v *LineView) ReadInput(send func(string) error) error {
	for {
		line, err := v.in.ReadString('\n')
		if text := strings.TrimRight(line, "\r\n"); text != "" {
			if serr := send(text); serr != nil {
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
