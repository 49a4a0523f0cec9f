package client

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stlalpha/chatrelay/internal/terminalio"
)

func TestLineViewPresetName(t *testing.T) {
	var out bytes.Buffer
	v := NewLineView(strings.NewReader(""), &out, terminalio.OutputModeUTF8, "alice")

	name, ok := v.PromptForName()
	if !ok || name != "alice" {
		t.Errorf("expected preset name, got %q, %v", name, ok)
	}
	if out.Len() != 0 {
		t.Errorf("preset name should not prompt, got %q", out.String())
	}
}

func TestLineViewPromptForName(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"alice\n", "alice", true},
		{"bob\r\n", "bob", true},
		{"  spaced  \n", "  spaced  ", true},
		{"\n", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		v := NewLineView(strings.NewReader(tt.input), &out, terminalio.OutputModeUTF8, "")
		name, ok := v.PromptForName()
		if name != tt.want || ok != tt.wantOK {
			t.Errorf("input %q: got %q, %v; want %q, %v", tt.input, name, ok, tt.want, tt.wantOK)
		}
		if !strings.Contains(out.String(), "nickname") {
			t.Errorf("expected a prompt, got %q", out.String())
		}
	}
}

func TestLineViewRender(t *testing.T) {
	var out bytes.Buffer
	v := NewLineView(strings.NewReader(""), &out, terminalio.OutputModeUTF8, "alice")
	v.Render("bob: héllo")
	v.Render("bob left the chat.")

	if got := out.String(); got != "bob: héllo\nbob left the chat.\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLineViewRenderCP437(t *testing.T) {
	var out bytes.Buffer
	v := NewLineView(strings.NewReader(""), &out, terminalio.OutputModeCP437, "alice")
	v.Render("é")

	if want := []byte{0x82, '\n'}; !bytes.Equal(out.Bytes(), want) {
		t.Errorf("expected %x, got %x", want, out.Bytes())
	}
}

func TestLineViewReadInput(t *testing.T) {
	in := "bob\nfirst\n\nsecond\r\nlast"
	v := NewLineView(strings.NewReader(in), &bytes.Buffer{}, terminalio.OutputModeUTF8, "")

	if name, _ := v.PromptForName(); name != "bob" {
		t.Fatalf("unexpected name %q", name)
	}

	var sent []string
	err := v.ReadInput(func(s string) error {
		sent = append(sent, s)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadInput returned %v", err)
	}
	if strings.Join(sent, "|") != "first|second|last" {
		t.Errorf("unexpected lines %q", sent)
	}
}

func TestLineViewReadInputStopsOnSendError(t *testing.T) {
	v := NewLineView(strings.NewReader("one\ntwo\n"), &bytes.Buffer{}, terminalio.OutputModeUTF8, "x")
	boom := errors.New("boom")

	calls := 0
	err := v.ReadInput(func(string) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected send error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
