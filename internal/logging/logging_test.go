package logging

import (
	"bytes"
	"log"
	"os"
	"testing"
)

func TestDebugDisabled(t *testing.T) {
	DebugEnabled = false
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debug("this should not appear")

	if buf.Len() > 0 {
		t.Errorf("Debug output when disabled: %s", buf.String())
	}
}

func TestDebugEnabled(t *testing.T) {
	DebugEnabled = true
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debug("relayed %d bytes", 42)

	if !bytes.Contains(buf.Bytes(), []byte("DEBUG: relayed 42 bytes")) {
		t.Errorf("Expected debug output, got: %s", buf.String())
	}
	DebugEnabled = false
}

func TestEnableFromEnv(t *testing.T) {
	defer func() { DebugEnabled = false }()

	for _, tc := range []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"1", true},
		{"true", true},
	} {
		DebugEnabled = false
		t.Setenv("DEBUG", tc.value)
		EnableFromEnv()
		if DebugEnabled != tc.want {
			t.Errorf("DEBUG=%q: expected %v, got %v", tc.value, tc.want, DebugEnabled)
		}
	}
}
