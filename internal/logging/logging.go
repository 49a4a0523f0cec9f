// Package logging provides debug logging utilities for the chat relay.
package logging

import (
	"log"
	"os"
)

// DebugEnabled controls whether Debug() produces output.
// Set via -debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// EnableFromEnv turns debug output on when DEBUG is set to 1 or true.
func EnableFromEnv() {
	switch os.Getenv("DEBUG") {
	case "1", "true":
		DebugEnabled = true
	}
}

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}
