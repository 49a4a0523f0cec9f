package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/stlalpha/chatrelay/internal/password"
	"golang.org/x/term"
)

func main() {
	length := flag.Int("length", 0, "Password length (prompted when 0)")
	hash := flag.Bool("hash", false, "Also print the bcrypt hash of the password")
	flag.Parse()

	n := *length
	if n == 0 {
		// Piped input gets no prompt text on stdout
		var prompt io.Writer = os.Stdout
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			prompt = io.Discard
		}
		n = password.RequestLength(os.Stdin, prompt, os.Stderr, password.DefaultLength)
	}

	pw, err := password.Generate(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Generated secure password: %s\n", pw)

	if *hash {
		hashed, err := password.Hash(pw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("bcrypt: %s\n", hashed)
	}
}
