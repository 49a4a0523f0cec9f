package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/stlalpha/chatrelay/internal/chatview"
	"github.com/stlalpha/chatrelay/internal/client"
	"github.com/stlalpha/chatrelay/internal/logging"
	"github.com/stlalpha/chatrelay/internal/terminalio"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Relay host")
	port := flag.Int("port", 12345, "Relay port")
	name := flag.String("name", "", "Display name (prompted when empty)")
	ui := flag.String("ui", "auto", "Interface: auto, tui or line")
	outputModeFlag := flag.String("output-mode", "utf8", "Line interface output encoding: utf8 or cp437")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logging.EnableFromEnv()
	if *debug {
		logging.DebugEnabled = true
	}

	outputMode, err := terminalio.ParseOutputMode(*outputModeFlag)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	useTUI, err := pickUI(*ui, term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())))
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	if useTUI {
		err = runTUI(ctx, addr, *name)
	} else {
		err = runLine(ctx, addr, *name, outputMode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pickUI resolves the -ui flag; auto selects the full-screen interface only
// when both stdin and stdout are terminals.
func pickUI(ui string, interactive bool) (bool, error) {
	switch strings.ToLower(ui) {
	case "auto":
		return interactive, nil
	case "tui":
		return true, nil
	case "line":
		return false, nil
	}
	return false, fmt.Errorf("invalid -ui value %q, must be auto, tui or line", ui)
}

func runLine(ctx context.Context, addr, name string, mode terminalio.OutputMode) error {
	view := client.NewLineView(os.Stdin, os.Stdout, mode, name)
	c, err := client.Dial(ctx, addr, view)
	if err != nil {
		return err
	}
	defer c.Close()

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	inputDone := make(chan error, 1)
	go func() { inputDone <- view.ReadInput(c.Send) }()

	select {
	case err := <-runDone:
		return err
	case err := <-inputDone:
		return err
	case <-ctx.Done():
		return nil
	}
}

func runTUI(ctx context.Context, addr, name string) error {
	// Logs would tear the full-screen view
	if !logging.DebugEnabled {
		log.SetOutput(io.Discard)
	}

	view := chatview.NewView(name)
	c, err := client.Dial(ctx, addr, view)
	if err != nil {
		return err
	}
	defer c.Close()

	p := tea.NewProgram(chatview.NewModel(c.Name(), c.Send), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		view.Attach(p)
		if err := c.Run(ctx); err != nil {
			logging.Debug("Receive loop ended: %v", err)
		}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
