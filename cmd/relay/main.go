package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stlalpha/chatrelay/internal/config"
	"github.com/stlalpha/chatrelay/internal/logging"
	"github.com/stlalpha/chatrelay/internal/registry"
	"github.com/stlalpha/chatrelay/internal/relay"
	"github.com/stlalpha/chatrelay/internal/scheduler"
	"github.com/stlalpha/chatrelay/internal/status"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "configs", "Directory holding config.json, strings.json and events.json")
	host := flag.String("host", "", "Listen address (overrides config.json)")
	port := flag.Int("port", 0, "Listen port (overrides config.json)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log.SetOutput(os.Stderr)
	logging.EnableFromEnv()
	if *debug {
		logging.DebugEnabled = true
	}
	log.Println("INFO: Starting chat relay...")

	serverConfig, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load server configuration: %v", err)
	}
	if *host != "" {
		serverConfig.Host = *host
	}
	if *port != 0 {
		serverConfig.Port = *port
	}
	if err := serverConfig.Validate(); err != nil {
		log.Fatalf("FATAL: Invalid server configuration: %v", err)
	}

	if serverConfig.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(serverConfig.LogFile), 0755); err != nil {
			log.Printf("WARN: Failed to create log directory for %s: %v. Logging to stderr.", serverConfig.LogFile, err)
		} else {
			logFile := &lumberjack.Logger{
				Filename:   serverConfig.LogFile,
				MaxSize:    serverConfig.LogMaxSizeMB,
				MaxBackups: serverConfig.LogMaxBackups,
				MaxAge:     serverConfig.LogMaxAgeDays,
				Compress:   serverConfig.LogCompress,
			}
			log.SetOutput(io.MultiWriter(os.Stderr, logFile))
			log.Printf("INFO: Logging to file: %s", serverConfig.LogFile)
			defer logFile.Close()
		}
	}

	loadedStrings, err := config.LoadStrings(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load strings configuration: %v", err)
	}
	eventsConfig, err := config.LoadEventsConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load events configuration: %v", err)
	}

	reg := registry.NewRegistry()
	rl := relay.New(reg, time.Duration(serverConfig.WriteTimeoutSeconds)*time.Second)
	srv, err := relay.NewServer(relay.Config{
		Host:                serverConfig.Host,
		Port:                serverConfig.Port,
		ReadBufferSize:      serverConfig.ReadBufferSize,
		HandshakeTimeout:    time.Duration(serverConfig.HandshakeTimeoutSeconds) * time.Second,
		MaxConnections:      serverConfig.MaxConnections,
		MaxConnectionsPerIP: serverConfig.MaxConnectionsPerIP,
		Strings:             loadedStrings,
	}, rl)
	if err != nil {
		log.Fatalf("FATAL: Failed to create relay server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.NewScheduler(eventsConfig, serverConfig.EventHistoryPath, rl)
	if err != nil {
		log.Fatalf("FATAL: Failed to create event scheduler: %v", err)
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	watcher, err := NewConfigWatcher(*configPath, srv)
	if err != nil {
		log.Printf("WARN: Config hot-reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	statusDone := make(chan struct{})
	if serverConfig.StatusAddr != "" {
		statusServer := status.NewServer(serverConfig.StatusAddr, reg, rl)
		go func() {
			defer close(statusDone)
			if err := statusServer.ListenAndRun(ctx); err != nil {
				log.Printf("ERROR: Status API stopped: %v", err)
			}
		}()
	} else {
		close(statusDone)
	}

	go func() {
		<-ctx.Done()
		log.Printf("INFO: Shutdown requested, closing %d connection(s)...", reg.Len())
		srv.Close()
	}()

	if err := serveResult(srv.ListenAndServe()); err != nil {
		log.Fatalf("FATAL: Failed to start relay server: %v", err)
	}

	cancel()
	<-schedDone
	<-statusDone
	log.Println("INFO: Chat relay stopped")
}

// serveResult treats a shutdown that won the race with Serve as a clean exit.
func serveResult(err error) error {
	if errors.Is(err, relay.ErrServerClosed) {
		return nil
	}
	return err
}
