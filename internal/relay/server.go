package relay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stlalpha/chatrelay/internal/config"
	"github.com/stlalpha/chatrelay/internal/logging"
	"github.com/stlalpha/chatrelay/internal/registry"
)

// HandshakeToken is written to every new connection; the client answers
// with its display name.
const HandshakeToken = "NICK"

// ErrServerClosed is returned by ListenAndServe and Serve after Close.
var ErrServerClosed = errors.New("relay: server closed")

const maxAcceptDelay = time.Second

// Config holds relay server configuration.
type Config struct {
	Port                int
	Host                string
	ReadBufferSize      int
	HandshakeTimeout    time.Duration // Zero waits for the name forever
	MaxConnections      int           // Zero means unbounded
	MaxConnectionsPerIP int           // Zero means unbounded
	Strings             config.StringsConfig
}

// Server listens for TCP connections, runs the name handshake and keeps one
// receive loop per registered connection.
type Server struct {
	config  Config
	relay   *Relay
	strings atomic.Pointer[config.StringsConfig]

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	pending  map[net.Conn]struct{} // Accepted, not yet registered
	wg       sync.WaitGroup
}

// NewServer creates a relay server that fans out through rl.
func NewServer(cfg Config, rl *Relay) (*Server, error) {
	if rl == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.ReadBufferSize <= 0 {
		return nil, fmt.Errorf("invalid read buffer size: %d", cfg.ReadBufferSize)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	s := &Server{
		config:  cfg,
		relay:   rl,
		pending: make(map[net.Conn]struct{}),
	}
	strs := cfg.Strings
	if strs == (config.StringsConfig{}) {
		strs = config.DefaultStrings()
	}
	s.strings.Store(&strs)
	return s, nil
}

// Strings returns the announcement text currently in effect.
func (s *Server) Strings() config.StringsConfig {
	return *s.strings.Load()
}

// SetStrings swaps the announcement text; connections already running pick
// it up on their next announcement.
func (s *Server) SetStrings(strs config.StringsConfig) {
	s.strings.Store(&strs)
}

// ListenAndServe binds the configured address and runs the accept loop.
// A bind failure is returned immediately.
func (s *Server) ListenAndServe() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Printf("INFO: Relay listening on %s", addr)
	return s.Serve(listener)
}

// Serve accepts connections on l until Close is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return nil // Clean shutdown
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed unexpectedly: %w", err)
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			log.Printf("ERROR: Accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the accept loop, drops every connection and waits for the
// per-connection goroutines to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.pending {
		conn.Close()
	}
	s.mu.Unlock()

	for _, e := range s.relay.Registry().Snapshot() {
		e.Conn.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, conn)
}

// handleConnection runs the handshake, registers the client and then owns
// its receive loop until the connection goes away.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	remoteAddr := conn.RemoteAddr().String()
	log.Printf("INFO: Connection from %s", remoteAddr)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic handling %s: %v", remoteAddr, r)
			conn.Close()
			s.relay.Registry().Deregister(conn)
			s.relay.Release(conn)
		}
	}()

	if !s.admit(conn) {
		s.untrack(conn)
		conn.Close()
		return
	}

	buf := make([]byte, s.config.ReadBufferSize)
	name, err := s.handshake(conn, buf)
	s.untrack(conn)
	if err != nil {
		log.Printf("INFO: Handshake with %s failed: %v", remoteAddr, err)
		conn.Close()
		return
	}

	entry := s.relay.Registry().Register(conn, name)
	log.Printf("INFO: %s identified as %q [%s]", remoteAddr, name, entry.ID)
	if s.isClosed() {
		// Close already swept the registry; make sure the receive loop ends.
		conn.Close()
	}

	strs := s.Strings()
	s.relay.Broadcast([]byte(strs.JoinedFor(name)), conn)
	if !s.relay.Send(conn, []byte(strs.Welcome)) {
		logging.Debug("Welcome to %q [%s] not queued", name, entry.ID)
	}

	s.receiveLoop(entry, buf)
}

// admit enforces the optional connection caps. Refused clients get the
// server-full line before being dropped.
func (s *Server) admit(conn net.Conn) bool {
	reg := s.relay.Registry()
	refused := false
	if s.config.MaxConnections > 0 && reg.Len() >= s.config.MaxConnections {
		log.Printf("WARN: Refusing %s: %d connections already registered", conn.RemoteAddr(), reg.Len())
		refused = true
	} else if s.config.MaxConnectionsPerIP > 0 {
		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err == nil && reg.CountByHost(host) >= s.config.MaxConnectionsPerIP {
			log.Printf("WARN: Refusing %s: per-IP limit of %d reached", conn.RemoteAddr(), s.config.MaxConnectionsPerIP)
			refused = true
		}
	}
	if refused {
		s.relay.write(conn, []byte(s.Strings().ServerFull))
		return false
	}
	return true
}

// handshake sends the token and reads one chunk back as the display name.
// The name is taken verbatim, including an empty or whitespace-only reply
// that still carried bytes.
func (s *Server) handshake(conn net.Conn, buf []byte) (string, error) {
	if _, err := conn.Write([]byte(HandshakeToken)); err != nil {
		return "", fmt.Errorf("send handshake token: %w", err)
	}
	if s.config.HandshakeTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("read display name: %w", err)
	}
	return string(buf[:n]), nil
}

// receiveLoop forwards every chunk read from the connection to the other
// clients. On EOF or a read error it tears the connection down and
// announces the departure exactly once.
func (s *Server) receiveLoop(entry registry.Entry, buf []byte) {
	conn := entry.Conn
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			queued := s.relay.Broadcast(buf[:n], conn)
			logging.Debug("%q [%s]: %d bytes queued for %d peer(s)", entry.Name, entry.ID, n, queued)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("INFO: %q [%s] closed the connection", entry.Name, entry.ID)
			} else {
				log.Printf("INFO: %q [%s] read failed: %v", entry.Name, entry.ID, err)
			}
			break
		}
	}

	conn.Close()
	if _, ok := s.relay.Registry().Deregister(conn); !ok {
		logging.Debug("%q [%s] was already deregistered", entry.Name, entry.ID)
	}
	s.relay.Release(conn)
	s.relay.Broadcast([]byte(s.Strings().LeftFor(entry.Name)), conn)
	log.Printf("INFO: Connection closed from %s (%q, online %s)", entry.RemoteAddr, entry.Name, time.Since(entry.JoinedAt).Round(time.Second))
}
