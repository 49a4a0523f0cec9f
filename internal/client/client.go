// Package client connects to a relay, answers the name handshake and hands
// everything else it receives to a View.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/stlalpha/chatrelay/internal/logging"
	"github.com/stlalpha/chatrelay/internal/relay"
)

// ReadBufferSize is the largest chunk read from the relay at once.
const ReadBufferSize = 1024

// ErrNameRequired is returned by Dial when the user declines to give a name.
var ErrNameRequired = errors.New("client: name is required to join")

// Lines the client renders itself.
const (
	ConnectionLost = "Connection lost"
	SendFailed     = "Failed to send message"
)

// View is the client's display surface.
type View interface {
	// Render shows one chunk received from the relay.
	Render(line string)
	// PromptForName asks for a display name; ok is false when the user
	// cancelled.
	PromptForName() (name string, ok bool)
}

// Client is one connection to a relay.
type Client struct {
	conn net.Conn
	name string
	view View

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to addr and then asks view for a display name. A connection
// failure or a missing name is returned to the caller; it never reaches
// other clients.
func Dial(ctx context.Context, addr string, view View) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", addr, err)
	}

	name, ok := view.PromptForName()
	if !ok || name == "" {
		conn.Close()
		return nil, ErrNameRequired
	}
	return New(conn, name, view), nil
}

// New wraps an established connection.
func New(conn net.Conn, name string, view View) *Client {
	return &Client{
		conn:   conn,
		name:   name,
		view:   view,
		closed: make(chan struct{}),
	}
}

// Name returns the display name sent during the handshake.
func (c *Client) Name() string {
	return c.name
}

// Run reads from the relay until the connection fails or ctx is done. A
// chunk equal to the handshake token is answered with the name; any other
// chunk is rendered. A lost connection is rendered once and returned as an
// error. There is no reconnect.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	buf := make([]byte, ReadBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if chunk == relay.HandshakeToken {
				logging.Debug("Handshake requested, sending name %q", c.name)
				if werr := c.write(c.name); werr != nil {
					err = werr
				}
			} else {
				c.view.Render(chunk)
			}
		}
		if err != nil {
			if c.isClosed() {
				return nil
			}
			log.Printf("WARN: Connection to relay lost: %v", err)
			c.view.Render(ConnectionLost)
			c.Close()
			return fmt.Errorf("connection lost: %w", err)
		}
	}
}

// Send transmits "<name>: <text>". Blank input is ignored. A failed send
// is rendered and closes the connection.
func (c *Client) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := c.write(c.name + ": " + text); err != nil {
		log.Printf("ERROR: Failed to send message: %v", err)
		c.view.Render(SendFailed)
		c.Close()
		return err
	}
	return nil
}

// Close drops the connection. Run returns nil afterwards.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) write(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(s))
	return err
}
