// Package status serves a small operator HTTP API next to the relay.
package status

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stlalpha/chatrelay/internal/registry"
)

// Announcer sends a system line to every connected client.
type Announcer interface {
	Announce(text string) int
}

// Client is the JSON view of one registered connection.
type Client struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RemoteAddr string    `json:"remoteAddr"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type announceRequest struct {
	Message string `json:"message" binding:"required"`
}

// NewRouter builds the status routes over reg and announcer.
func NewRouter(reg *registry.Registry, announcer Announcer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/clients", func(c *gin.Context) {
		entries := reg.Snapshot()
		clients := make([]Client, len(entries))
		for i, e := range entries {
			clients[i] = Client{ID: e.ID, Name: e.Name, RemoteAddr: e.RemoteAddr, JoinedAt: e.JoinedAt}
		}
		c.JSON(http.StatusOK, gin.H{"count": len(clients), "clients": clients})
	})

	router.POST("/announce", func(c *gin.Context) {
		var req announceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		delivered := announcer.Announce(req.Message)
		log.Printf("INFO: Operator announcement delivered to %d client(s)", delivered)
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	})

	return router
}

// Server runs the status API until its context is cancelled.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a status server listening on addr.
func NewServer(addr string, reg *registry.Registry, announcer Announcer) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(reg, announcer),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves on l until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, l net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("INFO: Status API listening on %s", l.Addr())
		errCh <- s.httpServer.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ListenAndRun binds the configured address and calls Run.
func (s *Server) ListenAndRun(ctx context.Context) error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, l)
}
