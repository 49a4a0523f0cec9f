// Package relay implements the broadcast fan-out and the TCP server that
// admits clients into it.
package relay

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/stlalpha/chatrelay/internal/logging"
	"github.com/stlalpha/chatrelay/internal/registry"
)

// QueueSize is how many payloads may wait for one peer before the peer is
// dropped as too slow.
const QueueSize = 256

// outbox is the pending output of one registered connection, drained by a
// single writer goroutine.
type outbox struct {
	entry registry.Entry
	send  chan []byte
	quit  chan struct{}
	once  sync.Once
}

func (o *outbox) stop() {
	o.once.Do(func() { close(o.quit) })
}

// Relay delivers payloads to every registered connection.
type Relay struct {
	reg          *registry.Registry
	writeTimeout time.Duration

	mu       sync.Mutex
	outboxes map[net.Conn]*outbox
}

// New creates a relay over reg. A zero writeTimeout means peer writes
// carry no deadline.
func New(reg *registry.Registry, writeTimeout time.Duration) *Relay {
	return &Relay{
		reg:          reg,
		writeTimeout: writeTimeout,
		outboxes:     make(map[net.Conn]*outbox),
	}
}

// Registry returns the registry the relay fans out over.
func (r *Relay) Registry() *registry.Registry {
	return r.reg
}

// Broadcast queues payload, unmodified, for every registered connection
// except origin. A nil origin reaches everyone. The call never waits on a
// peer's socket; each peer's writer delivers its queue in order.
//
// A peer whose queue is full, or whose write fails, is closed and
// deregistered. Its receive loop notices on the next read and announces the
// departure.
//
// Returns the number of peers the payload was queued for.
func (r *Relay) Broadcast(payload []byte, origin net.Conn) int {
	peers := r.reg.Snapshot()
	r.prune(peers)

	msg := append([]byte(nil), payload...)
	queued := 0
	for _, peer := range peers {
		if origin != nil && peer.Conn == origin {
			continue
		}
		if r.enqueue(r.outboxFor(peer), msg) {
			queued++
		}
	}
	return queued
}

// Announce sends a system line to every registered connection.
func (r *Relay) Announce(text string) int {
	return r.Broadcast([]byte(text), nil)
}

// Send queues payload for conn alone, behind anything already queued for it.
// It reports false when conn is not registered or was dropped.
func (r *Relay) Send(conn net.Conn, payload []byte) bool {
	entry, ok := r.reg.Lookup(conn)
	if !ok {
		return false
	}
	return r.enqueue(r.outboxFor(entry), append([]byte(nil), payload...))
}

// Release stops the writer for conn. The server calls it once the
// connection has been deregistered.
func (r *Relay) Release(conn net.Conn) {
	r.mu.Lock()
	o, ok := r.outboxes[conn]
	delete(r.outboxes, conn)
	r.mu.Unlock()
	if ok {
		o.stop()
	}
}

func (r *Relay) outboxFor(entry registry.Entry) *outbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.outboxes[entry.Conn]; ok {
		return o
	}
	if !r.reg.Contains(entry.Conn) {
		return nil // Left after the snapshot was taken
	}
	o := &outbox{
		entry: entry,
		send:  make(chan []byte, QueueSize),
		quit:  make(chan struct{}),
	}
	r.outboxes[entry.Conn] = o
	go r.writePump(o)
	return o
}

// prune stops writers whose connection left the registry without a Release.
func (r *Relay) prune(peers []registry.Entry) {
	live := make(map[net.Conn]struct{}, len(peers))
	for _, p := range peers {
		live[p.Conn] = struct{}{}
	}
	r.mu.Lock()
	var stale []*outbox
	for conn, o := range r.outboxes {
		if _, ok := live[conn]; !ok {
			stale = append(stale, o)
			delete(r.outboxes, conn)
		}
	}
	r.mu.Unlock()
	for _, o := range stale {
		o.stop()
	}
}

func (r *Relay) enqueue(o *outbox, msg []byte) bool {
	if o == nil {
		return false
	}
	select {
	case <-o.quit:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	default:
		r.drop(o, "send queue full")
		return false
	}
}

func (r *Relay) writePump(o *outbox) {
	for {
		select {
		case msg := <-o.send:
			if err := r.write(o.entry.Conn, msg); err != nil {
				r.drop(o, err.Error())
				return
			}
		case <-o.quit:
			return
		}
	}
}

func (r *Relay) drop(o *outbox, reason string) {
	peer := o.entry
	log.Printf("WARN: Delivery to %s (%s) failed, dropping connection: %s", peer.Name, peer.RemoteAddr, reason)
	peer.Conn.Close()
	if _, ok := r.reg.Deregister(peer.Conn); ok {
		logging.Debug("Deregistered %s [%s] after delivery failure", peer.Name, peer.ID)
	}
	r.Release(peer.Conn)
}

func (r *Relay) write(conn net.Conn, payload []byte) error {
	if r.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
	}
	_, err := conn.Write(payload)
	return err
}
