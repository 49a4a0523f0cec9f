// Package registry tracks the connections currently admitted to the relay
// and the display name each one registered with.
package registry

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one registered connection.
type Entry struct {
	ID         string // Log correlation only, never sent on the wire
	Conn       net.Conn
	Name       string
	RemoteAddr string
	JoinedAt   time.Time
}

// Registry is the set of live connections, kept in insertion order.
// A connection appears at most once; display names may repeat.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[net.Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[net.Conn]struct{}),
	}
}

// Register adds conn under name. Registering the same connection twice is a
// caller bug and panics.
func (r *Registry) Register(conn net.Conn, name string) Entry {
	e := Entry{
		ID:       uuid.NewString(),
		Conn:     conn,
		Name:     name,
		JoinedAt: time.Now(),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		e.RemoteAddr = addr.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[conn]; ok {
		panic("registry: connection registered twice")
	}
	r.index[conn] = struct{}{}
	r.entries = append(r.entries, e)
	return e
}

// Deregister removes conn and returns the name it was registered with.
// ok is false when conn is not (or no longer) registered.
func (r *Registry) Deregister(conn net.Conn) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[conn]; !ok {
		return "", false
	}
	delete(r.index, conn)
	for i, e := range r.entries {
		if e.Conn == conn {
			name = e.Name
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return name, true
}

// Contains reports whether conn is registered.
func (r *Registry) Contains(conn net.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[conn]
	return ok
}

// Lookup returns the entry registered for conn.
func (r *Registry) Lookup(conn net.Conn) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.index[conn]; !ok {
		return Entry{}, false
	}
	for _, e := range r.entries {
		if e.Conn == conn {
			return e, true
		}
	}
	return Entry{}, false
}

// Snapshot returns a copy of the registered entries in insertion order.
// The copy is safe to iterate while other goroutines register or deregister.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CountByHost returns how many registered connections come from host.
func (r *Registry) CountByHost(host string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		h, _, err := net.SplitHostPort(e.RemoteAddr)
		if err != nil {
			h = e.RemoteAddr
		}
		if h == host {
			n++
		}
	}
	return n
}
