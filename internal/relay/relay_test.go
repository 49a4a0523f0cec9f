package relay

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stlalpha/chatrelay/internal/registry"
)

// peer pairs the relay-side end of a pipe with the client-side end.
type peer struct {
	client, server net.Conn
}

func newPeer(t *testing.T) peer {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return peer{client: c, server: s}
}

func readExactly(t *testing.T, conn net.Conn, n int) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read %d bytes: %v", n, err)
	}
	return string(buf)
}

func expectSilence(t *testing.T, conn net.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 64)
	if n, err := conn.Read(buf); err == nil || n > 0 {
		t.Errorf("expected no data, got %q (err %v)", buf[:n], err)
	}
}

func TestBroadcastSkipsOrigin(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	a, b, c := newPeer(t), newPeer(t), newPeer(t)
	reg.Register(a.server, "alice")
	reg.Register(b.server, "bob")
	reg.Register(c.server, "carol")

	done := make(chan int, 1)
	go func() { done <- rl.Broadcast([]byte("bob: hi"), b.server) }()

	if got := readExactly(t, a.client, len("bob: hi")); got != "bob: hi" {
		t.Errorf("alice got %q", got)
	}
	if got := readExactly(t, c.client, len("bob: hi")); got != "bob: hi" {
		t.Errorf("carol got %q", got)
	}
	if queued := <-done; queued != 2 {
		t.Errorf("expected 2 queued, got %d", queued)
	}
	expectSilence(t, b.client)
}

func TestBroadcastNilOriginReachesEveryone(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	a, b := newPeer(t), newPeer(t)
	reg.Register(a.server, "alice")
	reg.Register(b.server, "bob")

	done := make(chan int, 1)
	go func() { done <- rl.Announce("maintenance at noon") }()

	for _, p := range []peer{a, b} {
		if got := readExactly(t, p.client, len("maintenance at noon")); got != "maintenance at noon" {
			t.Errorf("got %q", got)
		}
	}
	if queued := <-done; queued != 2 {
		t.Errorf("expected 2 queued, got %d", queued)
	}
}

// waitDropped polls until conn has left the registry.
func waitDropped(t *testing.T, reg *registry.Registry, conn net.Conn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for reg.Contains(conn) {
		if time.Now().After(deadline) {
			t.Fatal("connection was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDropsFailedPeer(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	a, b, c := newPeer(t), newPeer(t), newPeer(t)
	reg.Register(a.server, "alice")
	reg.Register(b.server, "bob")
	reg.Register(c.server, "carol")

	// Bob's side of the pipe is gone, so writes to him fail.
	b.client.Close()

	if queued := rl.Broadcast([]byte("hello"), nil); queued != 3 {
		t.Errorf("expected 3 queued, got %d", queued)
	}

	readExactly(t, a.client, len("hello"))
	readExactly(t, c.client, len("hello"))

	waitDropped(t, reg, b.server)
	if reg.Len() != 2 {
		t.Errorf("expected 2 remaining connections, got %d", reg.Len())
	}
}

func TestBroadcastStalledPeerDoesNotBlockOthers(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 50*time.Millisecond)

	stalled, a := newPeer(t), newPeer(t)
	reg.Register(stalled.server, "stalled")
	reg.Register(a.server, "alice")

	done := make(chan int, 1)
	go func() { done <- rl.Broadcast([]byte("ping"), nil) }()

	select {
	case queued := <-done:
		if queued != 2 {
			t.Errorf("expected 2 queued, got %d", queued)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast waited on the stalled peer")
	}

	// Nobody reads from the stalled peer; alice still gets the payload.
	if got := readExactly(t, a.client, len("ping")); got != "ping" {
		t.Errorf("alice got %q", got)
	}
	waitDropped(t, reg, stalled.server)
}

func TestBroadcastFullQueueDropsPeer(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	stalled, a := newPeer(t), newPeer(t)
	reg.Register(stalled.server, "stalled")
	reg.Register(a.server, "alice")

	// No write deadline and nobody reading: the stalled writer blocks on its
	// first payload while the rest pile up in its queue. Alice reads each
	// payload before the next one is broadcast.
	const msg = "tick|"
	for i := 0; i < QueueSize+2; i++ {
		rl.Broadcast([]byte(msg), nil)
		if got := readExactly(t, a.client, len(msg)); got != msg {
			t.Fatalf("round %d: alice got %q", i, got)
		}
	}

	waitDropped(t, reg, stalled.server)
	if !reg.Contains(a.server) {
		t.Error("alice should still be registered")
	}
}

func TestBroadcastCopiesPayload(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	origin, a := newPeer(t), newPeer(t)
	reg.Register(origin.server, "bob")
	reg.Register(a.server, "alice")

	buf := []byte("first")
	rl.Broadcast(buf, origin.server)
	copy(buf, "XXXXX")

	if got := readExactly(t, a.client, len("first")); got != "first" {
		t.Errorf("alice got %q", got)
	}
}

func TestSendQueuesBehindBroadcasts(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	a, b := newPeer(t), newPeer(t)
	reg.Register(a.server, "alice")
	reg.Register(b.server, "bob")

	rl.Broadcast([]byte("bob joined|"), b.server)
	if !rl.Send(a.server, []byte("welcome|")) {
		t.Fatal("send to a registered peer should be queued")
	}
	if got := readExactly(t, a.client, len("bob joined|welcome|")); got != "bob joined|welcome|" {
		t.Errorf("alice got %q", got)
	}
	expectSilence(t, b.client)

	stranger := newPeer(t)
	if rl.Send(stranger.server, []byte("hi")) {
		t.Error("send to an unregistered connection should fail")
	}
}

func TestReleaseStopsDelivery(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	a := newPeer(t)
	reg.Register(a.server, "alice")
	rl.Announce("one|")
	readExactly(t, a.client, len("one|"))

	reg.Deregister(a.server)
	rl.Release(a.server)
	if queued := rl.Announce("two|"); queued != 0 {
		t.Errorf("expected nothing queued after release, got %d", queued)
	}
	expectSilence(t, a.client)
}

func TestBroadcastPreservesOrderPerOrigin(t *testing.T) {
	reg := registry.NewRegistry()
	rl := New(reg, 0)

	origin, a := newPeer(t), newPeer(t)
	reg.Register(origin.server, "bob")
	reg.Register(a.server, "alice")

	msgs := []string{"one|", "two|", "three|"}
	go func() {
		for _, m := range msgs {
			rl.Broadcast([]byte(m), origin.server)
		}
	}()

	got := readExactly(t, a.client, len("one|two|three|"))
	if got != "one|two|three|" {
		t.Errorf("messages out of order: %q", got)
	}
}
