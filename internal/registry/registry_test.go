package registry

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// fakeConn records received events and optionally fails every send.
type fakeConn struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("send failed")
	}

	c.events = append(c.events, v)
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterDeregister(t *testing.T) {
	reg := New(testLogger(), nil)

	a := &fakeConn{}
	b := &fakeConn{}

	reg.Register(a)
	reg.Register(b)

	if got := reg.Count(); got != 2 {
		t.Errorf("Expected 2 connections, got %d", got)
	}

	reg.Deregister(a)

	if got := reg.Count(); got != 1 {
		t.Errorf("Expected 1 connection, got %d", got)
	}

	// Deregistering an unknown connection is a no-op.
	reg.Deregister(a)

	if got := reg.Count(); got != 1 {
		t.Errorf("Expected 1 connection after duplicate deregister, got %d", got)
	}
}

func TestBroadcastDeliversToAll(t *testing.T) {
	reg := New(testLogger(), nil)

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		reg.Register(c)
	}

	reg.Broadcast("event")

	for i, c := range conns {
		if got := c.received(); got != 1 {
			t.Errorf("Connection %d: expected 1 event, got %d", i, got)
		}
	}
}

func TestBroadcastRemovesFailedConnections(t *testing.T) {
	reg := New(testLogger(), nil)

	healthy := &fakeConn{}
	broken := &fakeConn{fail: true}

	reg.Register(healthy)
	reg.Register(broken)

	reg.Broadcast("event")

	if got := healthy.received(); got != 1 {
		t.Errorf("Expected healthy connection to receive event, got %d", got)
	}

	if got := reg.Count(); got != 1 {
		t.Errorf("Expected failed connection removed, count %d", got)
	}

	// A second broadcast only reaches the survivor.
	reg.Broadcast("event")

	if got := healthy.received(); got != 2 {
		t.Errorf("Expected 2 events on healthy connection, got %d", got)
	}
}

func TestBroadcastAllFailuresDoesNotPanic(t *testing.T) {
	reg := New(testLogger(), nil)

	for i := 0; i < 5; i++ {
		reg.Register(&fakeConn{fail: true})
	}

	reg.Broadcast("event")

	if got := reg.Count(); got != 0 {
		t.Errorf("Expected all failed connections removed, count %d", got)
	}
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	reg := New(testLogger(), nil)
	reg.Broadcast("event") // must not panic
}

func TestConcurrentRegisterBroadcastDeregister(t *testing.T) {
	reg := New(testLogger(), nil)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			reg.Register(c)
			reg.Broadcast("event")
			reg.Deregister(c)
		}()
	}

	wg.Wait()

	if got := reg.Count(); got != 0 {
		t.Errorf("Expected empty registry after concurrent churn, got %d", got)
	}
}
