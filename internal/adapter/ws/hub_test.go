package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeObserver records sent messages and can be made to fail.
type fakeObserver struct {
	mu     sync.Mutex
	sent   []Message
	fail   bool
	closed int
}

func (f *fakeObserver) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeObserver) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeObserver) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.Total() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.Total())
	}
}

func TestBroadcastScopedToProject(t *testing.T) {
	hub := NewHub()
	a, b, other := &fakeObserver{}, &fakeObserver{}, &fakeObserver{}
	hub.Connect("p1", a)
	hub.Connect("p1", b)
	hub.Connect("p2", other)

	hub.BroadcastEvent(context.Background(), "p1", "agent_pulse", map[string]string{"agent": "Curator"})

	if len(a.messages()) != 1 || len(b.messages()) != 1 {
		t.Fatalf("expected both p1 observers to receive, got %d and %d", len(a.messages()), len(b.messages()))
	}
	if len(other.messages()) != 0 {
		t.Fatal("p2 observer must not receive p1 events")
	}
	if got := a.messages()[0]; got.Type != "agent_pulse" || string(got.Data) != `{"agent":"Curator"}` {
		t.Fatalf("unexpected message %s %s", got.Type, got.Data)
	}
}

func TestBroadcastDropsFailingObserver(t *testing.T) {
	hub := NewHub()
	good, bad := &fakeObserver{}, &fakeObserver{fail: true}
	hub.Connect("p1", good)
	hub.Connect("p1", bad)

	hub.BroadcastEvent(context.Background(), "p1", "telemetry_log", map[string]string{"stage": "ingest"})

	if hub.ConnectionCount("p1") != 1 {
		t.Fatalf("expected failing observer removed, got %d", hub.ConnectionCount("p1"))
	}
	if bad.closed != 1 {
		t.Fatalf("expected failing observer closed once, got %d", bad.closed)
	}
	if len(good.messages()) != 1 {
		t.Fatal("healthy observer should still receive the event")
	}

	hub.BroadcastEvent(context.Background(), "p1", "telemetry_log", nil)
	if len(good.messages()) != 2 {
		t.Fatal("healthy observer should keep receiving")
	}
}

func TestBroadcastNoObservers(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent(context.Background(), "nobody", "agent_pulse", map[string]string{})
}

func TestBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()
	o := &fakeObserver{}
	hub.Connect("p1", o)

	hub.BroadcastEvent(context.Background(), "p1", "bad", make(chan int))
	if len(o.messages()) != 0 {
		t.Fatal("unmarshalable payload must not be sent")
	}
}

func TestDisconnect(t *testing.T) {
	hub := NewHub()
	o := &fakeObserver{}
	hub.Connect("p1", o)

	hub.Disconnect("p1", o)
	hub.Disconnect("p1", o)
	hub.Disconnect("p2", &fakeObserver{})

	if hub.Total() != 0 {
		t.Fatalf("expected no observers, got %d", hub.Total())
	}
	if o.closed != 1 {
		t.Fatalf("expected one close, got %d", o.closed)
	}
}
