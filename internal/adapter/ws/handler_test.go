package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

type triggerCall struct {
	projectID string
	req       run.TriggerRequest
}

func startServer(t *testing.T, hub *Hub, trigger TriggerFunc, heartbeat time.Duration) string {
	t.Helper()
	r := chi.NewRouter()
	r.Handle("/ws/{project_id}", NewHandler(hub, trigger, heartbeat))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func read(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func write(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	data, _ := json.Marshal(v)
	if err := c.Write(context.Background(), websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandlerConnectedPingPong(t *testing.T) {
	hub := NewHub()
	c := dial(t, startServer(t, hub, nil, 0)+"/ws/p1")

	first := read(t, c)
	if first.Type != "connected" || !strings.Contains(string(first.Data), `"project_id":"p1"`) {
		t.Fatalf("unexpected greeting %s %s", first.Type, first.Data)
	}
	waitFor(t, func() bool { return hub.ConnectionCount("p1") == 1 })

	write(t, c, map[string]string{"type": "ping"})
	if m := read(t, c); m.Type != "pong" {
		t.Fatalf("expected pong, got %s", m.Type)
	}
}

func TestHandlerTriggerRun(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []triggerCall
	)
	trigger := func(_ context.Context, projectID string, req run.TriggerRequest) (*run.Run, error) {
		mu.Lock()
		calls = append(calls, triggerCall{projectID, req})
		mu.Unlock()
		return &run.Run{ID: "r1"}, nil
	}
	c := dial(t, startServer(t, NewHub(), trigger, 0)+"/ws/p1")
	read(t, c)

	write(t, c, map[string]any{"type": "trigger_run", "description": "from ws", "sources": []string{"slack"}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if calls[0].projectID != "p1" || calls[0].req.Description != "from ws" {
		t.Fatalf("unexpected trigger call %+v", calls[0])
	}
	if len(calls[0].req.Sources) != 1 || calls[0].req.Sources[0] != signal.SourceSlack {
		t.Fatalf("unexpected sources %v", calls[0].req.Sources)
	}
}

func TestHandlerReceivesBroadcastAndHeartbeat(t *testing.T) {
	hub := NewHub()
	c := dial(t, startServer(t, hub, nil, 50*time.Millisecond)+"/ws/p1")
	read(t, c)
	waitFor(t, func() bool { return hub.ConnectionCount("p1") == 1 })

	hub.BroadcastEvent(context.Background(), "p1", "telemetry_log", map[string]string{"stage": "reason"})

	sawTelemetry, sawHeartbeat := false, false
	for range 10 {
		switch read(t, c).Type {
		case "telemetry_log":
			sawTelemetry = true
		case "heartbeat":
			sawHeartbeat = true
		}
		if sawTelemetry && sawHeartbeat {
			break
		}
	}
	if !sawTelemetry || !sawHeartbeat {
		t.Fatalf("telemetry=%v heartbeat=%v", sawTelemetry, sawHeartbeat)
	}
}

func TestHandlerDisconnectRemovesObserver(t *testing.T) {
	hub := NewHub()
	c := dial(t, startServer(t, hub, nil, 0)+"/ws/p1")
	read(t, c)
	waitFor(t, func() bool { return hub.ConnectionCount("p1") == 1 })

	_ = c.Close(websocket.StatusNormalClosure, "bye")
	waitFor(t, func() bool { return hub.ConnectionCount("p1") == 0 })
}
