// Package ws implements the per-project live event stream over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/broadcast"
)

// sendTimeout bounds a single observer write so one slow client cannot
// stall delivery to the others.
const sendTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Observer is one live subscriber of a project channel.
type Observer interface {
	Send(ctx context.Context, data []byte) error
	Close()
}

var _ broadcast.Broadcaster = (*Hub)(nil)

// Hub tracks observers per project and fans events out to them.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]map[Observer]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{observers: make(map[string]map[Observer]struct{})}
}

// Connect registers o for projectID.
func (h *Hub) Connect(projectID string, o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.observers[projectID]
	if !ok {
		set = make(map[Observer]struct{})
		h.observers[projectID] = set
	}
	set[o] = struct{}{}
}

// Disconnect removes o from projectID and closes it. Unknown observers are ignored.
func (h *Hub) Disconnect(projectID string, o Observer) {
	h.mu.Lock()
	set, ok := h.observers[projectID]
	if ok {
		if _, member := set[o]; !member {
			ok = false
		}
		delete(set, o)
		if len(set) == 0 {
			delete(h.observers, projectID)
		}
	}
	h.mu.Unlock()

	if ok {
		o.Close()
	}
}

// Broadcast delivers msg to every observer of projectID. An observer whose
// send fails is removed; the others still receive the message.
func (h *Hub) Broadcast(ctx context.Context, projectID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers[projectID]))
	for o := range h.observers[projectID] {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	for _, o := range targets {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := o.Send(sendCtx, data)
		cancel()
		if err != nil {
			slog.Debug("websocket send failed, dropping observer", "project_id", projectID, "error", err)
			h.Disconnect(projectID, o)
		}
	}
}

// BroadcastEvent marshals payload into a typed message for projectID.
func (h *Hub) BroadcastEvent(ctx context.Context, projectID, eventType string, payload any) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal ws event payload", "type", eventType, "error", err)
			return
		}
		data = raw
	}
	h.Broadcast(ctx, projectID, Message{Type: eventType, Data: data})
}

// ConnectionCount returns the number of observers of projectID.
func (h *Hub) ConnectionCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[projectID])
}

// Total returns the number of observers across all projects.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.observers {
		n += len(set)
	}
	return n
}
