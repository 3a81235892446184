package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/NexusPM/internal/domain/event"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/port/broadcast"
)

// Client message types.
const (
	clientPing       = "ping"
	clientTriggerRun = "trigger_run"
)

// TriggerFunc starts a run for projectID. It must return without waiting for
// the pipeline to finish.
type TriggerFunc func(ctx context.Context, projectID string, req run.TriggerRequest) (*run.Run, error)

// Handler upgrades /ws/{project_id} requests and serves the observer loop.
type Handler struct {
	hub       *Hub
	trigger   TriggerFunc
	heartbeat time.Duration
}

// NewHandler creates a Handler. A zero heartbeat disables heartbeats.
func NewHandler(hub *Hub, trigger TriggerFunc, heartbeat time.Duration) *Handler {
	return &Handler{hub: hub, trigger: trigger, heartbeat: heartbeat}
}

// wsObserver adapts a websocket connection to Observer.
type wsObserver struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func (o *wsObserver) Send(ctx context.Context, data []byte) error {
	return o.conn.Write(ctx, websocket.MessageText, data)
}

func (o *wsObserver) Close() {
	o.cancel()
	_ = o.conn.Close(websocket.StatusNormalClosure, "")
}

// ServeHTTP accepts the connection and blocks until the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if projectID == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	o := &wsObserver{conn: conn, cancel: cancel}
	h.hub.Connect(projectID, o)
	defer h.hub.Disconnect(projectID, o)

	slog.Info("websocket connected", "project_id", projectID, "remote", r.RemoteAddr)

	h.send(ctx, o, broadcast.EventConnected, event.Connected{ProjectID: projectID, Timestamp: time.Now()})

	if h.heartbeat > 0 {
		go h.heartbeats(ctx, o)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Info("websocket disconnected", "project_id", projectID)
			return
		}
		h.dispatch(ctx, projectID, o, data)
	}
}

func (h *Handler) dispatch(ctx context.Context, projectID string, o Observer, data []byte) {
	var msg struct {
		Type string `json:"type"`
		run.TriggerRequest
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("websocket message ignored", "project_id", projectID, "error", err)
		return
	}

	switch msg.Type {
	case clientPing:
		h.send(ctx, o, broadcast.EventPong, nil)
	case clientTriggerRun:
		if h.trigger == nil {
			return
		}
		if _, err := h.trigger(ctx, projectID, msg.TriggerRequest); err != nil {
			slog.Error("websocket trigger failed", "project_id", projectID, "error", err)
		}
	}
}

func (h *Handler) heartbeats(ctx context.Context, o Observer) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			h.send(ctx, o, broadcast.EventHeartbeat, map[string]time.Time{"timestamp": t})
		}
	}
}

func (h *Handler) send(ctx context.Context, o Observer, eventType string, payload any) {
	msg := Message{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal ws payload", "type", eventType, "error", err)
			return
		}
		msg.Data = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := o.Send(sendCtx, data); err != nil {
		slog.Debug("websocket send failed", "type", eventType, "error", err)
	}
}
