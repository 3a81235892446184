// Package broadcast defines the port for broadcasting real-time events to
// the live observers of a project.
package broadcast

import "context"

// Event types sent over the live project channel.
const (
	EventConnected    = "connected"
	EventPong         = "pong"
	EventHeartbeat    = "heartbeat"
	EventAgentPulse   = "agent_pulse"
	EventTelemetryLog = "telemetry_log"
	EventRunUpdate    = "run_update"
)

// Broadcaster delivers events to every observer of a project. Delivery is
// best-effort and at-most-once; there is no replay for late observers.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, projectID, eventType string, payload any)
}
