// Package event defines transient broadcast records.
package event

import "time"

// PulseStatus is the display state of a pulse.
type PulseStatus string

const (
	PulseProcessing PulseStatus = "processing"
	PulseCompleted  PulseStatus = "completed"
	PulseError      PulseStatus = "error"
)

// Pulse describes an agent action. Pulses are broadcast, never persisted.
type Pulse struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Agent     string      `json:"agent"`
	Action    string      `json:"action"`
	Target    string      `json:"target"`
	Source    string      `json:"source"`
	Status    PulseStatus `json:"status"`
	Details   any         `json:"details,omitempty"`
}

// Connected is sent to an observer right after it joins a project channel.
type Connected struct {
	ProjectID string    `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`
}
