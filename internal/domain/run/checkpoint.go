package run

import "time"

// Checkpoint is the last stage marker saved for a project's in-flight run.
type Checkpoint struct {
	Stage     Stage          `json:"stage"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Level is the severity of a telemetry entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// TelemetryEntry is one append-only log line of a run.
type TelemetryEntry struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}
