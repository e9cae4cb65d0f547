package journal

import "time"

const (
	EventSchemaID = "tempo.journal.event"
	EventSchemaV1 = "1.0.0"
)

// Event records one tracking transition. Slot is 0 when the transition wrote no
// measurement.
type Event struct {
	SchemaID      string    `json:"schema_id"`
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Action        string    `json:"action"`
	StateBefore   string    `json:"state_before"`
	StateAfter    string    `json:"state_after"`
	TaskID        int       `json:"task_id,omitempty"`
	Slot          int       `json:"slot,omitempty"`
	Message       string    `json:"message,omitempty"`
	ErrorCategory string    `json:"error_category"`
	Error         string    `json:"error,omitempty"`
}
