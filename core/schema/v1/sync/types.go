package sync

import (
	_ "embed"
	"time"
)

const (
	TaskListSchemaID     = "tempo.sync.tasks"
	OutboxRecordSchemaID = "tempo.sync.outbox_record"
	SchemaVersion        = "1.0.0"
)

//go:embed task_list.schema.json
var TaskListSchema []byte

//go:embed outbox_record.schema.json
var OutboxRecordSchema []byte

// TaskList is the inbound payload a paired device sends to replace all tasks.
type TaskList struct {
	SchemaID      string     `json:"schema_id"`
	SchemaVersion string     `json:"schema_version"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	Tasks         []string   `json:"tasks"`
}

// OutboxRecord is one outbound measurement sync as written to the outbox file.
type OutboxRecord struct {
	SchemaID      string    `json:"schema_id"`
	SchemaVersion string    `json:"schema_version"`
	BatchID       string    `json:"batch_id"`
	CreatedAt     time.Time `json:"created_at"`
	Payload       string    `json:"payload"`
	PayloadDigest string    `json:"payload_digest"`
}
