package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/fsx"
	schemajournal "github.com/davidahmann/tempo/core/schema/v1/journal"
)

var knownStates = map[string]struct{}{
	"idle":     {},
	"tracking": {},
}

type Journal struct {
	path string
}

func New(path string) (*Journal, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	return &Journal{path: trimmedPath}, nil
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Append(event schemajournal.Event) error {
	return Append(j.path, event)
}

// NewEvent fills in the schema fields. A nil err records error_category "none";
// an unclassified one records internal_failure.
func NewEvent(action, before, after string, err error, now time.Time) schemajournal.Event {
	createdAt := now.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	event := schemajournal.Event{
		SchemaID:      schemajournal.EventSchemaID,
		SchemaVersion: schemajournal.EventSchemaV1,
		CreatedAt:     createdAt,
		Action:        strings.TrimSpace(action),
		StateBefore:   before,
		StateAfter:    after,
		ErrorCategory: "none",
	}
	if err != nil {
		event.ErrorCategory = string(coreerrors.CategoryInternalFailure)
		if detail, ok := coreerrors.Describe(err); ok {
			event.ErrorCategory = string(detail.Category)
		}
		event.Error = err.Error()
	}
	return event
}

func Append(path string, event schemajournal.Event) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("journal path is required")
	}
	normalized, err := normalizeEvent(event)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	if err := fsx.AppendLineLocked(trimmedPath, encoded, 0o600); err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

func Load(path string) ([]schemajournal.Event, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	// #nosec G304 -- journal path is explicit local user input.
	file, err := os.Open(trimmedPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	events := make([]schemajournal.Event, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), fsx.MaxAppendLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var event schemajournal.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("parse journal line %d: %w", line, err)
		}
		normalized, err := normalizeEvent(event)
		if err != nil {
			return nil, fmt.Errorf("validate journal line %d: %w", line, err)
		}
		events = append(events, normalized)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return events, nil
}

func normalizeEvent(event schemajournal.Event) (schemajournal.Event, error) {
	if strings.TrimSpace(event.SchemaID) != schemajournal.EventSchemaID {
		return schemajournal.Event{}, fmt.Errorf("invalid schema_id %q", event.SchemaID)
	}
	if strings.TrimSpace(event.SchemaVersion) != schemajournal.EventSchemaV1 {
		return schemajournal.Event{}, fmt.Errorf("invalid schema_version %q", event.SchemaVersion)
	}
	if event.CreatedAt.IsZero() {
		return schemajournal.Event{}, fmt.Errorf("created_at is required")
	}
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return schemajournal.Event{}, fmt.Errorf("action is required")
	}
	before := strings.ToLower(strings.TrimSpace(event.StateBefore))
	after := strings.ToLower(strings.TrimSpace(event.StateAfter))
	if _, ok := knownStates[before]; !ok {
		return schemajournal.Event{}, fmt.Errorf("unsupported state_before %q", event.StateBefore)
	}
	if _, ok := knownStates[after]; !ok {
		return schemajournal.Event{}, fmt.Errorf("unsupported state_after %q", event.StateAfter)
	}
	if event.TaskID < 0 || event.Slot < 0 {
		return schemajournal.Event{}, fmt.Errorf("task_id and slot must not be negative")
	}
	category := strings.ToLower(strings.TrimSpace(event.ErrorCategory))
	if category == "" {
		return schemajournal.Event{}, fmt.Errorf("error_category is required")
	}
	if category != "none" && !coreerrors.Category(category).Valid() {
		return schemajournal.Event{}, fmt.Errorf("unsupported error_category %q", event.ErrorCategory)
	}
	return schemajournal.Event{
		SchemaID:      schemajournal.EventSchemaID,
		SchemaVersion: schemajournal.EventSchemaV1,
		CreatedAt:     event.CreatedAt.UTC(),
		Action:        action,
		StateBefore:   before,
		StateAfter:    after,
		TaskID:        event.TaskID,
		Slot:          event.Slot,
		Message:       event.Message,
		ErrorCategory: category,
		Error:         event.Error,
	}, nil
}
