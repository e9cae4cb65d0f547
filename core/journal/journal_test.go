package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	schemajournal "github.com/davidahmann/tempo/core/schema/v1/journal"
)

func TestAppendLoadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.jsonl")
	journal, err := New(path)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	base := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	start := NewEvent("start", "idle", "tracking", nil, base)
	start.TaskID = 1
	start.Slot = 50
	failed := NewEvent("sync", "tracking", "tracking", coreerrors.Wrap(fmt.Errorf("boom"), coreerrors.CategoryDeliveryFailed, "x", "", true), base.Add(time.Minute))
	failed.Message = "Sync failed."
	for _, event := range []schemajournal.Event{start, failed} {
		if err := journal.Append(event); err != nil {
			t.Fatalf("append %s: %v", event.Action, err)
		}
	}

	events, err := Load(journal.Path())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events got %d", len(events))
	}
	if events[0].ErrorCategory != "none" || events[0].Slot != 50 || events[0].CreatedAt.Location() != time.UTC {
		t.Fatalf("unexpected first event: %#v", events[0])
	}
	if events[1].ErrorCategory != "delivery_failed" || events[1].Error != "boom" || events[1].Message != "Sync failed." {
		t.Fatalf("unexpected second event: %#v", events[1])
	}
}

func TestNewEventClassifiesPlainErrors(t *testing.T) {
	event := NewEvent("end", "tracking", "idle", fmt.Errorf("disk"), time.Time{})
	if event.ErrorCategory != "internal_failure" {
		t.Fatalf("unexpected category %q", event.ErrorCategory)
	}
	if event.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to default to now")
	}
}

func TestEventValidation(t *testing.T) {
	valid := NewEvent("start", "idle", "tracking", nil, time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC))
	if _, err := normalizeEvent(valid); err != nil {
		t.Fatalf("normalize valid event: %v", err)
	}
	cases := map[string]func(*schemajournal.Event){
		"schema_id":      func(event *schemajournal.Event) { event.SchemaID = "other" },
		"schema_version": func(event *schemajournal.Event) { event.SchemaVersion = "2.0.0" },
		"created_at":     func(event *schemajournal.Event) { event.CreatedAt = time.Time{} },
		"action":         func(event *schemajournal.Event) { event.Action = " " },
		"state_before":   func(event *schemajournal.Event) { event.StateBefore = "paused" },
		"state_after":    func(event *schemajournal.Event) { event.StateAfter = "" },
		"slot":           func(event *schemajournal.Event) { event.Slot = -1 },
		"category_empty": func(event *schemajournal.Event) { event.ErrorCategory = "" },
		"category_value": func(event *schemajournal.Event) { event.ErrorCategory = "policy_blocked" },
	}
	for name, mutate := range cases {
		event := valid
		mutate(&event)
		if _, err := normalizeEvent(event); err == nil {
			t.Fatalf("%s: expected validation failure", name)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := New(" "); err == nil {
		t.Fatalf("expected empty path to fail")
	}
	if err := Append("", NewEvent("start", "idle", "tracking", nil, time.Now())); err == nil {
		t.Fatalf("expected append without path to fail")
	}
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Fatalf("expected missing journal to fail")
	}
	bad := filepath.Join(dir, "bad.jsonl")
	if err := os.WriteFile(bad, []byte("{not json}\n"), 0o600); err != nil {
		t.Fatalf("write bad journal: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected malformed journal to fail")
	}
}
