package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davidahmann/tempo/core/journal"
	"github.com/davidahmann/tempo/core/measurements"
	"github.com/davidahmann/tempo/core/outbox"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
	"github.com/davidahmann/tempo/internal/testutil"
)

func checkStatus(checks []Check, name string, status string) bool {
	for _, check := range checks {
		if check.Name == name {
			return check.Status == status
		}
	}
	return false
}

func healthyStore(t *testing.T) (*slotstore.FileStore, slotstore.Layout) {
	t.Helper()
	store, layout := testutil.NewFileStore(t, "Task 1", "Task 2")
	log := measurements.NewLog(store, layout, tasks.NewRegistry(store, layout))
	if _, err := log.Open(1, 1000); err != nil {
		t.Fatalf("open: %v", err)
	}
	return store, layout
}

func TestRunPassesOnHealthyStore(t *testing.T) {
	store, layout := healthyStore(t)
	outboxPath := filepath.Join(t.TempDir(), "outbox.jsonl")
	if err := outbox.NewFile(outboxPath).Send(context.Background(), "Sync;Task 1#1000#1090"); err != nil {
		t.Fatalf("send: %v", err)
	}
	journalPath := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := journal.Append(journalPath, journal.NewEvent("start", "idle", "tracking", nil, time.Now())); err != nil {
		t.Fatalf("append journal: %v", err)
	}

	result := Run(Options{
		StoreDir:        store.Dir(),
		Store:           store,
		Layout:          layout,
		OutboxPath:      outboxPath,
		JournalPath:     journalPath,
		ProducerVersion: "test",
		Now:             time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC),
	})
	if result.Status != statusPass {
		t.Fatalf("expected pass, got %s: %+v", result.Status, result.Checks)
	}
	if len(result.Checks) != 7 {
		t.Fatalf("unexpected checks count: %d", len(result.Checks))
	}
	if result.CreatedAt != "2026-10-18T09:00:00Z" || len(result.FixCommands) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunFlagsCrashLeftoversAndRepairFixesThem(t *testing.T) {
	store, layout := healthyStore(t)
	// An open record written without its pointer update, plus a dangling replace.
	if err := store.WriteRecord(layout.MeasurementsStart+1, measurements.Measurement{TaskID: 2, Start: 2000}); err != nil {
		t.Fatalf("write orphan: %v", err)
	}
	if err := slotstore.BeginIntent(store, layout, slotstore.IntentReplaceTasks); err != nil {
		t.Fatalf("begin intent: %v", err)
	}

	result := Run(Options{Store: store, Layout: layout})
	if result.Status != statusWarn {
		t.Fatalf("expected warn, got %s: %+v", result.Status, result.Checks)
	}
	if !checkStatus(result.Checks, "pending_intent", statusWarn) || !checkStatus(result.Checks, "measurements", statusWarn) {
		t.Fatalf("expected intent and measurement warnings: %+v", result.Checks)
	}
	if len(result.FixCommands) != 1 || result.FixCommands[0] != repairCommand {
		t.Fatalf("unexpected fix commands %v", result.FixCommands)
	}

	repaired, err := Repair(store, layout)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !repaired.DroppedReplaceMarker || len(repaired.Measurements.ClosedSlots) != 1 || !repaired.Changed() {
		t.Fatalf("unexpected repair result %+v", repaired)
	}
	after := Run(Options{Store: store, Layout: layout})
	if after.Status != statusPass {
		t.Fatalf("expected pass after repair, got %+v", after.Checks)
	}
	again, err := Repair(store, layout)
	if err != nil || again.Changed() {
		t.Fatalf("expected second repair to be a no-op, got %+v err=%v", again, err)
	}
}

func TestRunFlagsCorruptSlotAsNonFixable(t *testing.T) {
	store, layout := healthyStore(t)
	path := filepath.Join(store.Dir(), layout.TaskStart.String())
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupt slot: %v", err)
	}
	result := Run(Options{Store: store, Layout: layout})
	if result.Status != statusFail || !result.NonFixable || !checkStatus(result.Checks, "slots", statusFail) {
		t.Fatalf("expected non-fixable slot failure, got %+v", result)
	}
}

func TestRunWarnsOnGaps(t *testing.T) {
	store := slotstore.NewMemoryStore()
	layout := slotstore.DefaultLayout()
	if err := store.WriteString(layout.TaskStart+2, "Stranded"); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := Run(Options{Store: store, Layout: layout})
	if !checkStatus(result.Checks, "gaps", statusWarn) {
		t.Fatalf("expected gap warning: %+v", result.Checks)
	}
}

func TestRunStoreDirAndLayoutFailures(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	result := Run(Options{StoreDir: missing, Layout: slotstore.Layout{}})
	if !checkStatus(result.Checks, "store_dir", statusFail) || !checkStatus(result.Checks, "layout", statusFail) {
		t.Fatalf("expected store_dir and layout failures: %+v", result.Checks)
	}
	if result.ProducerVersion != "0.0.0-dev" {
		t.Fatalf("unexpected producer version %q", result.ProducerVersion)
	}

	broken := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := os.WriteFile(broken, []byte("nope\n"), 0o600); err != nil {
		t.Fatalf("write journal: %v", err)
	}
	result = Run(Options{JournalPath: broken, OutboxPath: filepath.Join(t.TempDir(), "none.jsonl")})
	if !checkStatus(result.Checks, "journal", statusWarn) || !checkStatus(result.Checks, "outbox", statusPass) {
		t.Fatalf("unexpected journal/outbox checks: %+v", result.Checks)
	}
}

func TestShellQuote(t *testing.T) {
	if shellQuote("") != "''" || shellQuote("a'b") != `'a'\''b'` {
		t.Fatalf("unexpected quoting")
	}
}
