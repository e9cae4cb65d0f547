package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/davidahmann/tempo/core/measurements"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
)

func seededStore(t *testing.T) (slotstore.Store, slotstore.Layout) {
	t.Helper()
	store := slotstore.NewMemoryStore()
	layout := slotstore.DefaultLayout()
	registry := tasks.NewRegistry(store, layout)
	if err := registry.ReplaceAll([]string{"Task 1", "Task 2", "Task 3"}); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
	log := measurements.NewLog(store, layout, registry)
	if _, err := log.Open(1, 1000); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := log.Open(3, 1090); err != nil {
		t.Fatalf("open: %v", err)
	}
	return store, layout
}

func TestBuildCapturesEverySlot(t *testing.T) {
	store, layout := seededStore(t)
	// A gap hides task 3 from the registry but not from the export.
	if err := store.Delete(layout.TaskStart + 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snapshot, err := Build(store, layout, Options{Now: time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(snapshot.Tasks) != 2 || !snapshot.Tasks[0].Reachable || snapshot.Tasks[1].Reachable || snapshot.Tasks[1].Title != "Task 3" {
		t.Fatalf("unexpected tasks %+v", snapshot.Tasks)
	}
	if len(snapshot.Measurements) != 2 || snapshot.Measurements[0].End != 1090 || !snapshot.Measurements[1].Open() {
		t.Fatalf("unexpected measurements %+v", snapshot.Measurements)
	}
	if snapshot.LastMeasurement == nil || *snapshot.LastMeasurement != int64(layout.MeasurementsStart+1) {
		t.Fatalf("unexpected pointer %v", snapshot.LastMeasurement)
	}
	if snapshot.PendingIntent != "none" {
		t.Fatalf("unexpected intent %q", snapshot.PendingIntent)
	}
	if len(snapshot.Digest) != 64 {
		t.Fatalf("unexpected digest %q", snapshot.Digest)
	}
}

func TestDigestIgnoresCreatedAtAndSurvivesJSON(t *testing.T) {
	store, layout := seededStore(t)
	first, err := Build(store, layout, Options{Now: time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("build first: %v", err)
	}
	second, err := Build(store, layout, Options{Now: time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("build second: %v", err)
	}
	if first.Digest != second.Digest {
		t.Fatalf("expected equal digests for an unchanged store")
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := Verify(decoded); err != nil {
		t.Fatalf("verify decoded: %v", err)
	}
	decoded.Measurements[0].End = 1100
	if err := Verify(decoded); err == nil {
		t.Fatalf("expected tampered snapshot to fail verification")
	}

	log := measurements.NewLog(store, layout, tasks.NewRegistry(store, layout))
	if _, err := log.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cleared, err := Build(store, layout, Options{})
	if err != nil {
		t.Fatalf("build cleared: %v", err)
	}
	if cleared.Digest == first.Digest || cleared.LastMeasurement != nil || len(cleared.Measurements) != 0 {
		t.Fatalf("unexpected cleared snapshot %+v", cleared)
	}
}
