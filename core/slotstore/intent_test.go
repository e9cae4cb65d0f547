package slotstore

import (
	"errors"
	"testing"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

func TestBeginIntentRefusesToOverwriteAnotherPendingIntent(t *testing.T) {
	store := NewMemoryStore()
	layout := DefaultLayout()
	if err := BeginIntent(store, layout, IntentClearMeasurements); err != nil {
		t.Fatalf("begin clear: %v", err)
	}
	// Resuming the same operation is allowed.
	if err := BeginIntent(store, layout, IntentClearMeasurements); err != nil {
		t.Fatalf("begin clear again: %v", err)
	}

	err := BeginIntent(store, layout, IntentReplaceTasks)
	if !errors.Is(err, ErrIntentPending) || coreerrors.CodeOf(err) != "intent_pending" {
		t.Fatalf("expected intent_pending, got %v", err)
	}
	if coreerrors.CategoryOf(err) != coreerrors.CategoryCorruptState {
		t.Fatalf("unexpected category %q", coreerrors.CategoryOf(err))
	}
	pending, err := PendingIntent(store, layout)
	if err != nil || pending != IntentClearMeasurements {
		t.Fatalf("expected clear marker to survive, got %s err=%v", pending, err)
	}

	if err := EndIntent(store, layout); err != nil {
		t.Fatalf("end intent: %v", err)
	}
	if err := BeginIntent(store, layout, IntentReplaceTasks); err != nil {
		t.Fatalf("begin replace after end: %v", err)
	}
}
