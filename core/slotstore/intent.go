package slotstore

import (
	"errors"
	"fmt"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

var ErrIntentPending = errors.New("another bulk operation is pending")

// Intent names a multi-slot operation in flight. It is written to the marker
// slot before the first delete of a bulk operation and removed after the last
// write, so an interrupted replace or clear is visible after a restart.
type Intent int64

const (
	IntentNone              Intent = 0
	IntentReplaceTasks      Intent = 1
	IntentClearMeasurements Intent = 2
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentReplaceTasks:
		return "replace_tasks"
	case IntentClearMeasurements:
		return "clear_measurements"
	default:
		return fmt.Sprintf("intent(%d)", int64(i))
	}
}

// BeginIntent writes the marker. It refuses to overwrite a different pending
// intent, whose crash leftovers would otherwise become invisible.
func BeginIntent(store Store, layout Layout, intent Intent) error {
	pending, err := PendingIntent(store, layout)
	if err != nil {
		return err
	}
	if pending != IntentNone && pending != intent {
		return coreerrors.Wrap(
			fmt.Errorf("%w: %s is unfinished, cannot begin %s", ErrIntentPending, pending, intent),
			coreerrors.CategoryCorruptState,
			"intent_pending",
			"run `tempo doctor --repair` to finish or drop the interrupted operation",
			false,
		)
	}
	if err := store.WriteInt(layout.Marker, int64(intent)); err != nil {
		return fmt.Errorf("write %s marker: %w", intent, err)
	}
	return nil
}

func EndIntent(store Store, layout Layout) error {
	if err := store.Delete(layout.Marker); err != nil {
		return fmt.Errorf("remove intent marker: %w", err)
	}
	return nil
}

// PendingIntent reports the operation left unfinished by a crash, or IntentNone.
func PendingIntent(store Store, layout Layout) (Intent, error) {
	value, err := store.ReadInt(layout.Marker)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IntentNone, nil
		}
		return IntentNone, err
	}
	return Intent(value), nil
}
