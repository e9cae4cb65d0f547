// Package measurements keeps time-tracking intervals in the measurement range of
// a slot store, plus a pointer slot naming the most recently created one.
//
// Writes follow one order: close the open interval, write the new record, then
// move the pointer. A crash between any two of them leaves at most one open
// interval reachable through the pointer; Repair cleans up the rest.
package measurements

import (
	"errors"
	"fmt"
	"iter"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
)

var ErrNoActiveTask = errors.New("no active task")

type Log struct {
	store    slotstore.Store
	layout   slotstore.Layout
	registry *tasks.Registry
}

func NewLog(store slotstore.Store, layout slotstore.Layout, registry *tasks.Registry) *Log {
	return &Log{store: store, layout: layout, registry: registry}
}

// FindFirstFreeSlot scans the measurement range from its start.
func (l *Log) FindFirstFreeSlot() (slotstore.Slot, error) {
	for slot := l.layout.MeasurementsStart; slot < l.layout.MeasurementsEnd; slot++ {
		exists, err := l.store.Exists(slot)
		if err != nil {
			return 0, fmt.Errorf("find free measurement slot: %w", err)
		}
		if !exists {
			return slot, nil
		}
	}
	return 0, coreerrors.Wrap(
		fmt.Errorf("measurements [%d,%d): %w", l.layout.MeasurementsStart, l.layout.MeasurementsEnd, slotstore.ErrRangeExhausted),
		coreerrors.CategoryCapacityExhausted,
		"measurement_range_exhausted",
		"sync or clear measurements to free slots",
		false,
	)
}

// Open starts a measurement for taskID at the given epoch second. The free slot
// is located before anything is written, so a full range changes nothing.
func (l *Log) Open(taskID int, at int64) (slotstore.Slot, error) {
	if at <= 0 {
		return 0, invalidTime(at)
	}
	slot, err := l.FindFirstFreeSlot()
	if err != nil {
		return 0, err
	}
	if _, err := l.CloseOpen(at); err != nil {
		return 0, err
	}
	record := Measurement{TaskID: taskID, Start: at}
	if err := l.store.WriteRecord(slot, record); err != nil {
		return 0, fmt.Errorf("write measurement: %w", err)
	}
	if err := l.store.WriteInt(l.layout.LastMeasurement, int64(slot)); err != nil {
		return 0, fmt.Errorf("write last measurement pointer: %w", err)
	}
	return slot, nil
}

// CloseOpen ends the measurement the pointer names if it is still open. It
// reports whether a record was closed; closing twice is a no-op.
func (l *Log) CloseOpen(at int64) (bool, error) {
	if at <= 0 {
		return false, invalidTime(at)
	}
	entry, ok, err := l.Last()
	if err != nil {
		return false, err
	}
	if !ok || !entry.Open() {
		return false, nil
	}
	if err := l.close(entry, at); err != nil {
		return false, err
	}
	return true, nil
}

// Last resolves the pointer. A missing pointer, a pointer outside the
// measurement range, or a pointer at an empty slot all read as ok == false.
func (l *Log) Last() (Entry, bool, error) {
	slot, ok, err := l.pointer()
	if err != nil || !ok {
		return Entry{}, false, err
	}
	exists, err := l.store.Exists(slot)
	if err != nil {
		return Entry{}, false, err
	}
	if !exists {
		return Entry{}, false, nil
	}
	entry, err := l.read(slot)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Active returns the measurement the pointer names, open or not, or
// ErrNoActiveTask.
func (l *Log) Active() (Entry, error) {
	entry, ok, err := l.Last()
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, coreerrors.Wrap(
			ErrNoActiveTask,
			coreerrors.CategoryNoActiveTask,
			"no_active_task",
			"start tracking a task first",
			false,
		)
	}
	return entry, nil
}

// OpenTask looks up the task of the measurement the pointer names.
func (l *Log) OpenTask() (tasks.Task, error) {
	entry, err := l.Active()
	if err != nil {
		return tasks.Task{}, err
	}
	return l.registry.Lookup(entry.TaskID)
}

// All yields measurements from the start of the range up to the first empty
// slot. Each call starts a fresh scan; a read error is yielded once and ends it.
func (l *Log) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for slot := l.layout.MeasurementsStart; slot < l.layout.MeasurementsEnd; slot++ {
			exists, err := l.store.Exists(slot)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !exists {
				return
			}
			entry, err := l.read(slot)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (l *Log) Collect() ([]Entry, error) {
	out := make([]Entry, 0)
	for entry, err := range l.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Clear deletes every occupied measurement slot and the pointer.
func (l *Log) Clear() (int, error) {
	if err := slotstore.BeginIntent(l.store, l.layout, slotstore.IntentClearMeasurements); err != nil {
		return 0, err
	}
	deleted, err := slotstore.DeleteRange(l.store, l.layout.MeasurementsStart, l.layout.MeasurementsEnd)
	if err != nil {
		return deleted, fmt.Errorf("delete measurements: %w", err)
	}
	if err := l.store.Delete(l.layout.LastMeasurement); err != nil {
		return deleted, fmt.Errorf("delete last measurement pointer: %w", err)
	}
	return deleted, slotstore.EndIntent(l.store, l.layout)
}

func (l *Log) pointer() (slotstore.Slot, bool, error) {
	value, err := l.store.ReadInt(l.layout.LastMeasurement)
	if err != nil {
		if errors.Is(err, slotstore.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read last measurement pointer: %w", err)
	}
	slot := slotstore.Slot(value)
	if int64(slot) != value || !l.layout.InMeasurements(slot) {
		return 0, false, nil
	}
	return slot, true, nil
}

func (l *Log) read(slot slotstore.Slot) (Entry, error) {
	var record Measurement
	if err := l.store.ReadRecord(slot, &record); err != nil {
		return Entry{}, fmt.Errorf("read measurement %d: %w", int(slot), err)
	}
	return Entry{Slot: slot, Measurement: record}, nil
}

func (l *Log) close(entry Entry, at int64) error {
	end := at
	if end < entry.Start {
		end = entry.Start
	}
	entry.End = end
	if err := l.store.WriteRecord(entry.Slot, entry.Measurement); err != nil {
		return fmt.Errorf("close measurement %d: %w", int(entry.Slot), err)
	}
	return nil
}

func invalidTime(at int64) error {
	return coreerrors.Wrap(
		fmt.Errorf("timestamp %d must be a positive epoch second", at),
		coreerrors.CategoryInvalidInput,
		"invalid_timestamp",
		"",
		false,
	)
}
