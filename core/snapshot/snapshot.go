package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/davidahmann/tempo/core/jcs"
	"github.com/davidahmann/tempo/core/measurements"
	"github.com/davidahmann/tempo/core/slotstore"
	"github.com/davidahmann/tempo/core/tasks"
)

const (
	SchemaID = "tempo.snapshot"
	SchemaV1 = "1.0.0"
)

type Snapshot struct {
	SchemaID        string               `json:"schema_id"`
	SchemaVersion   string               `json:"schema_version"`
	CreatedAt       time.Time            `json:"created_at"`
	Layout          slotstore.Layout     `json:"layout"`
	Tasks           []TaskSlot           `json:"tasks"`
	Measurements    []measurements.Entry `json:"measurements"`
	LastMeasurement *int64               `json:"last_measurement,omitempty"`
	PendingIntent   string               `json:"pending_intent"`
	// Digest covers every field except CreatedAt and itself, so two exports of
	// an unchanged store digest equally.
	Digest string `json:"digest"`
}

// TaskSlot is a task plus whether a gap before it hides it from the registry.
type TaskSlot struct {
	tasks.Task
	Reachable bool `json:"reachable"`
}

type Options struct {
	Now time.Time
}

// Build reads every occupied slot of both ranges, including slots past a gap
// that ordinary listing would not reach.
func Build(store slotstore.Store, layout slotstore.Layout, opts Options) (Snapshot, error) {
	if err := layout.Validate(); err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{
		SchemaID:      SchemaID,
		SchemaVersion: SchemaV1,
		CreatedAt:     normalizeNow(opts.Now),
		Layout:        layout,
		Tasks:         make([]TaskSlot, 0),
		Measurements:  make([]measurements.Entry, 0),
	}

	registry := tasks.NewRegistry(store, layout)
	reachable, err := registry.Count()
	if err != nil {
		return Snapshot{}, err
	}
	taskSlots, err := slotstore.Occupied(store, layout.TaskStart, layout.TaskEnd)
	if err != nil {
		return Snapshot{}, err
	}
	for _, slot := range taskSlots {
		task, err := registry.Lookup(int(slot))
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Tasks = append(snapshot.Tasks, TaskSlot{
			Task:      task,
			Reachable: int(slot-layout.TaskStart) < reachable,
		})
	}

	measurementSlots, err := slotstore.Occupied(store, layout.MeasurementsStart, layout.MeasurementsEnd)
	if err != nil {
		return Snapshot{}, err
	}
	for _, slot := range measurementSlots {
		var record measurements.Measurement
		if err := store.ReadRecord(slot, &record); err != nil {
			return Snapshot{}, fmt.Errorf("read measurement %d: %w", int(slot), err)
		}
		snapshot.Measurements = append(snapshot.Measurements, measurements.Entry{Slot: slot, Measurement: record})
	}

	pointer, err := store.ReadInt(layout.LastMeasurement)
	switch {
	case err == nil:
		snapshot.LastMeasurement = &pointer
	case errors.Is(err, slotstore.ErrNotFound):
	default:
		return Snapshot{}, fmt.Errorf("read last measurement pointer: %w", err)
	}

	intent, err := slotstore.PendingIntent(store, layout)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.PendingIntent = intent.String()

	digest, err := Digest(snapshot)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Digest = digest
	return snapshot, nil
}

func Digest(snapshot Snapshot) (string, error) {
	snapshot.CreatedAt = time.Time{}
	snapshot.Digest = ""
	digest, err := jcs.Digest(snapshot)
	if err != nil {
		return "", fmt.Errorf("digest snapshot: %w", err)
	}
	return digest, nil
}

// Verify recomputes the digest of a snapshot read back from disk.
func Verify(snapshot Snapshot) error {
	sealed := snapshot.Digest
	snapshot.CreatedAt = time.Time{}
	snapshot.Digest = ""
	if err := jcs.Verify(snapshot, sealed); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

func normalizeNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}
