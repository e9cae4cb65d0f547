package slotstore

import "fmt"

const (
	DefaultTaskStart         Slot = 1
	DefaultTaskEnd           Slot = 49
	DefaultMeasurementsStart Slot = 50
	DefaultMeasurementsEnd   Slot = 238
	DefaultLastMeasurement   Slot = 255
	DefaultMarker            Slot = 0
)

// Layout partitions the slot space into disjoint ranges. Ranges are half-open.
type Layout struct {
	TaskStart         Slot `json:"task_start"`
	TaskEnd           Slot `json:"task_end"`
	MeasurementsStart Slot `json:"measurements_start"`
	MeasurementsEnd   Slot `json:"measurements_end"`
	LastMeasurement   Slot `json:"last_measurement"`
	Marker            Slot `json:"marker"`
}

func DefaultLayout() Layout {
	return Layout{
		TaskStart:         DefaultTaskStart,
		TaskEnd:           DefaultTaskEnd,
		MeasurementsStart: DefaultMeasurementsStart,
		MeasurementsEnd:   DefaultMeasurementsEnd,
		LastMeasurement:   DefaultLastMeasurement,
		Marker:            DefaultMarker,
	}
}

func (layout Layout) TaskCapacity() int {
	return int(layout.TaskEnd - layout.TaskStart)
}

func (layout Layout) MeasurementCapacity() int {
	return int(layout.MeasurementsEnd - layout.MeasurementsStart)
}

func (layout Layout) InTasks(slot Slot) bool {
	return slot >= layout.TaskStart && slot < layout.TaskEnd
}

func (layout Layout) InMeasurements(slot Slot) bool {
	return slot >= layout.MeasurementsStart && slot < layout.MeasurementsEnd
}

// Validate rejects layouts whose ranges leave the slot space or overlap each
// other or the two scalar slots.
func (layout Layout) Validate() error {
	if layout.TaskStart < 0 || layout.TaskEnd > Capacity || layout.TaskStart >= layout.TaskEnd {
		return fmt.Errorf("%w: task range [%d,%d)", ErrSlotOutOfRange, layout.TaskStart, layout.TaskEnd)
	}
	if layout.MeasurementsStart < 0 || layout.MeasurementsEnd > Capacity || layout.MeasurementsStart >= layout.MeasurementsEnd {
		return fmt.Errorf("%w: measurement range [%d,%d)", ErrSlotOutOfRange, layout.MeasurementsStart, layout.MeasurementsEnd)
	}
	if layout.TaskStart < layout.MeasurementsEnd && layout.MeasurementsStart < layout.TaskEnd {
		return fmt.Errorf("task range [%d,%d) overlaps measurement range [%d,%d)", layout.TaskStart, layout.TaskEnd, layout.MeasurementsStart, layout.MeasurementsEnd)
	}
	for _, scalar := range []struct {
		name string
		slot Slot
	}{
		{name: "last measurement", slot: layout.LastMeasurement},
		{name: "marker", slot: layout.Marker},
	} {
		if !scalar.slot.Valid() {
			return fmt.Errorf("%w: %s slot %d", ErrSlotOutOfRange, scalar.name, scalar.slot)
		}
		if layout.InTasks(scalar.slot) || layout.InMeasurements(scalar.slot) {
			return fmt.Errorf("%s slot %d overlaps a record range", scalar.name, scalar.slot)
		}
	}
	if layout.LastMeasurement == layout.Marker {
		return fmt.Errorf("last measurement and marker share slot %d", layout.Marker)
	}
	return nil
}
