package measurements

import (
	"fmt"

	"github.com/davidahmann/tempo/core/slotstore"
)

type RepairReport struct {
	FinishedClear  bool             `json:"finished_clear,omitempty"`
	DroppedPointer bool             `json:"dropped_pointer,omitempty"`
	AdoptedSlot    slotstore.Slot   `json:"adopted_slot,omitempty"`
	Adopted        bool             `json:"adopted,omitempty"`
	ClosedSlots    []slotstore.Slot `json:"closed_slots,omitempty"`
}

func (r RepairReport) Changed() bool {
	return r.FinishedClear || r.DroppedPointer || r.Adopted || len(r.ClosedSlots) > 0
}

// Repair restores the single-open invariant after an interrupted write
// sequence:
//   - a pending clear marker finishes the clear;
//   - a pointer that names nothing readable is deleted;
//   - an open record the pointer does not name (written, pointer not yet moved)
//     is adopted when the pointer's own record is closed;
//   - any other open record is closed at the start of the surviving one.
func (l *Log) Repair() (RepairReport, error) {
	report := RepairReport{}

	intent, err := slotstore.PendingIntent(l.store, l.layout)
	if err != nil {
		return report, err
	}
	if intent == slotstore.IntentClearMeasurements {
		if _, err := l.Clear(); err != nil {
			return report, fmt.Errorf("finish interrupted clear: %w", err)
		}
		report.FinishedClear = true
		return report, nil
	}

	if err := l.dropDanglingPointer(&report); err != nil {
		return report, err
	}
	current, hasCurrent, err := l.Last()
	if err != nil {
		return report, err
	}

	occupied, err := slotstore.Occupied(l.store, l.layout.MeasurementsStart, l.layout.MeasurementsEnd)
	if err != nil {
		return report, err
	}
	orphans := make([]Entry, 0)
	for _, slot := range occupied {
		if hasCurrent && slot == current.Slot {
			continue
		}
		entry, err := l.read(slot)
		if err != nil {
			return report, err
		}
		if entry.Open() {
			orphans = append(orphans, entry)
		}
	}
	if len(orphans) == 0 {
		return report, nil
	}

	survivor := current
	adopt := !hasCurrent || !current.Open()
	if adopt {
		survivor = orphans[0]
		for _, orphan := range orphans[1:] {
			if orphan.Start >= survivor.Start {
				survivor = orphan
			}
		}
	}
	for _, orphan := range orphans {
		if adopt && orphan.Slot == survivor.Slot {
			continue
		}
		if err := l.close(orphan, survivor.Start); err != nil {
			return report, err
		}
		report.ClosedSlots = append(report.ClosedSlots, orphan.Slot)
	}
	if adopt {
		if err := l.store.WriteInt(l.layout.LastMeasurement, int64(survivor.Slot)); err != nil {
			return report, fmt.Errorf("adopt measurement %d: %w", int(survivor.Slot), err)
		}
		report.Adopted = true
		report.AdoptedSlot = survivor.Slot
	}
	return report, nil
}

func (l *Log) dropDanglingPointer(report *RepairReport) error {
	exists, err := l.store.Exists(l.layout.LastMeasurement)
	if err != nil || !exists {
		return err
	}
	_, ok, err := l.Last()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := l.store.Delete(l.layout.LastMeasurement); err != nil {
		return fmt.Errorf("drop dangling pointer: %w", err)
	}
	report.DroppedPointer = true
	return nil
}
