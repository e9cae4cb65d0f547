package slotstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

type pairRecord struct {
	a int32
	b int32
}

func (p pairRecord) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:4], uint32(p.a))
	binary.LittleEndian.PutUint32(out[4:8], uint32(p.b))
	return out, nil
}

func (p *pairRecord) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("pair record needs 8 bytes, got %d", len(data))
	}
	p.a = int32(binary.LittleEndian.Uint32(data[0:4]))
	p.b = int32(binary.LittleEndian.Uint32(data[4:8]))
	return nil
}

type oversizedRecord struct{}

func (oversizedRecord) MarshalBinary() ([]byte, error) {
	return make([]byte, MaxValueBytes+1), nil
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return map[string]Store{
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			exists, err := store.Exists(1)
			if err != nil || exists {
				t.Fatalf("expected empty slot, exists=%v err=%v", exists, err)
			}
			if _, err := store.ReadString(1, 31); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if coreerrors.CategoryOf(mustErr(store.ReadString(1, 31))) != coreerrors.CategoryNotFound {
				t.Fatalf("expected not_found category")
			}

			if err := store.WriteString(1, "Task 1"); err != nil {
				t.Fatalf("write string: %v", err)
			}
			title, err := store.ReadString(1, 31)
			if err != nil {
				t.Fatalf("read string: %v", err)
			}
			if title != "Task 1" {
				t.Fatalf("unexpected title %q", title)
			}

			if err := store.WriteRecord(50, pairRecord{a: 1, b: -7}); err != nil {
				t.Fatalf("write record: %v", err)
			}
			var loaded pairRecord
			if err := store.ReadRecord(50, &loaded); err != nil {
				t.Fatalf("read record: %v", err)
			}
			if loaded.a != 1 || loaded.b != -7 {
				t.Fatalf("unexpected record %+v", loaded)
			}

			if err := store.WriteInt(255, 50); err != nil {
				t.Fatalf("write int: %v", err)
			}
			pointer, err := store.ReadInt(255)
			if err != nil {
				t.Fatalf("read int: %v", err)
			}
			if pointer != 50 {
				t.Fatalf("unexpected pointer %d", pointer)
			}

			if err := store.Delete(1); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := store.Delete(1); err != nil {
				t.Fatalf("delete absent slot should be a no-op: %v", err)
			}
			exists, err = store.Exists(1)
			if err != nil || exists {
				t.Fatalf("expected deleted slot, exists=%v err=%v", exists, err)
			}
		})
	}
}

func TestStoreRejectsOversizedValues(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := store.WriteString(2, strings.Repeat("x", MaxStringBytes+1))
			if !errors.Is(err, ErrValueTooLarge) {
				t.Fatalf("expected ErrValueTooLarge, got %v", err)
			}
			if exists, _ := store.Exists(2); exists {
				t.Fatalf("oversized write must not occupy the slot")
			}
			if err := store.WriteString(2, strings.Repeat("x", MaxStringBytes)); err != nil {
				t.Fatalf("write max-length string: %v", err)
			}
			if _, err := store.ReadString(2, 31); !errors.Is(err, ErrValueTooLarge) {
				t.Fatalf("expected read with short maxLen to fail instead of truncating, got %v", err)
			}
			if err := store.WriteRecord(3, oversizedRecord{}); !errors.Is(err, ErrValueTooLarge) {
				t.Fatalf("expected oversized record rejection, got %v", err)
			}
		})
	}
}

func TestStoreRejectsOutOfRangeSlots(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, slot := range []Slot{-1, Capacity, Capacity + 1} {
				if _, err := store.Exists(slot); !errors.Is(err, ErrSlotOutOfRange) {
					t.Fatalf("exists(%d): expected ErrSlotOutOfRange, got %v", slot, err)
				}
				if err := store.WriteInt(slot, 1); !errors.Is(err, ErrSlotOutOfRange) {
					t.Fatalf("writeInt(%d): expected ErrSlotOutOfRange, got %v", slot, err)
				}
				if err := store.Delete(slot); !errors.Is(err, ErrSlotOutOfRange) {
					t.Fatalf("delete(%d): expected ErrSlotOutOfRange, got %v", slot, err)
				}
			}
		})
	}
}

func TestStoreKindMismatch(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.WriteString(5, "Task"); err != nil {
				t.Fatalf("write string: %v", err)
			}
			if _, err := store.ReadInt(5); !errors.Is(err, ErrKindMismatch) {
				t.Fatalf("expected ErrKindMismatch, got %v", err)
			}
			var record pairRecord
			if err := store.ReadRecord(5, &record); !errors.Is(err, ErrKindMismatch) {
				t.Fatalf("expected ErrKindMismatch for record read, got %v", err)
			}
		})
	}
}

func TestOccupiedAndDeleteRange(t *testing.T) {
	store := NewMemoryStore()
	for _, slot := range []Slot{50, 51, 60, 237} {
		if err := store.WriteInt(slot, int64(slot)); err != nil {
			t.Fatalf("write %d: %v", slot, err)
		}
	}
	occupied, err := Occupied(store, 50, 238)
	if err != nil {
		t.Fatalf("occupied: %v", err)
	}
	if fmt.Sprint(occupied) != "[slot-050 slot-051 slot-060 slot-237]" {
		t.Fatalf("unexpected occupied slots: %v", occupied)
	}
	deleted, err := DeleteRange(store, 50, 238)
	if err != nil {
		t.Fatalf("delete range: %v", err)
	}
	if deleted != 4 || store.Len() != 0 {
		t.Fatalf("expected 4 deletions and an empty store, got deleted=%d len=%d", deleted, store.Len())
	}
	if _, err := Occupied(store, 10, 5); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected inverted range error, got %v", err)
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := DefaultLayout().Validate(); err != nil {
		t.Fatalf("default layout: %v", err)
	}
	testCases := []struct {
		name   string
		mutate func(*Layout)
	}{
		{name: "overlap", mutate: func(l *Layout) { l.MeasurementsStart = 40 }},
		{name: "empty_tasks", mutate: func(l *Layout) { l.TaskEnd = l.TaskStart }},
		{name: "measurements_past_capacity", mutate: func(l *Layout) { l.MeasurementsEnd = Capacity + 1 }},
		{name: "pointer_inside_measurements", mutate: func(l *Layout) { l.LastMeasurement = 60 }},
		{name: "marker_inside_tasks", mutate: func(l *Layout) { l.Marker = 2 }},
		{name: "pointer_equals_marker", mutate: func(l *Layout) { l.Marker = l.LastMeasurement }},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			layout := DefaultLayout()
			testCase.mutate(&layout)
			if err := layout.Validate(); err == nil {
				t.Fatalf("expected invalid layout: %+v", layout)
			}
		})
	}
	if got := DefaultLayout().MeasurementCapacity(); got != 188 {
		t.Fatalf("unexpected measurement capacity %d", got)
	}
	if got := DefaultLayout().TaskCapacity(); got != 48 {
		t.Fatalf("unexpected task capacity %d", got)
	}
}

func mustErr(_ string, err error) error {
	return err
}
