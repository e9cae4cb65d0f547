// Package slotstore is a fixed-capacity keyed store of 256 slots. Each slot is
// empty or holds exactly one typed value: a string, a fixed-layout binary record,
// or an integer. Callers partition the slot space into ranges (see Layout) and
// scan them explicitly; the store never iterates on its own.
//
// Every write is durable before the call returns. Nothing spans more than one
// slot atomically.
package slotstore

import (
	"encoding"
	"errors"
	"fmt"
)

const (
	// Capacity is the number of addressable slots, 0 through 255.
	Capacity = 256
	// MaxValueBytes bounds the encoded payload of a single slot.
	MaxValueBytes = 256
	// MaxStringBytes leaves room for the terminator the on-device format reserved.
	MaxStringBytes = MaxValueBytes - 1
)

var (
	ErrNotFound       = errors.New("slot not found")
	ErrValueTooLarge  = errors.New("value too large for slot")
	ErrRangeExhausted = errors.New("no free slot in range")
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrKindMismatch   = errors.New("slot holds a different kind")
	ErrCorrupt        = errors.New("slot checksum mismatch")
)

// Slot addresses one unit of the store.
type Slot int

func (s Slot) Valid() bool {
	return s >= 0 && s < Capacity
}

func (s Slot) String() string {
	return fmt.Sprintf("slot-%03d", int(s))
}

// Kind tags the value held by a slot.
type Kind byte

const (
	KindString Kind = 1
	KindRecord Kind = 2
	KindInt    Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindRecord:
		return "record"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Store is the slot-addressed contract shared by the file and memory backends.
type Store interface {
	Exists(slot Slot) (bool, error)
	ReadString(slot Slot, maxLen int) (string, error)
	WriteString(slot Slot, value string) error
	ReadRecord(slot Slot, record encoding.BinaryUnmarshaler) error
	WriteRecord(slot Slot, record encoding.BinaryMarshaler) error
	ReadInt(slot Slot) (int64, error)
	WriteInt(slot Slot, value int64) error
	Delete(slot Slot) error
}

// Occupied lists the occupied slots in [from, to) in ascending order. Unlike the
// registries' first-gap scans it looks at every slot of the range.
func Occupied(store Store, from, to Slot) ([]Slot, error) {
	if from > to {
		return nil, fmt.Errorf("%w: range [%d,%d) is inverted", ErrSlotOutOfRange, from, to)
	}
	occupied := make([]Slot, 0)
	for slot := from; slot < to; slot++ {
		exists, err := store.Exists(slot)
		if err != nil {
			return nil, err
		}
		if exists {
			occupied = append(occupied, slot)
		}
	}
	return occupied, nil
}

// DeleteRange deletes every occupied slot in [from, to).
func DeleteRange(store Store, from, to Slot) (int, error) {
	occupied, err := Occupied(store, from, to)
	if err != nil {
		return 0, err
	}
	for index, slot := range occupied {
		if err := store.Delete(slot); err != nil {
			return index, err
		}
	}
	return len(occupied), nil
}
