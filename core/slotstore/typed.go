package slotstore

import (
	"encoding"
	"encoding/binary"
	"fmt"

	coreerrors "github.com/davidahmann/tempo/core/errors"
)

const intPayloadBytes = 8

// rawSlots is what a backend provides: untyped, durable per-slot payloads.
type rawSlots interface {
	load(slot Slot) (Kind, []byte, bool, error)
	save(slot Slot, kind Kind, payload []byte) error
	remove(slot Slot) error
}

// typed implements Store on top of a rawSlots backend. Both FileStore and
// MemoryStore embed it so validation is identical across backends.
type typed struct {
	raw rawSlots
}

func (s typed) Exists(slot Slot) (bool, error) {
	if err := checkSlot(slot); err != nil {
		return false, err
	}
	_, _, ok, err := s.raw.load(slot)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s typed) ReadString(slot Slot, maxLen int) (string, error) {
	payload, err := s.read(slot, KindString)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && len(payload) > maxLen {
		return "", tooLarge(slot, len(payload), maxLen)
	}
	return string(payload), nil
}

func (s typed) WriteString(slot Slot, value string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if len(value) > MaxStringBytes {
		return tooLarge(slot, len(value), MaxStringBytes)
	}
	return s.raw.save(slot, KindString, []byte(value))
}

func (s typed) ReadRecord(slot Slot, record encoding.BinaryUnmarshaler) error {
	payload, err := s.read(slot, KindRecord)
	if err != nil {
		return err
	}
	if err := record.UnmarshalBinary(payload); err != nil {
		return coreerrors.Wrap(
			fmt.Errorf("decode %s: %w", slot, err),
			coreerrors.CategoryCorruptState,
			"slot_record_invalid",
			"run tempo doctor to inspect the store",
			false,
		)
	}
	return nil
}

func (s typed) WriteRecord(slot Slot, record encoding.BinaryMarshaler) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	payload, err := record.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	if len(payload) > MaxValueBytes {
		return tooLarge(slot, len(payload), MaxValueBytes)
	}
	return s.raw.save(slot, KindRecord, payload)
}

func (s typed) ReadInt(slot Slot) (int64, error) {
	payload, err := s.read(slot, KindInt)
	if err != nil {
		return 0, err
	}
	if len(payload) != intPayloadBytes {
		return 0, coreerrors.Wrap(
			fmt.Errorf("decode %s: %w: int payload has %d bytes", slot, ErrCorrupt, len(payload)),
			coreerrors.CategoryCorruptState,
			"slot_int_invalid",
			"run tempo doctor to inspect the store",
			false,
		)
	}
	return int64(binary.LittleEndian.Uint64(payload)), nil
}

func (s typed) WriteInt(slot Slot, value int64) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	payload := make([]byte, intPayloadBytes)
	binary.LittleEndian.PutUint64(payload, uint64(value))
	return s.raw.save(slot, KindInt, payload)
}

func (s typed) Delete(slot Slot) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return s.raw.remove(slot)
}

func (s typed) read(slot Slot, want Kind) ([]byte, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	kind, payload, ok, err := s.raw.load(slot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.Wrap(
			fmt.Errorf("read %s: %w", slot, ErrNotFound),
			coreerrors.CategoryNotFound,
			"slot_not_found",
			"",
			false,
		)
	}
	if kind != want {
		return nil, coreerrors.Wrap(
			fmt.Errorf("read %s: %w: want %s, have %s", slot, ErrKindMismatch, want, kind),
			coreerrors.CategoryCorruptState,
			"slot_kind_mismatch",
			"check that the store layout matches the configured ranges",
			false,
		)
	}
	return payload, nil
}

func checkSlot(slot Slot) error {
	if slot.Valid() {
		return nil
	}
	return coreerrors.Wrap(
		fmt.Errorf("%w: %d", ErrSlotOutOfRange, int(slot)),
		coreerrors.CategoryInvalidInput,
		"slot_out_of_range",
		fmt.Sprintf("slots are addressed 0..%d", Capacity-1),
		false,
	)
}

func tooLarge(slot Slot, size int, limit int) error {
	return coreerrors.Wrap(
		fmt.Errorf("%s: %w: %d bytes exceeds %d", slot, ErrValueTooLarge, size, limit),
		coreerrors.CategoryInvalidInput,
		"value_too_large",
		fmt.Sprintf("shorten the value to at most %d bytes", limit),
		false,
	)
}
