package slotstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/fsx"
)

const (
	checksumBytes = 8
	slotFileMode  = 0o600
)

// FileStore keeps one file per occupied slot under a directory. A slot file is
// kind byte | payload | xxhash64(kind|payload) little endian.
type FileStore struct {
	typed
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	cleanDir := strings.TrimSpace(dir)
	if cleanDir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(cleanDir, 0o750); err != nil {
		return nil, ioFailure(fmt.Errorf("create store directory: %w", err), "store_dir_create_failed")
	}
	backend := &fileSlots{dir: cleanDir}
	return &FileStore{typed: typed{raw: backend}, dir: cleanDir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

type fileSlots struct {
	dir string
}

func (f *fileSlots) path(slot Slot) string {
	return filepath.Join(f.dir, slot.String())
}

func (f *fileSlots) load(slot Slot) (Kind, []byte, bool, error) {
	content, ok, err := fsx.ReadFileIfExists(f.path(slot))
	if err != nil {
		return 0, nil, false, ioFailure(fmt.Errorf("read %s: %w", slot, err), "slot_read_failed")
	}
	if !ok {
		return 0, nil, false, nil
	}
	kind, payload, err := decodeSlotFile(content)
	if err != nil {
		return 0, nil, false, coreerrors.Wrap(
			fmt.Errorf("read %s: %w", slot, err),
			coreerrors.CategoryCorruptState,
			"slot_corrupt",
			"run tempo doctor to inspect the store",
			false,
		)
	}
	return kind, payload, true, nil
}

func (f *fileSlots) save(slot Slot, kind Kind, payload []byte) error {
	if err := fsx.WriteFileAtomic(f.path(slot), encodeSlotFile(kind, payload), slotFileMode); err != nil {
		return ioFailure(fmt.Errorf("write %s: %w", slot, err), "slot_write_failed")
	}
	return nil
}

func (f *fileSlots) remove(slot Slot) error {
	if err := fsx.RemoveDurable(f.path(slot)); err != nil {
		return ioFailure(fmt.Errorf("delete %s: %w", slot, err), "slot_delete_failed")
	}
	return nil
}

func encodeSlotFile(kind Kind, payload []byte) []byte {
	encoded := make([]byte, 0, 1+len(payload)+checksumBytes)
	encoded = append(encoded, byte(kind))
	encoded = append(encoded, payload...)
	return binary.LittleEndian.AppendUint64(encoded, xxhash.Sum64(encoded))
}

func decodeSlotFile(content []byte) (Kind, []byte, error) {
	if len(content) < 1+checksumBytes {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than the slot header", ErrCorrupt, len(content))
	}
	body := content[:len(content)-checksumBytes]
	want := binary.LittleEndian.Uint64(content[len(content)-checksumBytes:])
	if got := xxhash.Sum64(body); got != want {
		return 0, nil, fmt.Errorf("%w: have %016x want %016x", ErrCorrupt, got, want)
	}
	kind := Kind(body[0])
	switch kind {
	case KindString, KindRecord, KindInt:
	default:
		return 0, nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, byte(kind))
	}
	payload := make([]byte, len(body)-1)
	copy(payload, body[1:])
	return kind, payload, nil
}

func ioFailure(err error, code string) error {
	return coreerrors.Wrap(err, coreerrors.CategoryIOFailure, code, "check store directory permissions and free space", true)
}
