package slotstore

type memoryEntry struct {
	kind    Kind
	payload []byte
}

// MemoryStore is a map-backed Store with the same validation as FileStore. It
// is not safe for concurrent use, matching the single-threaded tracking core.
type MemoryStore struct {
	typed
	slots *memorySlots
}

func NewMemoryStore() *MemoryStore {
	backend := &memorySlots{entries: map[Slot]memoryEntry{}}
	return &MemoryStore{typed: typed{raw: backend}, slots: backend}
}

// Len reports the number of occupied slots.
func (s *MemoryStore) Len() int {
	return len(s.slots.entries)
}

type memorySlots struct {
	entries map[Slot]memoryEntry
}

func (m *memorySlots) load(slot Slot) (Kind, []byte, bool, error) {
	entry, ok := m.entries[slot]
	if !ok {
		return 0, nil, false, nil
	}
	payload := make([]byte, len(entry.payload))
	copy(payload, entry.payload)
	return entry.kind, payload, true, nil
}

func (m *memorySlots) save(slot Slot, kind Kind, payload []byte) error {
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.entries[slot] = memoryEntry{kind: kind, payload: stored}
	return nil
}

func (m *memorySlots) remove(slot Slot) error {
	delete(m.entries, slot)
	return nil
}
