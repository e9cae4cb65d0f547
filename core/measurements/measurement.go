package measurements

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/davidahmann/tempo/core/slotstore"
)

// RecordBytes is the encoded size: int32 task id, int64 start, int64 end.
const RecordBytes = 20

// Measurement is one tracked interval. End == 0 marks the open interval.
type Measurement struct {
	TaskID int   `json:"task_id"`
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
}

func (m Measurement) Open() bool {
	return m.End == 0
}

// Seconds is the closed duration, or zero while the interval is open.
func (m Measurement) Seconds() int64 {
	if m.Open() || m.End < m.Start {
		return 0
	}
	return m.End - m.Start
}

func (m Measurement) MarshalBinary() ([]byte, error) {
	if m.TaskID < math.MinInt32 || m.TaskID > math.MaxInt32 {
		return nil, fmt.Errorf("task id %d does not fit the record", m.TaskID)
	}
	out := make([]byte, RecordBytes)
	binary.LittleEndian.PutUint32(out[0:4], uint32(int32(m.TaskID)))
	binary.LittleEndian.PutUint64(out[4:12], uint64(m.Start))
	binary.LittleEndian.PutUint64(out[12:20], uint64(m.End))
	return out, nil
}

func (m *Measurement) UnmarshalBinary(data []byte) error {
	if len(data) != RecordBytes {
		return fmt.Errorf("measurement record has %d bytes, want %d", len(data), RecordBytes)
	}
	m.TaskID = int(int32(binary.LittleEndian.Uint32(data[0:4])))
	m.Start = int64(binary.LittleEndian.Uint64(data[4:12]))
	m.End = int64(binary.LittleEndian.Uint64(data[12:20]))
	return nil
}

// Entry is a measurement together with the slot it was read from.
type Entry struct {
	Slot slotstore.Slot `json:"slot"`
	Measurement
}
