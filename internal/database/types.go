package database

import (
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// StoredEmployee is an enrolled employee as persisted by a backend.
type StoredEmployee struct {
	ID         string
	Name       string
	Descriptor []float32 // nil when the employee has not been enrolled with a face
	EnrolledAt time.Time
}

// Record converts the employee into a matchable snapshot record. A
// descriptor of the wrong dimension or with non-finite values is dropped
// so the record is skipped by the matcher instead of failing the fetch.
func (e StoredEmployee) Record(dim int) facematch.Record {
	rec := facematch.Record{EmployeeID: e.ID, DisplayName: e.Name}
	if d := facematch.Descriptor(e.Descriptor); d.Valid(dim) {
		rec.Descriptor = d
	}
	return rec
}

// ToSnapshot converts employees into a snapshot, preserving their order.
func ToSnapshot(employees []StoredEmployee, dim int) facematch.Snapshot {
	snapshot := make(facematch.Snapshot, 0, len(employees))
	for _, e := range employees {
		snapshot = append(snapshot, e.Record(dim))
	}
	return snapshot
}
