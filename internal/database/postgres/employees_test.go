package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

type fakeRow struct {
	id, name   string
	descriptor sql.NullString
	enrolledAt time.Time
	err        error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	*dest[0].(*string) = f.id
	*dest[1].(*string) = f.name
	*dest[2].(*sql.NullString) = f.descriptor
	*dest[3].(*time.Time) = f.enrolledAt
	return nil
}

func TestScanEmployee(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("with descriptor", func(t *testing.T) {
		e, err := scanEmployee(fakeRow{
			id: "7", name: "Alice",
			descriptor: sql.NullString{String: "[0.1,0.2,0.3]", Valid: true},
			enrolledAt: now,
		})
		if err != nil {
			t.Fatalf("scanEmployee() error = %v", err)
		}
		if len(e.Descriptor) != 3 || e.Descriptor[2] != 0.3 {
			t.Errorf("unexpected descriptor %v", e.Descriptor)
		}
		if !e.EnrolledAt.Equal(now) {
			t.Errorf("EnrolledAt = %v", e.EnrolledAt)
		}
	})

	t.Run("null descriptor", func(t *testing.T) {
		e, err := scanEmployee(fakeRow{id: "8", name: "Bora"})
		if err != nil {
			t.Fatalf("scanEmployee() error = %v", err)
		}
		if e.Descriptor != nil {
			t.Errorf("expected nil descriptor, got %v", e.Descriptor)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := scanEmployee(fakeRow{err: sql.ErrNoRows})
		if !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("expected sql.ErrNoRows, got %v", err)
		}
	})
}

func TestNewEmployeeRepository_DefaultDim(t *testing.T) {
	if repo := NewEmployeeRepository(nil, 0); repo.dim != 128 {
		t.Errorf("dim = %d, want 128", repo.dim)
	}
}
