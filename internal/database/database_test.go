package database

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

type stubReader struct{ name string }

func (s *stubReader) FetchAll(context.Context) (facematch.Snapshot, error) { return nil, nil }
func (s *stubReader) Get(context.Context, string) (*StoredEmployee, error) { return nil, nil }
func (s *stubReader) List(context.Context) ([]StoredEmployee, error)      { return nil, nil }
func (s *stubReader) Count(context.Context) (int, error)                  { return 0, nil }

type stubWriter struct{ stubReader }

func (s *stubWriter) Enroll(context.Context, StoredEmployee) error  { return nil }
func (s *stubWriter) Delete(context.Context, string) (bool, error) { return false, nil }

func resetBackends(t *testing.T) {
	t.Helper()
	reset := func() {
		providerMu.Lock()
		defer providerMu.Unlock()
		postgresReader = nil
		postgresWriter = nil
		mariadbReader = nil
		backendsRegistry = nil
	}
	reset()
	t.Cleanup(reset)
}

func TestToSnapshot(t *testing.T) {
	employees := []StoredEmployee{
		{ID: "1", Name: "Alice", Descriptor: []float32{0.1, 0.2, 0.3}},
		{ID: "2", Name: "Bora"},
		{ID: "3", Name: "Chan", Descriptor: []float32{0.1, 0.2}},
		{ID: "4", Name: "Dara", Descriptor: []float32{0.1, float32(math.NaN()), 0.3}},
	}

	snapshot := ToSnapshot(employees, 3)

	if len(snapshot) != 4 {
		t.Fatalf("expected 4 records, got %d", len(snapshot))
	}
	for i, e := range employees {
		if snapshot[i].EmployeeID != e.ID || snapshot[i].DisplayName != e.Name {
			t.Errorf("snapshot[%d] = %+v, want %s/%s", i, snapshot[i], e.ID, e.Name)
		}
	}
	if snapshot[0].Descriptor == nil {
		t.Error("valid descriptor was dropped")
	}
	for _, i := range []int{1, 2, 3} {
		if snapshot[i].Descriptor != nil {
			t.Errorf("snapshot[%d] should have no descriptor", i)
		}
	}
	if got := snapshot.Matchable(3); got != 1 {
		t.Errorf("Matchable() = %d, want 1", got)
	}
}

func TestProvider_NotInitialized(t *testing.T) {
	resetBackends(t)

	if IsInitialized() {
		t.Error("expected no backend")
	}
	if _, err := GetEmployeeReader(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetEmployeeReader() error = %v, want ErrNotInitialized", err)
	}
	if _, err := GetEmployeeWriter(context.Background()); err == nil {
		t.Error("expected writer error")
	}
}

func TestProvider_PostgresPreferred(t *testing.T) {
	resetBackends(t)

	legacy := &stubReader{name: "mariadb"}
	primary := &stubWriter{stubReader{name: "postgres"}}
	RegisterMariaDBBackend(func() EmployeeReader { return legacy })
	RegisterPostgresBackend(
		func() EmployeeReader { return primary },
		func() EmployeeWriter { return primary },
	)

	reader, err := GetEmployeeReader(context.Background())
	if err != nil {
		t.Fatalf("GetEmployeeReader() error = %v", err)
	}
	if reader != EmployeeReader(primary) {
		t.Error("expected the PostgreSQL reader")
	}

	got := Backends()
	if len(got) != 2 || got[0] != "mariadb" || got[1] != "postgres" {
		t.Errorf("Backends() = %v", got)
	}
}

func TestProvider_MariaDBReadOnly(t *testing.T) {
	resetBackends(t)

	legacy := &stubReader{name: "mariadb"}
	RegisterMariaDBBackend(func() EmployeeReader { return legacy })

	reader, err := GetEmployeeReader(context.Background())
	if err != nil {
		t.Fatalf("GetEmployeeReader() error = %v", err)
	}
	if reader != EmployeeReader(legacy) {
		t.Error("expected the MariaDB reader")
	}
	if _, err := GetEmployeeWriter(context.Background()); err == nil {
		t.Error("MariaDB must not provide a writer")
	}
}
