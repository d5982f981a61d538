// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// MockEmployeeStore is an in-memory implementation of database.EmployeeWriter
type MockEmployeeStore struct {
	mu        sync.RWMutex
	employees []database.StoredEmployee
	dim       int
	fetches   int

	// Error injection
	FetchAllError error
	GetError      error
	ListError     error
	CountError    error
	EnrollError   error
	DeleteError   error

	// Now stamps EnrolledAt; defaults to time.Now
	Now func() time.Time
}

// NewMockEmployeeStore creates an empty store validating descriptors of dim.
func NewMockEmployeeStore(dim int) *MockEmployeeStore {
	return &MockEmployeeStore{dim: dim, Now: time.Now}
}

// AddEmployee appends an employee without validation, keeping insertion order
func (m *MockEmployeeStore) AddEmployee(e database.StoredEmployee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e)
}

// FetchCount returns how many times FetchAll has been called
func (m *MockEmployeeStore) FetchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}

// FetchAll returns the snapshot in insertion order
func (m *MockEmployeeStore) FetchAll(ctx context.Context) (facematch.Snapshot, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()

	if m.FetchAllError != nil {
		return nil, m.FetchAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return database.ToSnapshot(m.employees, m.dim), nil
}

// Get retrieves an employee by ID
func (m *MockEmployeeStore) Get(ctx context.Context, id string) (*database.StoredEmployee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

// List returns a copy of all employees
func (m *MockEmployeeStore) List(ctx context.Context) ([]database.StoredEmployee, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.StoredEmployee(nil), m.employees...), nil
}

// Count returns the number of employees
func (m *MockEmployeeStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

// Enroll inserts or replaces an employee, keeping its original position
func (m *MockEmployeeStore) Enroll(ctx context.Context, e database.StoredEmployee) error {
	if m.EnrollError != nil {
		return m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.employees {
		if m.employees[i].ID == e.ID {
			m.employees[i].Name = e.Name
			m.employees[i].Descriptor = e.Descriptor
			return nil
		}
	}
	e.EnrolledAt = m.Now()
	m.employees = append(m.employees, e)
	return nil
}

// Delete removes an employee by ID
func (m *MockEmployeeStore) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.employees {
		if m.employees[i].ID == id {
			m.employees = append(m.employees[:i], m.employees[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var _ database.EmployeeWriter = (*MockEmployeeStore)(nil)
