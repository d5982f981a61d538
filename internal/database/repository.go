package database

import (
	"context"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

// EmployeeReader provides read-only access to enrolled employees
type EmployeeReader interface {
	// FetchAll returns the enrollment snapshot in enrollment order
	FetchAll(ctx context.Context) (facematch.Snapshot, error)
	// Get retrieves an employee by ID, returns nil if not found
	Get(ctx context.Context, id string) (*StoredEmployee, error)
	// List returns all employees in enrollment order
	List(ctx context.Context) ([]StoredEmployee, error)
	// Count returns the number of employees
	Count(ctx context.Context) (int, error)
}

// EmployeeWriter provides write access to enrolled employees
type EmployeeWriter interface {
	EmployeeReader

	// Enroll stores the employee, replacing the name and descriptor of an
	// existing employee with the same ID. EnrolledAt is kept on replace.
	Enroll(ctx context.Context, employee StoredEmployee) error

	// Delete removes an employee and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)
}
