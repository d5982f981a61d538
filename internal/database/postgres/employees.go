package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

const employeeColumns = `id, name, descriptor::text, enrolled_at`

// EmployeeRepository provides PostgreSQL-backed employee enrollment storage.
type EmployeeRepository struct {
	pool *Pool
	dim  int
}

// NewEmployeeRepository creates a new PostgreSQL employee repository.
func NewEmployeeRepository(pool *Pool, dim int) *EmployeeRepository {
	if dim <= 0 {
		dim = constants.DescriptorDim
	}
	return &EmployeeRepository{pool: pool, dim: dim}
}

// FetchAll returns the enrollment snapshot ordered by enrolled_at, id.
func (r *EmployeeRepository) FetchAll(ctx context.Context) (facematch.Snapshot, error) {
	employees, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return database.ToSnapshot(employees, r.dim), nil
}

// Get retrieves an employee by ID, returns nil if not found.
func (r *EmployeeRepository) Get(ctx context.Context, id string) (*database.StoredEmployee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	e, err := scanEmployee(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee: %w", err)
	}
	return e, nil
}

// List returns all employees in enrollment order.
func (r *EmployeeRepository) List(ctx context.Context) ([]database.StoredEmployee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY enrolled_at, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []database.StoredEmployee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// Count returns the number of employees.
func (r *EmployeeRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

// Enroll inserts the employee or replaces the name and descriptor of an
// existing one. A nil descriptor clears the stored face.
func (r *EmployeeRepository) Enroll(ctx context.Context, e database.StoredEmployee) error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("employee ID is required")
	}
	if e.Descriptor != nil && !facematch.Descriptor(e.Descriptor).Valid(r.dim) {
		return fmt.Errorf("descriptor must have %d finite values, got %d", r.dim, len(e.Descriptor))
	}

	var descriptor any
	if e.Descriptor != nil {
		descriptor = pgvector.NewVector(e.Descriptor)
	}

	query := `
		INSERT INTO employees (id, name, descriptor)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			descriptor = EXCLUDED.descriptor,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, e.ID, e.Name, descriptor); err != nil {
		return fmt.Errorf("enroll employee %s: %w", e.ID, err)
	}
	slog.Debug("employee enrolled", "employee", e.ID, "has_descriptor", e.Descriptor != nil)
	return nil
}

// Delete removes an employee and reports whether it existed.
func (r *EmployeeRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete employee %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEmployee reads one row of employeeColumns. The descriptor is selected
// as text so a NULL column scans cleanly.
func scanEmployee(row rowScanner) (*database.StoredEmployee, error) {
	var e database.StoredEmployee
	var descriptor sql.NullString

	if err := row.Scan(&e.ID, &e.Name, &descriptor, &e.EnrolledAt); err != nil {
		return nil, err
	}
	if descriptor.Valid {
		var vec pgvector.Vector
		if err := vec.Scan(descriptor.String); err != nil {
			return nil, fmt.Errorf("parse descriptor of %s: %w", e.ID, err)
		}
		e.Descriptor = vec.Slice()
	}
	return &e, nil
}
