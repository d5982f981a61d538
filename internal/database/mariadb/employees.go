package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

const employeeQuery = `SELECT id, name, face_descriptor, created_at FROM employees`

// EmployeeReader reads the legacy HR employees table, where face_descriptor
// is a JSON object keyed by component index ({"0": 0.12, "1": -0.03, ...}).
type EmployeeReader struct {
	pool *Pool
	dim  int
}

// NewEmployeeReader creates a read-only employee reader.
func NewEmployeeReader(pool *Pool, dim int) *EmployeeReader {
	if dim <= 0 {
		dim = constants.DescriptorDim
	}
	return &EmployeeReader{pool: pool, dim: dim}
}

// FetchAll returns the enrollment snapshot ordered by created_at, id.
func (r *EmployeeReader) FetchAll(ctx context.Context) (facematch.Snapshot, error) {
	employees, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return database.ToSnapshot(employees, r.dim), nil
}

// Get retrieves an employee by ID, returns nil if not found.
func (r *EmployeeReader) Get(ctx context.Context, id string) (*database.StoredEmployee, error) {
	row := r.pool.db.QueryRowContext(ctx, employeeQuery+` WHERE id = ?`, id)

	var raw legacyRow
	err := row.Scan(&raw.id, &raw.name, &raw.descriptor, &raw.createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query employee: %w", err)
	}
	e := raw.employee(r.dim)
	return &e, nil
}

// List returns all employees ordered by created_at, id.
func (r *EmployeeReader) List(ctx context.Context) ([]database.StoredEmployee, error) {
	rows, err := r.pool.db.QueryContext(ctx, employeeQuery+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []database.StoredEmployee
	for rows.Next() {
		var raw legacyRow
		if err := rows.Scan(&raw.id, &raw.name, &raw.descriptor, &raw.createdAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, raw.employee(r.dim))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// Count returns the number of employees.
func (r *EmployeeReader) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

type legacyRow struct {
	id         string
	name       string
	descriptor []byte
	createdAt  sql.NullTime
}

// employee converts the row; an unparsable descriptor is logged and dropped.
func (l legacyRow) employee(dim int) database.StoredEmployee {
	e := database.StoredEmployee{ID: l.id, Name: l.name}
	if l.createdAt.Valid {
		e.EnrolledAt = l.createdAt.Time
	}

	desc, err := decodeDescriptor(l.descriptor, dim)
	switch {
	case err == nil:
		e.Descriptor = desc
	case errors.Is(err, facematch.ErrAbsentDescriptor):
	default:
		slog.Debug("ignoring malformed legacy descriptor", "employee", l.id, "error", err)
	}
	return e
}

// decodeDescriptor parses the JSON column. Both the index-keyed object and
// a plain array are accepted.
func decodeDescriptor(data []byte, dim int) (facematch.Descriptor, error) {
	if len(data) == 0 {
		return nil, facematch.ErrAbsentDescriptor
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode descriptor JSON: %w", err)
	}
	return facematch.ParseDescriptor(v, dim)
}
