package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when no employee backend has been registered.
var ErrNotInitialized = errors.New("employee database not initialized: DATABASE_URL or MARIADB_DSN is required")

var (
	providerMu       sync.RWMutex
	postgresReader   func() EmployeeReader
	postgresWriter   func() EmployeeWriter
	mariadbReader    func() EmployeeReader
	backendsRegistry []string
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the caller that owns the pool to avoid import cycles.
func RegisterPostgresBackend(reader func() EmployeeReader, writer func() EmployeeWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresReader = reader
	postgresWriter = writer
	backendsRegistry = append(backendsRegistry, "postgres")
}

// RegisterMariaDBBackend registers the read-only legacy MariaDB reader.
func RegisterMariaDBBackend(reader func() EmployeeReader) {
	providerMu.Lock()
	defer providerMu.Unlock()
	mariadbReader = reader
	backendsRegistry = append(backendsRegistry, "mariadb")
}

// IsInitialized returns whether any employee backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresReader != nil || mariadbReader != nil
}

// Backends returns the names of the registered backends in registration order.
func Backends() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return append([]string(nil), backendsRegistry...)
}

// GetEmployeeReader returns the PostgreSQL reader, falling back to MariaDB.
func GetEmployeeReader(_ context.Context) (EmployeeReader, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	switch {
	case postgresReader != nil:
		return postgresReader(), nil
	case mariadbReader != nil:
		return mariadbReader(), nil
	default:
		return nil, ErrNotInitialized
	}
}

// GetEmployeeWriter returns the PostgreSQL writer. The MariaDB backend is
// read-only and never returned here.
func GetEmployeeWriter(_ context.Context) (EmployeeWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if postgresWriter == nil {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required for enrollment")
	}
	return postgresWriter(), nil
}
