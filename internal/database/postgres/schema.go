package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDescriptorDim means the employees.descriptor column cannot hold
// descriptors of the configured dimension.
var ErrDescriptorDim = errors.New("descriptor dimension mismatch")

// migration is one embedded schema change, identified by its file name.
type migration struct {
	version string
	sql     string
}

// loadMigrations returns the embedded migrations in version order.
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := migrationsFS.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(content)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// Migrate brings the employees schema up to date. Each migration runs in its
// own transaction together with its schema_migrations row.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	all, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range all {
		if slices.Contains(applied, m.version) {
			continue
		}
		if err := p.apply(ctx, m); err != nil {
			return err
		}
		slog.Info("applied employees schema migration", "version", m.version)
	}
	return nil
}

func (p *Pool) apply(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}

// MigrationsApplied returns the applied migration versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}

// DescriptorDim reads the declared dimension of employees.descriptor.
// pgvector stores it as the column's type modifier; -1 means unconstrained.
func (p *Pool) DescriptorDim(ctx context.Context) (int, error) {
	var dim int
	err := p.db.QueryRowContext(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = 'employees'::regclass
		  AND a.attname = 'descriptor'
		  AND NOT a.attisdropped
	`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: employees.descriptor column is missing", ErrDescriptorDim)
	}
	if err != nil {
		return 0, fmt.Errorf("query descriptor dimension: %w", err)
	}
	return dim, nil
}

// checkDescriptorDim compares the column dimension with DESCRIPTOR_DIM.
func checkDescriptorDim(column, want int) error {
	if column < 0 || column == want {
		return nil
	}
	return fmt.Errorf("%w: employees.descriptor is vector(%d) but DESCRIPTOR_DIM is %d; add a migration that alters the column",
		ErrDescriptorDim, column, want)
}
