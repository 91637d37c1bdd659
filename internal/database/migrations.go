package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"scrollguard/internal/infrastructure/logging"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var errNilDB = errors.New("database connection is nil")

// migrationFS returns the embedded migrations rooted at their directory
func migrationFS() (fs.FS, error) {
	return fs.Sub(embedMigrations, "migrations")
}

// MigrationRunner applies the embedded DDL migrations that create the
// collection and blob tables. Each runner owns a goose provider bound to one
// connection, so runners for different databases do not share state.
type MigrationRunner struct {
	provider *goose.Provider
	initErr  error
	logger   logging.Logger
}

var _ MigrationManager = (*MigrationRunner)(nil)

// NewMigrationRunner creates a runner for db. Construction errors are
// reported by the first call that needs the database.
func NewMigrationRunner(db *sql.DB, logger logging.Logger) *MigrationRunner {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	r := &MigrationRunner{logger: logger}
	if db == nil {
		r.initErr = errNilDB
		return r
	}

	fsys, err := migrationFS()
	if err == nil {
		r.provider, err = goose.NewProvider(goose.DialectSQLite3, db, fsys)
	}
	if err != nil {
		r.initErr = fmt.Errorf("creating migration provider: %w", err)
	}
	return r
}

// RunMigrations applies every pending migration
func (mr *MigrationRunner) RunMigrations(ctx context.Context) error {
	if mr.initErr != nil {
		return mr.initErr
	}

	results, err := mr.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, res := range results {
		mr.logger.Info("Applied table layout migration",
			"version", res.Source.Version,
			"file", path.Base(res.Source.Path),
			"duration_ms", res.Duration.Milliseconds())
	}
	if len(results) == 0 {
		mr.logger.Debug("Table layout is up to date")
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version, 0 before
// the first run
func (mr *MigrationRunner) GetCurrentVersion(ctx context.Context) (int64, error) {
	if mr.initErr != nil {
		return 0, mr.initErr
	}

	version, err := mr.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// HasPending reports whether migrations remain to be applied
func (mr *MigrationRunner) HasPending(ctx context.Context) (bool, error) {
	if mr.initErr != nil {
		return false, mr.initErr
	}
	return mr.provider.HasPending(ctx)
}

// ValidateMigrations checks that the embedded files are numbered 1..n with no
// gaps. It reads the embedded filesystem only.
func (mr *MigrationRunner) ValidateMigrations() error {
	fsys, err := migrationFS()
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migrations found in embedded filesystem")
	}

	versions := make([]int64, 0, len(names))
	for _, name := range names {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for i, v := range versions {
		if v != int64(i+1) {
			return fmt.Errorf("migration versions must be contiguous from 1, found %d at position %d", v, i+1)
		}
	}

	mr.logger.Debug("Found embedded migrations", "count", len(names))
	return nil
}
