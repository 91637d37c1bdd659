package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	dberrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteService is the single storage handle shared by every store component
//
// Lifecycle:
// 1. Create service with NewSQLiteService()
// 2. Connect to the medium with Connect()
// 3. Create the table layout with Migrate()
// 4. Hand DB() to the repository layer
// 5. Close service with Close()
type SQLiteService struct {
	mu              sync.RWMutex
	db              *sql.DB
	config          *Config
	migrationRunner MigrationManager
	logger          logging.Logger
}

var _ Service = (*SQLiteService)(nil)

// NewSQLiteService creates a new SQLite database service
func NewSQLiteService(logger logging.Logger) *SQLiteService {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &SQLiteService{
		logger: logger,
	}
}

// Connect opens the medium. Any previous connection is closed first.
func (s *SQLiteService) Connect(ctx context.Context, config *Config) error {
	if config == nil {
		return dberrors.HandleValidationError("Connect", "config", "nil", "configuration is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close existing database connection", "error", err)
		}
		s.db = nil
		s.migrationRunner = nil
	}

	driver := config.Driver
	if driver == "" {
		driver = DriverMattn
	}

	db, err := sql.Open(driver, config.GetConnectionString())
	if err != nil {
		return dberrors.HandleUnavailable("Connect", fmt.Sprintf("failed to open database: %v", err))
	}

	// One connection serializes every operation and keeps pragmas in effect
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dberrors.WrapStorageErrorWithContext("Connect", err, map[string]string{
			"phase": "ping",
			"path":  config.Path,
		})
	}

	if config.MaxPageCount > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA max_page_count = %d", config.MaxPageCount)); err != nil {
			db.Close()
			return dberrors.WrapStorageErrorWithContext("Connect", err, map[string]string{
				"phase": "max_page_count",
			})
		}
	}

	cfg := config.Clone()
	cfg.Driver = driver
	s.db = db
	s.config = cfg
	s.migrationRunner = NewMigrationRunner(db, s.logger)

	s.logger.Info("Connected to SQLite database", "path", config.Path, "driver", driver)
	return nil
}

// Close closes the database connection
func (s *SQLiteService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.migrationRunner = nil
	if err != nil {
		return dberrors.WrapStorageError("Close", err)
	}

	s.logger.Info("Closed SQLite database connection")
	return nil
}

// Migrate creates or upgrades the table layout
func (s *SQLiteService) Migrate(ctx context.Context) error {
	s.mu.RLock()
	db, runner := s.db, s.migrationRunner
	s.mu.RUnlock()

	if db == nil {
		return dberrors.HandleUnavailable("Migrate", "database not connected")
	}
	if runner == nil {
		return dberrors.HandleValidationError("Migrate", "migrationRunner", "nil", "migration runner not initialized")
	}

	if err := runner.ValidateMigrations(); err != nil {
		return dberrors.NewStoreErrorWithContext("Migrate", err, dberrors.ErrCodeSchema, map[string]string{
			"phase": "validation",
		})
	}

	if err := runner.RunMigrations(ctx); err != nil {
		return dberrors.WrapStorageErrorWithContext("Migrate", err, map[string]string{
			"phase": "execution",
		})
	}

	return nil
}

// Health checks the database connection health
func (s *SQLiteService) Health(ctx context.Context) error {
	db := s.DB()
	if db == nil {
		return dberrors.HandleUnavailable("Health", "database not connected")
	}

	if err := db.PingContext(ctx); err != nil {
		return dberrors.WrapStorageErrorWithContext("Health", err, map[string]string{
			"phase": "ping",
		})
	}

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return dberrors.WrapStorageErrorWithContext("Health", err, map[string]string{
			"phase": "quick_check",
		})
	}

	if result != "ok" {
		return dberrors.NewStoreErrorWithContext("Health", fmt.Errorf("integrity check: %s", result), dberrors.ErrCodeCorruption, nil)
	}

	return nil
}

// DB returns the underlying handle, nil when not connected
func (s *SQLiteService) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Config returns the configuration of the current connection
func (s *SQLiteService) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// DriverName returns the database/sql driver in use
func (s *SQLiteService) DriverName() string {
	if cfg := s.Config(); cfg != nil {
		return cfg.Driver
	}
	return ""
}

// GetMigrationVersion returns the current table layout version
func (s *SQLiteService) GetMigrationVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	db, runner := s.db, s.migrationRunner
	s.mu.RUnlock()

	if db == nil {
		return 0, dberrors.HandleUnavailable("GetMigrationVersion", "database not connected")
	}
	if runner == nil {
		return 0, dberrors.HandleValidationError("GetMigrationVersion", "migrationRunner", "nil", "migration runner not initialized")
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		return 0, dberrors.WrapStorageError("GetMigrationVersion", err)
	}
	return version, nil
}

// BytesUsed reports the on-disk footprint as page_count * page_size
func (s *SQLiteService) BytesUsed(ctx context.Context) (int64, error) {
	db := s.DB()
	if db == nil {
		return 0, dberrors.HandleUnavailable("BytesUsed", "database not connected")
	}

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, dberrors.WrapStorageError("BytesUsed", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, dberrors.WrapStorageError("BytesUsed", err)
	}
	return pageCount * pageSize, nil
}

// Optimize runs ANALYZE and VACUUM, typically after a large retention sweep
func (s *SQLiteService) Optimize(ctx context.Context) error {
	db := s.DB()
	if db == nil {
		return dberrors.HandleUnavailable("Optimize", "database not connected")
	}

	if _, err := db.ExecContext(ctx, "ANALYZE"); err != nil {
		return dberrors.WrapStorageErrorWithContext("Optimize", err, map[string]string{
			"phase": "analyze",
		})
	}

	// Ignored on non-WAL journals
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("wal_checkpoint failed", "error", err)
	}

	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return dberrors.WrapStorageErrorWithContext("Optimize", err, map[string]string{
			"phase": "vacuum",
		})
	}

	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		s.logger.Warn("PRAGMA optimize failed", "error", err)
	}

	s.logger.Info("Database optimization completed")
	return nil
}
