package database

import (
	"context"
	"database/sql"
)

// Service abstracts the storage medium: connection management, DDL
// migrations and maintenance
type Service interface {
	// Connection management
	Connect(ctx context.Context, config *Config) error
	Close() error
	Health(ctx context.Context) error

	// Medium access
	DB() *sql.DB
	Config() *Config
	DriverName() string

	// Migration management
	Migrate(ctx context.Context) error
	GetMigrationVersion(ctx context.Context) (int64, error)

	// Maintenance and accounting
	Optimize(ctx context.Context) error
	BytesUsed(ctx context.Context) (int64, error)
}

// MigrationManager handles table layout evolution
type MigrationManager interface {
	RunMigrations(ctx context.Context) error
	GetCurrentVersion(ctx context.Context) (int64, error)
	ValidateMigrations() error
}
