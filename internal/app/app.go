package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scrollguard/internal/database"
	"scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/platform"
	"scrollguard/internal/repository"
	"scrollguard/internal/services"
)

const (
	// healthCheckTimeout bounds the post-connect health probe
	healthCheckTimeout = 5 * time.Second
	// migrateTimeout bounds the DDL and data migrations
	migrateTimeout = 30 * time.Second
	// shutdownTimeout bounds the whole shutdown sequence
	shutdownTimeout = 30 * time.Second
	// defaultSweepDebounce is the delay between a write and the sweep it triggers
	defaultSweepDebounce = 5 * time.Minute
)

// Options carries the optional collaborators of an App
type Options struct {
	Clock         services.Clock
	Probe         platform.DiskProbe
	SweepDebounce time.Duration
	// NewAggregator overrides the insight query composer
	NewAggregator func(store repository.Store, clock services.Clock) services.Aggregator
	// Database overrides the storage medium
	Database database.Service
}

type components struct {
	store      *repository.SQLiteStore
	retention  *services.RetentionManager
	migrations *services.MigrationManager
	exports    *services.ExportImportService
	quota      *services.QuotaReporter
	journal    *services.JournalService
	reports    *services.ReportService
	activity   *services.ActivityService
	settings   *services.SettingsService
	aggregator services.Aggregator
}

// App owns the storage handle, the store and its services. Every message is
// rejected with StorageUnavailable until Startup completes.
type App struct {
	config    *database.Config
	opts      Options
	clock     services.Clock
	logger    logging.Logger
	dbService database.Service
	gate      *repository.Gate
	router    *Router

	mu         sync.RWMutex
	components *components
	scheduler  *RetentionScheduler
}

// NewApp creates an App. Nothing touches the medium until Startup.
func NewApp(config *database.Config, logger logging.Logger, opts Options) *App {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if opts.Clock == nil {
		opts.Clock = services.SystemClock{}
	}
	if opts.SweepDebounce <= 0 {
		opts.SweepDebounce = defaultSweepDebounce
	}
	if opts.NewAggregator == nil {
		opts.NewAggregator = func(store repository.Store, clock services.Clock) services.Aggregator {
			return services.NewStoreAggregator(store, clock)
		}
	}
	dbService := opts.Database
	if dbService == nil {
		dbService = database.NewSQLiteService(logger)
	}

	a := &App{
		config:    config,
		opts:      opts,
		clock:     opts.Clock,
		logger:    logger,
		dbService: dbService,
		gate:      repository.NewGate(),
		router:    NewRouter(logger),
	}
	a.registerHandlers()
	return a
}

// Startup opens the medium, runs the DDL and data migrations, then opens the
// readiness gate
func (a *App) Startup(ctx context.Context) error {
	if a.config == nil {
		return errors.HandleValidationError("Startup", "config", "nil", "configuration is required")
	}

	errors.SetDefaultRetryLogger(a.logger)

	if err := errors.WithRetryContext(ctx, errors.DefaultRetryConfig(), func() error {
		return a.dbService.Connect(ctx, a.config)
	}, "connect"); err != nil {
		return errors.NewStoreErrorWithContext("Startup", err, errors.ClassifyError(err), map[string]string{
			"operation": "connect",
			"db_path":   a.config.Path,
		})
	}

	if err := a.initializeDatabase(ctx); err != nil {
		a.dbService.Close()
		return err
	}

	c := a.buildComponents()

	migrateCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if err := services.NewMigrationManager(c.store.Bootstrap(), a.logger).Run(migrateCtx); err != nil {
		a.dbService.Close()
		return errors.NewStoreErrorWithContext("Startup", err, errors.ClassifyError(err), map[string]string{
			"operation": "data_migrations",
		})
	}

	a.mu.Lock()
	a.components = c
	if a.config.EnableCleanup {
		a.scheduler = NewRetentionScheduler(c.retention, a.config.RetentionInterval, a.opts.SweepDebounce, a.logger).
			WithOptimizer(a.dbService)
		a.router.OnWrite(a.scheduler.Notify)
	}
	a.mu.Unlock()

	a.gate.Open()
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.logger.Info("Application started", "environment", a.config.Environment, "driver", a.dbService.DriverName())
	return nil
}

// initializeDatabase checks the connection then creates the table layout
func (a *App) initializeDatabase(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := a.dbService.Health(healthCtx); err != nil {
		return errors.NewStoreErrorWithContext("Startup", err, errors.ClassifyError(err), map[string]string{
			"operation": "health_check",
		})
	}

	migrateCtx, migrateCancel := context.WithTimeout(ctx, migrateTimeout)
	defer migrateCancel()

	if err := a.dbService.Migrate(migrateCtx); err != nil {
		return errors.NewStoreErrorWithContext("Startup", err, errors.ClassifyError(err), map[string]string{
			"operation": "migrate",
			"db_path":   a.config.Path,
		})
	}

	a.logger.Info("Database initialization completed")
	return nil
}

// buildComponents wires the store and services. The store captures the
// connection, so this runs after Connect.
func (a *App) buildComponents() *components {
	store := repository.NewSQLiteStore(a.dbService, a.gate, a.logger)

	retention := services.NewRetentionManager(store, a.clock, a.logger)
	retention.SetDefaultWindow(a.config.RetentionDays)

	return &components{
		store:      store,
		retention:  retention,
		migrations: services.NewMigrationManager(store, a.logger),
		exports:    services.NewExportImportService(store, a.clock, a.logger),
		quota:      services.NewQuotaReporter(a.dbService, a.opts.Probe, a.dbService.Config(), a.logger),
		journal:    services.NewJournalService(store, a.clock, a.logger),
		reports:    services.NewReportService(store, a.clock, a.logger),
		activity:   services.NewActivityService(store, a.clock, a.logger),
		settings:   services.NewSettingsService(store, a.logger),
		aggregator: a.opts.NewAggregator(store, a.clock),
	}
}

// Shutdown closes the gate, stops the scheduler and closes the medium
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Starting application shutdown sequence")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	a.gate.Close()

	a.mu.Lock()
	scheduler := a.scheduler
	a.scheduler = nil
	a.components = nil
	a.mu.Unlock()

	a.router.OnWrite(nil)
	if scheduler != nil {
		scheduler.Stop()
	}

	if err := a.closeDatabaseConnection(shutdownCtx); err != nil {
		logging.LogError(a.logger, err, "Shutdown", nil)
		return err
	}

	a.logger.Info("Application shutdown completed")
	return nil
}

// closeDatabaseConnection closes the medium, giving up when ctx expires
func (a *App) closeDatabaseConnection(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- a.dbService.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewStoreErrorWithContext("Shutdown", err, errors.ClassifyError(err), map[string]string{
				"operation": "close_connection",
			})
		}
		return nil
	case <-ctx.Done():
		a.logger.Warn("Database close operation timed out")
		return errors.NewStoreError("Shutdown", fmt.Errorf("close database: %w", ctx.Err()), errors.ErrCodeTimeout)
	}
}

// Router returns the message router
func (a *App) Router() *Router {
	return a.router
}

// Ready reports whether Startup completed and Shutdown has not begun
func (a *App) Ready() bool {
	return a.gate.IsOpen()
}

// Config returns the configuration the App was created with
func (a *App) Config() *database.Config {
	return a.config
}

// GetLogger returns the application's structured logger
func (a *App) GetLogger() logging.Logger {
	return a.logger
}

// SchemaVersion returns the stored data migration version and the target
func (a *App) SchemaVersion(ctx context.Context) (current, target int, err error) {
	c, err := a.ready("SchemaVersion")
	if err != nil {
		return 0, 0, err
	}
	current, err = c.migrations.CurrentVersion(ctx)
	return current, c.migrations.TargetVersion(), err
}

// LayoutVersion returns the applied table layout migration version
func (a *App) LayoutVersion(ctx context.Context) (int64, error) {
	if _, err := a.ready("LayoutVersion"); err != nil {
		return 0, err
	}
	return a.dbService.GetMigrationVersion(ctx)
}

// Optimize analyzes and compacts the medium
func (a *App) Optimize(ctx context.Context) error {
	if _, err := a.ready("Optimize"); err != nil {
		return err
	}
	return a.dbService.Optimize(ctx)
}
