package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"scrollguard/internal/database"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/types"
)

// SQLiteStore implements Store over the shared storage handle
type SQLiteStore struct {
	db     *sql.DB
	q      DBTX
	inTx   bool
	gate   *Gate
	logger logging.Logger
	now    func() time.Time

	metrics  *Collection[types.DailyMetric]
	patterns *Collection[types.BehaviorPattern]
	sites    *Collection[types.SiteActivity]
	reports  *Collection[types.Report]
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store over the connected service. Operations fail
// with StorageUnavailable until gate is opened; a nil gate is always open.
func NewSQLiteStore(dbService database.Service, gate *Gate, logger logging.Logger) *SQLiteStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	db := dbService.DB()
	return newSQLiteStore(db, db, false, gate, logger, time.Now)
}

func newSQLiteStore(db *sql.DB, q DBTX, inTx bool, gate *Gate, logger logging.Logger, now func() time.Time) *SQLiteStore {
	return &SQLiteStore{
		db:       db,
		q:        q,
		inTx:     inTx,
		gate:     gate,
		logger:   logger,
		now:      now,
		metrics:  newCollection(dailyMetricsSchema, q, gate, logger),
		patterns: newCollection(patternsSchema, q, gate, logger),
		sites:    newCollection(sitesSchema, q, gate, logger),
		reports:  newCollection(reportsSchema, q, gate, logger),
	}
}

// Bootstrap returns a view of the store that ignores the readiness gate. Only
// the startup migration uses it, before the gate opens.
func (s *SQLiteStore) Bootstrap() *SQLiteStore {
	return newSQLiteStore(s.db, s.q, s.inTx, nil, s.logger, s.now)
}

// Gate returns the readiness gate
func (s *SQLiteStore) Gate() *Gate {
	return s.gate
}

func (s *SQLiteStore) DailyMetrics() *Collection[types.DailyMetric] { return s.metrics }
func (s *SQLiteStore) Patterns() *Collection[types.BehaviorPattern] { return s.patterns }
func (s *SQLiteStore) Sites() *Collection[types.SiteActivity] { return s.sites }
func (s *SQLiteStore) Reports() *Collection[types.Report] { return s.reports }

// WithTransaction executes fn within one SQL transaction. Nested calls reuse
// the outer transaction. The store does not retry failed transactions.
func (s *SQLiteStore) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	const op = "WithTransaction"
	if err := s.gate.check(op); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		storeErr := repoerrors.WrapStorageError(op+".Begin", err)
		logging.LogError(s.logger, storeErr, op+".Begin", nil)
		return storeErr
	}

	committed := false
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.Debug("Failed to rollback transaction", "rollback_error", rollbackErr)
			}
		}
	}()

	txStore := newSQLiteStore(s.db, tx, true, s.gate, s.logger, s.now)
	if err := fn(txStore); err != nil {
		s.logger.Debug("Transaction function failed", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		storeErr := repoerrors.WrapStorageError(op+".Commit", err)
		logging.LogError(s.logger, storeErr, op+".Commit", nil)
		return storeErr
	}
	committed = true

	logging.LogOperation(s.logger, op, time.Since(start), nil)
	return nil
}
