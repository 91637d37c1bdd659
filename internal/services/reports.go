package services

import (
	"context"

	"github.com/google/uuid"

	"scrollguard/internal/codec"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// ReportService stores generated reports in the reports collection and in
// the date-bucketed archive blob
type ReportService struct {
	store  repository.Store
	clock  Clock
	logger logging.Logger
}

// NewReportService creates a report service
func NewReportService(store repository.Store, clock Clock, logger logging.Logger) *ReportService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ReportService{store: store, clock: clock, logger: logger}
}

// Save assigns an id and generation time when missing, then writes the
// report. Saving the same report twice is a no-op; saving different content
// under an existing id is rejected.
func (s *ReportService) Save(ctx context.Context, r types.Report) (types.Report, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.GeneratedAt == 0 {
		r.GeneratedAt = s.clock.Now().UnixMilli()
	}
	r = r.Canonical()

	// The record and its archive entry commit together
	date := r.Date(s.clock.Now().Location())
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Reports().Put(ctx, r); err != nil {
			return err
		}
		_, err := repository.UpdateBlob(ctx, tx, types.BlobReports, codec.ReportArchive, newArchive,
			func(archive map[string][]types.Report) (map[string][]types.Report, error) {
				for _, existing := range archive[date] {
					if existing.ID == r.ID {
						return archive, nil
					}
				}
				archive[date] = append(archive[date], r)
				return archive, nil
			})
		return err
	})
	if err != nil {
		logging.LogError(s.logger, err, "SaveReport", map[string]interface{}{"id": r.ID})
		return types.Report{}, err
	}
	return r, nil
}

// Recent returns the newest reports first
func (s *ReportService) Recent(ctx context.Context, limit int) ([]types.Report, error) {
	return s.store.Reports().GetRecentByIndex(ctx, repository.IndexGeneratedAt, limit)
}

// Archive returns the reports blob
func (s *ReportService) Archive(ctx context.Context) (types.ReportArchive, error) {
	archive, _, err := repository.LoadBlob(ctx, s.store, types.BlobReports, codec.ReportArchive, newArchive())
	return archive, err
}

// ClearReports deletes every report record and the archive blob
func (s *ReportService) ClearReports(ctx context.Context) error {
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Reports().ReplaceAll(ctx, nil); err != nil {
			return err
		}
		return tx.RemoveBlob(ctx, types.BlobReports)
	})
	if err != nil {
		logging.LogError(s.logger, err, "ClearReports", nil)
		return err
	}
	s.logger.Info("Reports cleared")
	return nil
}

func newArchive() map[string][]types.Report {
	return map[string][]types.Report{}
}
