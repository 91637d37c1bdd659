package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// ExportImportService snapshots the whole dataset into one JSON document
// and restores it
type ExportImportService struct {
	store  repository.Store
	clock  Clock
	logger logging.Logger
}

// NewExportImportService creates an export/import service over store
func NewExportImportService(store repository.Store, clock Clock, logger logging.Logger) *ExportImportService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ExportImportService{store: store, clock: clock, logger: logger}
}

// ExportAll reads every blob and collection inside one transaction so the
// snapshot is consistent
func (s *ExportImportService) ExportAll(ctx context.Context) (*types.ExportDocument, error) {
	const op = "ExportAll"
	start := time.Now()

	doc := &types.ExportDocument{
		Version:    types.ExportFormatVersion,
		ExportDate: s.clock.Now().UTC().Format(time.RFC3339),
	}

	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		reports, _, err := repository.LoadBlob(ctx, tx, types.BlobReports, codec.ReportArchive, map[string][]types.Report{})
		if err != nil {
			return err
		}
		journal, _, err := repository.LoadBlob(ctx, tx, types.BlobJournal, codec.Journal, map[string][]types.JournalEntry{})
		if err != nil {
			return err
		}
		if doc.Preferences, _, err = repository.LoadBlob(ctx, tx, types.BlobPreferences, codec.Preferences, types.DefaultPreferences()); err != nil {
			return err
		}
		if doc.NudgeSettings, _, err = repository.LoadBlob(ctx, tx, types.BlobNudgeSettings, codec.NudgeSettings, types.DefaultNudgeSettings()); err != nil {
			return err
		}
		tabs, version, err := repository.LoadBlob(ctx, tx, types.BlobTabGroupingSettings, codec.TabGroupingSettings, types.TabGroupingSettings{})
		if err != nil {
			return err
		}
		if version > 0 {
			doc.TabGroupingSettings = &tabs
		}
		doc.Reports = reports
		doc.Journal = journal

		if doc.DailyMetrics, err = tx.DailyMetrics().All(ctx); err != nil {
			return err
		}
		if doc.BehaviorPatterns, err = tx.Patterns().All(ctx); err != nil {
			return err
		}
		if doc.SiteActivity, err = tx.Sites().All(ctx); err != nil {
			return err
		}
		doc.ReportRecords, err = tx.Reports().All(ctx)
		return err
	})
	if err != nil {
		logging.LogError(s.logger, err, op, nil)
		return nil, err
	}

	logging.LogOperation(s.logger, op, time.Since(start), map[string]interface{}{
		"daily_metrics":     len(doc.DailyMetrics),
		"behavior_patterns": len(doc.BehaviorPatterns),
		"site_activity":     len(doc.SiteActivity),
		"report_records":    len(doc.ReportRecords),
	})
	return doc, nil
}

// ExportJSON returns the export document as indented JSON
func (s *ExportImportService) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := s.ExportAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, repoerrors.NewStoreError("ExportJSON", err, repoerrors.ErrCodeInternal)
	}
	return data, nil
}

// importPlan is a fully decoded import document. Nil collections were
// absent from the document and are left untouched.
type importPlan struct {
	reports       map[string][]types.Report
	journal       map[string][]types.JournalEntry
	preferences   types.Preferences
	nudgeSettings types.NudgeSettings
	tabGrouping   *types.TabGroupingSettings
	dailyMetrics  []types.DailyMetric
	patterns      []types.BehaviorPattern
	sites         []types.SiteActivity
	reportRecords []types.Report
}

// ImportAll validates the whole document before writing anything, then
// replaces every blob and every collection present in it within one
// transaction. Any validation failure is an InvalidImportFormat error and
// leaves the store untouched.
func (s *ExportImportService) ImportAll(ctx context.Context, data []byte) error {
	const op = "ImportAll"
	start := time.Now()

	plan, err := parseImport(data)
	if err != nil {
		logging.LogError(s.logger, err, op, nil)
		return err
	}

	err = s.store.WithTransaction(ctx, func(tx repository.Store) error {
		if err := repository.SaveBlob(ctx, tx, types.BlobReports, codec.ReportArchive, plan.reports); err != nil {
			return err
		}
		if err := repository.SaveBlob(ctx, tx, types.BlobJournal, codec.Journal, plan.journal); err != nil {
			return err
		}
		if err := repository.SaveBlob(ctx, tx, types.BlobPreferences, codec.Preferences, plan.preferences); err != nil {
			return err
		}
		if err := repository.SaveBlob(ctx, tx, types.BlobNudgeSettings, codec.NudgeSettings, plan.nudgeSettings); err != nil {
			return err
		}
		if plan.tabGrouping != nil {
			if err := repository.SaveBlob(ctx, tx, types.BlobTabGroupingSettings, codec.TabGroupingSettings, *plan.tabGrouping); err != nil {
				return err
			}
		}
		if plan.dailyMetrics != nil {
			if err := tx.DailyMetrics().ReplaceAll(ctx, plan.dailyMetrics); err != nil {
				return err
			}
		}
		if plan.patterns != nil {
			if err := tx.Patterns().ReplaceAll(ctx, plan.patterns); err != nil {
				return err
			}
		}
		if plan.sites != nil {
			if err := tx.Sites().ReplaceAll(ctx, plan.sites); err != nil {
				return err
			}
		}
		if plan.reportRecords != nil {
			return tx.Reports().ReplaceAll(ctx, plan.reportRecords)
		}
		return nil
	})
	if err != nil {
		logging.LogError(s.logger, err, op, nil)
		return err
	}

	s.logger.Info("Import completed",
		"report_days", len(plan.reports),
		"journal_days", len(plan.journal),
		"daily_metrics", len(plan.dailyMetrics),
		"behavior_patterns", len(plan.patterns),
		"site_activity", len(plan.sites),
		"report_records", len(plan.reportRecords),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func parseImport(data []byte) (*importPlan, error) {
	const op = "ImportAll"

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "document", err)
	}
	if raw == nil {
		return nil, repoerrors.HandleInvalidImport(op, "document", errors.New("document is null"))
	}

	for _, field := range []string{"version", "exportDate", "reports", "journal", "preferences", "nudgeSettings"} {
		if v, ok := raw[field]; !ok || isJSONNull(v) {
			return nil, repoerrors.HandleInvalidImport(op, field, errors.New("required field is missing or null"))
		}
	}

	version, err := codec.SchemaVersion.Decode(raw["version"])
	if err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "version", err)
	}
	if version != types.ExportFormatVersion {
		return nil, repoerrors.HandleInvalidImport(op, "version",
			fmt.Errorf("unsupported export format version %d", version))
	}

	var exportDate string
	if err := json.Unmarshal(raw["exportDate"], &exportDate); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "exportDate", err)
	}
	if _, err := time.Parse(time.RFC3339, exportDate); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "exportDate", err)
	}

	plan := &importPlan{}
	if plan.reports, err = codec.ReportArchive.Decode(raw["reports"]); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "reports", err)
	}
	if plan.journal, err = codec.Journal.Decode(raw["journal"]); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "journal", err)
	}
	if plan.preferences, err = codec.Preferences.Decode(raw["preferences"]); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "preferences", err)
	}
	if plan.nudgeSettings, err = codec.NudgeSettings.Decode(raw["nudgeSettings"]); err != nil {
		return nil, repoerrors.HandleInvalidImport(op, "nudgeSettings", err)
	}
	if v, ok := optional(raw, "tabGroupingSettings"); ok {
		tabs, err := codec.TabGroupingSettings.Decode(v)
		if err != nil {
			return nil, repoerrors.HandleInvalidImport(op, "tabGroupingSettings", err)
		}
		plan.tabGrouping = &tabs
	}

	if plan.dailyMetrics, err = decodeCollection(raw, "dailyMetrics", codec.DailyMetrics, func(m types.DailyMetric) string { return m.Date }); err != nil {
		return nil, err
	}
	if plan.patterns, err = decodeCollection(raw, "behaviorPatterns", codec.Patterns, func(p types.BehaviorPattern) string { return p.ID }); err != nil {
		return nil, err
	}
	if plan.sites, err = decodeCollection(raw, "siteActivity", codec.Sites, func(s types.SiteActivity) string { return s.Domain }); err != nil {
		return nil, err
	}
	if plan.reportRecords, err = decodeCollection(raw, "reportRecords", codec.Reports, func(r types.Report) string { return r.ID }); err != nil {
		return nil, err
	}
	return plan, nil
}

// decodeCollection decodes an optional collection field. It returns nil when
// the field is absent and rejects duplicate keys.
func decodeCollection[T codec.Validator](raw map[string]json.RawMessage, field string, c codec.Record[T], keyOf func(T) string) ([]T, error) {
	v, ok := optional(raw, field)
	if !ok {
		return nil, nil
	}
	recs, err := c.DecodeList(v)
	if err != nil {
		return nil, repoerrors.HandleInvalidImport("ImportAll", field, err)
	}

	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		key := keyOf(rec)
		if seen[key] {
			return nil, repoerrors.HandleInvalidImport("ImportAll", field, fmt.Errorf("duplicate key %q", key))
		}
		seen[key] = true
	}
	return recs, nil
}

func optional(raw map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	v, ok := raw[field]
	if !ok || isJSONNull(v) {
		return nil, false
	}
	return v, true
}

func isJSONNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
