package services

import (
	"context"
	"math"

	"scrollguard/internal/database"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/platform"
	"scrollguard/internal/types"
)

// UsageSource reports the bytes the store occupies on the medium
type UsageSource interface {
	BytesUsed(ctx context.Context) (int64, error)
}

// QuotaReporter compares store size with the device quota. It never blocks writes.
type QuotaReporter struct {
	usage       UsageSource
	probe       platform.DiskProbe
	path        string
	quotaBytes  int64
	warnPercent float64
	logger      logging.Logger
}

// NewQuotaReporter creates a reporter. A positive config QuotaBytes overrides
// the device probe; probe may be nil.
func NewQuotaReporter(usage UsageSource, probe platform.DiskProbe, config *database.Config, logger logging.Logger) *QuotaReporter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	q := &QuotaReporter{usage: usage, probe: probe, logger: logger}
	if config != nil {
		q.quotaBytes = config.QuotaBytes
		q.warnPercent = config.QuotaWarnPercent
		if !config.IsInMemory() {
			q.path = config.Path
		}
	}
	return q
}

// Usage returns bytes used, bytes available and the percentage used
func (q *QuotaReporter) Usage(ctx context.Context) (types.QuotaUsage, error) {
	used, err := q.usage.BytesUsed(ctx)
	if err != nil {
		logging.LogError(q.logger, err, "QuotaReporter.Usage", nil)
		return types.QuotaUsage{}, err
	}

	available := q.available(used)
	percent := 0.0
	if available > 0 {
		percent = math.Round(float64(used)/float64(available)*10000) / 100
	}
	return types.QuotaUsage{
		BytesUsed:      used,
		BytesAvailable: available,
		PercentageUsed: percent,
	}, nil
}

// NearLimit reports whether usage crossed the configured warning threshold
func (q *QuotaReporter) NearLimit(u types.QuotaUsage) bool {
	return q.warnPercent > 0 && u.PercentageUsed >= q.warnPercent
}

// available resolves the quota: configured value, then device free space
// plus what the store already holds, then the fixed default
func (q *QuotaReporter) available(used int64) int64 {
	if q.quotaBytes > 0 {
		return q.quotaBytes
	}
	if q.probe != nil && q.path != "" {
		free, err := q.probe.FreeBytes(q.path)
		if err == nil && free > 0 {
			return free + used
		}
		if err != nil {
			q.logger.Debug("Device quota unavailable, using default", "path", q.path, "error", err)
		}
	}
	return database.DefaultQuotaBytes
}
