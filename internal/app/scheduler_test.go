package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"scrollguard/internal/testutils"
	"scrollguard/internal/types"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls   atomic.Int32
	deleted int64
	err     error
}

func (s *countingSweeper) ApplyConfiguredRetention(context.Context) (types.RetentionResult, error) {
	s.calls.Add(1)
	return types.RetentionResult{Cutoff: "2024-01-01", MetricsDeleted: s.deleted}, s.err
}

type countingOptimizer struct {
	calls atomic.Int32
	err   error
}

func (o *countingOptimizer) Optimize(context.Context) error {
	o.calls.Add(1)
	return o.err
}

func TestRetentionScheduler_DebouncesNotifications(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewRetentionScheduler(sweeper, 0, 30*time.Millisecond, &testutils.RecordingLogger{})
	s.Start()
	defer s.Stop()

	for i := 0; i < 10; i++ {
		s.Notify()
	}

	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), sweeper.calls.Load())

	s.Notify()
	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRetentionScheduler_Interval(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewRetentionScheduler(sweeper, 10*time.Millisecond, time.Hour, &testutils.RecordingLogger{})
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestRetentionScheduler_LogsIncompleteSweep(t *testing.T) {
	logger := &testutils.RecordingLogger{}
	sweeper := &countingSweeper{err: errors.New("journal step failed")}
	s := NewRetentionScheduler(sweeper, 0, time.Millisecond, logger)
	s.Start()

	s.Notify()
	assert.Eventually(t, func() bool { return logger.Contains("WARN", "Scheduled retention sweep incomplete") }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestRetentionScheduler_StopIsIdempotent(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewRetentionScheduler(sweeper, 0, time.Millisecond, &testutils.RecordingLogger{})

	s.Stop()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	s.Notify()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), sweeper.calls.Load())
}

func TestRetentionScheduler_OptimizesAfterDeletingSweep(t *testing.T) {
	sweeper := &countingSweeper{deleted: 3}
	optimizer := &countingOptimizer{}
	s := NewRetentionScheduler(sweeper, 0, time.Millisecond, &testutils.RecordingLogger{}).WithOptimizer(optimizer)
	s.Start()
	defer s.Stop()

	s.Notify()
	assert.Eventually(t, func() bool { return optimizer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRetentionScheduler_SkipsOptimizeWhenNothingRemoved(t *testing.T) {
	sweeper := &countingSweeper{}
	optimizer := &countingOptimizer{}
	s := NewRetentionScheduler(sweeper, 0, time.Millisecond, &testutils.RecordingLogger{}).WithOptimizer(optimizer)
	s.Start()

	s.Notify()
	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Zero(t, optimizer.calls.Load())
}

func TestRetentionScheduler_LogsFailedOptimize(t *testing.T) {
	logger := &testutils.RecordingLogger{}
	sweeper := &countingSweeper{deleted: 1}
	optimizer := &countingOptimizer{err: errors.New("disk I/O error")}
	s := NewRetentionScheduler(sweeper, 0, time.Millisecond, logger).WithOptimizer(optimizer)
	s.Start()

	s.Notify()
	assert.Eventually(t, func() bool { return logger.Contains("WARN", "Post-retention optimize failed") }, time.Second, 5*time.Millisecond)
	s.Stop()
}
