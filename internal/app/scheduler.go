package app

import (
	"context"
	"sync"
	"time"

	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/types"
)

const sweepTimeout = 2 * time.Minute

// Sweeper runs one retention sweep
type Sweeper interface {
	ApplyConfiguredRetention(ctx context.Context) (types.RetentionResult, error)
}

// Optimizer reclaims space on the medium
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// RetentionScheduler runs retention on a fixed interval and shortly after
// writes, never on the caller's goroutine. Notifications arriving within the
// debounce window collapse into one sweep.
type RetentionScheduler struct {
	sweeper   Sweeper
	optimizer Optimizer
	interval time.Duration
	debounce time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	running bool
	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewRetentionScheduler creates a stopped scheduler. An interval of zero
// disables the periodic sweep and keeps only the write-triggered one.
func NewRetentionScheduler(sweeper Sweeper, interval, debounce time.Duration, logger logging.Logger) *RetentionScheduler {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionScheduler{
		sweeper:  sweeper,
		interval: interval,
		debounce: debounce,
		logger:   logger,
		notify:   make(chan struct{}, 1),
	}
}

// WithOptimizer makes the scheduler optimize the medium after every sweep
// that removed data. Must be called before Start.
func (s *RetentionScheduler) WithOptimizer(o Optimizer) *RetentionScheduler {
	s.optimizer = o
	return s
}

// Start launches the background loop. Calling Start twice is a no-op.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	s.logger.Info("Retention scheduler started", "interval", s.interval.String(), "debounce", s.debounce.String())
}

// Stop ends the loop and waits for an in-flight sweep to finish
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Retention scheduler stopped")
}

// Notify records that a write happened. It never blocks.
func (s *RetentionScheduler) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *RetentionScheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-tick:
			s.sweep("interval")
		case <-s.notify:
			if debounce == nil {
				debounce = time.NewTimer(s.debounce)
				fire = debounce.C
			}
		case <-fire:
			debounce, fire = nil, nil
			s.sweep("write")
		case <-stop:
			return
		}
	}
}

func (s *RetentionScheduler) sweep(trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.ApplyConfiguredRetention(ctx)
	if err != nil {
		// The retention manager already logged each failing step
		s.logger.Warn("Scheduled retention sweep incomplete", "trigger", trigger, "error", err.Error())
		return
	}
	logging.LogOperation(s.logger, "ScheduledRetention", time.Since(start), map[string]interface{}{
		"trigger": trigger,
		"cutoff":  result.Cutoff,
		"removed": result.Removed(),
	})

	if s.optimizer == nil || result.Removed() == 0 {
		return
	}
	if err := s.optimizer.Optimize(ctx); err != nil {
		s.logger.Warn("Post-retention optimize failed", "trigger", trigger, "error", err.Error())
	}
}
