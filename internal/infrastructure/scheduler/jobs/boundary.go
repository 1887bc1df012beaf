package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/notification"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW BOUNDARY JOBS
// ══════════════════════════════════════════════════════════════════════════════

// BoundaryConfig contains configuration shared by the window boundary jobs.
type BoundaryConfig struct {
	// Timeout is the maximum duration for one boundary sweep.
	Timeout time.Duration

	// Concurrency is the number of ledger operations run in parallel.
	Concurrency int
}

// DefaultBoundaryConfig returns sensible defaults.
func DefaultBoundaryConfig() BoundaryConfig {
	return BoundaryConfig{
		Timeout:     time.Minute,
		Concurrency: 4,
	}
}

// WindowOpenJob runs at the opening edge of the study window. Members who
// are already sitting in the voice channel when the window opens get their
// sessions started, since no gateway transition will fire for them.
type WindowOpenJob struct {
	ledger   attendance.Ledger
	roster   attendance.Roster
	notifier notification.Notifier
	logger   *logger.Logger
	config   BoundaryConfig
}

// NewWindowOpenJob creates the opening boundary job. The notifier is optional.
func NewWindowOpenJob(
	ledger attendance.Ledger,
	roster attendance.Roster,
	notifier notification.Notifier,
	log *logger.Logger,
	config BoundaryConfig,
) *WindowOpenJob {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &WindowOpenJob{
		ledger:   ledger,
		roster:   roster,
		notifier: notifier,
		logger:   log.With(logger.JobName("window_open")),
		config:   config,
	}
}

// Name returns the job name.
func (j *WindowOpenJob) Name() string {
	return "window_open"
}

// Description returns a human-readable description.
func (j *WindowOpenJob) Description() string {
	return "Opens attendance sessions for members already in the channel when the window opens"
}

// Run executes the opening sweep.
func (j *WindowOpenJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	present, err := j.roster.Present(ctx)
	if err != nil {
		return fmt.Errorf("failed to read channel roster: %w", err)
	}

	now := time.Now()
	opened, failed := fanOut(ctx, present, j.config.Concurrency, func(ctx context.Context, pid attendance.ParticipantID) error {
		result, err := j.ledger.Open(ctx, pid, now)
		if err != nil {
			j.logger.Error("failed to open session at window open",
				logger.ParticipantID(pid.Int64()),
				logger.Err(err),
			)
			return err
		}
		if result.FirstToday && j.notifier != nil {
			if err := j.notifier.CelebrateFirstAttendance(ctx, pid, now); err != nil {
				j.logger.Warn("failed to send first attendance celebration",
					logger.ParticipantID(pid.Int64()),
					logger.Err(err),
				)
			}
		}
		return nil
	})

	j.logger.Info("window open sweep completed",
		logger.Int("present", len(present)),
		logger.Int("opened", opened),
		logger.Int("failed", failed),
	)

	if j.notifier != nil && len(present) > 0 {
		if err := j.notifier.AnnounceWindowOpen(ctx, present); err != nil {
			j.logger.Warn("failed to announce window open", logger.Err(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("window open failed for %d participants", failed)
	}
	return nil
}

// WindowCloseJob runs at the closing edge of the study window. Every session
// still open gets closed, so time spent in the channel after hours never
// counts toward attendance.
type WindowCloseJob struct {
	ledger      attendance.Ledger
	notifier    notification.Notifier
	invalidator CacheInvalidator
	logger      *logger.Logger
	config      BoundaryConfig

	lastStats atomic.Value // *CloseSweepStats
}

// CloseSweepStats contains statistics from one closing sweep.
type CloseSweepStats struct {
	CompletedAt time.Time
	OpenBefore  int
	Closed      int
	FailedCount int

	// FirstCompletions counts members whose just-closed session was their
	// first completed attendance of the day. Members who already finished an
	// earlier session today are excluded.
	FirstCompletions int
}

// NewWindowCloseJob creates the closing boundary job. The notifier and
// invalidator are optional.
func NewWindowCloseJob(
	ledger attendance.Ledger,
	notifier notification.Notifier,
	invalidator CacheInvalidator,
	log *logger.Logger,
	config BoundaryConfig,
) *WindowCloseJob {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &WindowCloseJob{
		ledger:      ledger,
		notifier:    notifier,
		invalidator: invalidator,
		logger:      log.With(logger.JobName("window_close")),
		config:      config,
	}
}

// Name returns the job name.
func (j *WindowCloseJob) Name() string {
	return "window_close"
}

// Description returns a human-readable description.
func (j *WindowCloseJob) Description() string {
	return "Closes every open attendance session when the window closes"
}

// Run executes the closing sweep.
func (j *WindowCloseJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	open, err := j.ledger.ListOpenParticipants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open sessions: %w", err)
	}

	now := time.Now()
	var firstCompletions int64
	closed, failed := fanOut(ctx, open, j.config.Concurrency, func(ctx context.Context, pid attendance.ParticipantID) error {
		result, err := j.ledger.Close(ctx, pid, now)
		if err != nil {
			j.logger.Error("failed to close session at window close",
				logger.ParticipantID(pid.Int64()),
				logger.Err(err),
			)
			return err
		}
		if result.FirstToday {
			atomic.AddInt64(&firstCompletions, 1)
		}
		return nil
	})

	j.lastStats.Store(&CloseSweepStats{
		CompletedAt:      time.Now(),
		OpenBefore:       len(open),
		Closed:           closed,
		FailedCount:      failed,
		FirstCompletions: int(firstCompletions),
	})

	j.logger.Info("window close sweep completed",
		logger.Int("open_before", len(open)),
		logger.Int("closed", closed),
		logger.Int("first_completions", int(firstCompletions)),
		logger.Int("failed", failed),
	)

	if closed > 0 && j.invalidator != nil {
		if err := j.invalidator.Invalidate(ctx); err != nil {
			j.logger.Warn("failed to invalidate aggregate cache", logger.Err(err))
		}
	}

	if j.notifier != nil && len(open) > 0 {
		if err := j.notifier.AnnounceWindowClose(ctx, open); err != nil {
			j.logger.Warn("failed to announce window close", logger.Err(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("window close failed for %d participants", failed)
	}
	return nil
}

// LastStats returns statistics from the last closing sweep.
func (j *WindowCloseJob) LastStats() *CloseSweepStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*CloseSweepStats)
}

// fanOut runs fn for every participant with bounded concurrency and returns
// the success and failure counts.
func fanOut(
	ctx context.Context,
	ids []attendance.ParticipantID,
	concurrency int,
	fn func(ctx context.Context, pid attendance.ParticipantID) error,
) (succeeded, failed int) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, concurrency)
		mu        sync.Mutex
	)

	for _, id := range ids {
		select {
		case <-ctx.Done():
			wg.Wait()
			return succeeded, failed
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(pid attendance.ParticipantID) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := fn(ctx, pid)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			} else {
				succeeded++
			}
		}(id)
	}

	wg.Wait()
	return succeeded, failed
}
