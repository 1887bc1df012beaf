// Package jobs contains the scheduled jobs of the mogakko bot. The jobs keep
// the attendance ledger consistent with the live voice channel: a periodic
// reconciliation sweep corrects drift from missed gateway events, and the
// window boundary jobs open and close sessions at the edges of the study
// window.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE JOB
// ══════════════════════════════════════════════════════════════════════════════

// CacheInvalidator drops cached aggregates after the ledger changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ReconcileJob compares open ledger sessions against the live channel roster
// and corrects both directions: members in the channel without an open
// session get one opened, open sessions whose member already left get
// closed. Running it at startup doubles as crash recovery, since sessions
// left open by an unclean shutdown are closed on the first sweep.
//
// Reconciliation is silent: it never announces first attendance, because a
// sweep after a crash could re-celebrate hours late.
type ReconcileJob struct {
	ledger      attendance.Ledger
	roster      attendance.Roster
	invalidator CacheInvalidator
	logger      *logger.Logger

	config ReconcileConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileConfig contains configuration for the reconcile job.
type ReconcileConfig struct {
	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration

	// Concurrency is the number of ledger operations run in parallel.
	Concurrency int
}

// DefaultReconcileConfig returns sensible defaults.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Timeout:     30 * time.Second,
		Concurrency: 4,
	}
}

// ReconcileStats contains statistics from one reconciliation sweep.
type ReconcileStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	PresentNow  int
	OpenBefore  int
	Opened      int
	Closed      int
	FailedCount int
	Errors      []ReconcileError
}

// ReconcileError represents a failed ledger operation during a sweep.
type ReconcileError struct {
	ParticipantID attendance.ParticipantID
	Operation     string
	Error         error
	OccurredAt    time.Time
}

// NewReconcileJob creates a new reconcile job. The invalidator is optional.
func NewReconcileJob(
	ledger attendance.Ledger,
	roster attendance.Roster,
	invalidator CacheInvalidator,
	log *logger.Logger,
	config ReconcileConfig,
) *ReconcileJob {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &ReconcileJob{
		ledger:      ledger,
		roster:      roster,
		invalidator: invalidator,
		logger:      log.With(logger.JobName("reconcile_attendance")),
		config:      config,
	}
}

// Name returns the job name.
func (j *ReconcileJob) Name() string {
	return "reconcile_attendance"
}

// Description returns a human-readable description.
func (j *ReconcileJob) Description() string {
	return "Reconciles open attendance sessions against the live voice channel roster"
}

// Run executes one reconciliation sweep.
func (j *ReconcileJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReconcileStats{
		StartedAt: startedAt,
		Errors:    make([]ReconcileError, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// The roster is the source of truth for this sweep. If it cannot be
	// read the sweep is aborted and retried on the next tick.
	present, err := j.roster.Present(ctx)
	if err != nil {
		return fmt.Errorf("failed to read channel roster: %w", err)
	}

	open, err := j.ledger.ListOpenParticipants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open sessions: %w", err)
	}

	stats.PresentNow = len(present)
	stats.OpenBefore = len(open)

	presentSet := make(map[attendance.ParticipantID]struct{}, len(present))
	for _, id := range present {
		presentSet[id] = struct{}{}
	}
	openSet := make(map[attendance.ParticipantID]struct{}, len(open))
	for _, id := range open {
		openSet[id] = struct{}{}
	}

	var toClose, toOpen []attendance.ParticipantID
	for _, id := range open {
		if _, ok := presentSet[id]; !ok {
			toClose = append(toClose, id)
		}
	}
	for _, id := range present {
		if _, ok := openSet[id]; !ok {
			toOpen = append(toOpen, id)
		}
	}

	now := time.Now()
	j.applyConcurrently(ctx, toClose, "close", now, stats)
	j.applyConcurrently(ctx, toOpen, "open", now, stats)

	if stats.Closed > 0 && j.invalidator != nil {
		if err := j.invalidator.Invalidate(ctx); err != nil {
			j.logger.Warn("failed to invalidate aggregate cache", logger.Err(err))
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	if stats.Opened > 0 || stats.Closed > 0 || stats.FailedCount > 0 {
		j.logger.Info("reconciliation sweep completed",
			logger.Int("present", stats.PresentNow),
			logger.Int("open_before", stats.OpenBefore),
			logger.Int("opened", stats.Opened),
			logger.Int("closed", stats.Closed),
			logger.Int("failed", stats.FailedCount),
			logger.Duration("duration", stats.Duration),
		)
	}

	if stats.FailedCount > 0 {
		return fmt.Errorf("reconciliation failed for %d participants", stats.FailedCount)
	}
	return nil
}

// applyConcurrently runs one ledger operation per participant with bounded
// concurrency. Failures are collected; one participant's error never stops
// the others.
func (j *ReconcileJob) applyConcurrently(
	ctx context.Context,
	ids []attendance.ParticipantID,
	operation string,
	at time.Time,
	stats *ReconcileStats,
) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, id := range ids {
		select {
		case <-ctx.Done():
			// Stop launching, but wait for in-flight operations: Run reads
			// the stats right after this returns.
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(pid attendance.ParticipantID) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch operation {
			case "open":
				_, err = j.ledger.Open(ctx, pid, at)
			case "close":
				_, err = j.ledger.Close(ctx, pid, at)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				stats.FailedCount++
				stats.Errors = append(stats.Errors, ReconcileError{
					ParticipantID: pid,
					Operation:     operation,
					Error:         err,
					OccurredAt:    time.Now(),
				})
				j.logger.Error("ledger operation failed during sweep",
					logger.ParticipantID(pid.Int64()),
					logger.Operation(operation),
					logger.Err(err),
				)
				return
			}

			switch operation {
			case "open":
				stats.Opened++
			case "close":
				stats.Closed++
			}
		}(id)
	}

	wg.Wait()
}

// LastStats returns statistics from the last sweep.
func (j *ReconcileJob) LastStats() *ReconcileStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ReconcileStats)
}
