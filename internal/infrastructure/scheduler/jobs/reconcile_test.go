package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeLedger struct {
	mu sync.Mutex

	open     []attendance.ParticipantID
	listErr  error
	openErr  map[attendance.ParticipantID]error
	closeErr map[attendance.ParticipantID]error
	opDelay  time.Duration

	opened      []attendance.ParticipantID
	closed      []attendance.ParticipantID
	firstTodays map[attendance.ParticipantID]bool
}

func newFakeLedger(open ...attendance.ParticipantID) *fakeLedger {
	return &fakeLedger{
		open:        open,
		openErr:     make(map[attendance.ParticipantID]error),
		closeErr:    make(map[attendance.ParticipantID]error),
		firstTodays: make(map[attendance.ParticipantID]bool),
	}
}

func (f *fakeLedger) Open(_ context.Context, id attendance.ParticipantID, _ time.Time) (attendance.OpenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openErr[id]; err != nil {
		return attendance.OpenResult{}, err
	}
	f.opened = append(f.opened, id)
	return attendance.OpenResult{FirstToday: f.firstTodays[id]}, nil
}

func (f *fakeLedger) Close(_ context.Context, id attendance.ParticipantID, _ time.Time) (attendance.CloseResult, error) {
	if f.opDelay > 0 {
		time.Sleep(f.opDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.closeErr[id]; err != nil {
		return attendance.CloseResult{}, err
	}
	f.closed = append(f.closed, id)
	return attendance.CloseResult{
		HadOpenSession: true,
		FirstToday:     f.firstTodays[id],
		Duration:       time.Hour,
	}, nil
}

func (f *fakeLedger) ListOpenParticipants(_ context.Context) ([]attendance.ParticipantID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.open, nil
}

type fakeRoster struct {
	present []attendance.ParticipantID
	err     error
}

func (f *fakeRoster) Present(_ context.Context) ([]attendance.ParticipantID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.present, nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeInvalidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcileJob_OpensAndClosesDrift(t *testing.T) {
	ledger := newFakeLedger(1, 2) // open sessions for 1 and 2
	roster := &fakeRoster{present: []attendance.ParticipantID{2, 3}}

	job := NewReconcileJob(ledger, roster, nil, nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	// 1 left without a gateway event, 3 joined without one. 2 matches.
	assert.ElementsMatch(t, []attendance.ParticipantID{1}, ledger.closed)
	assert.ElementsMatch(t, []attendance.ParticipantID{3}, ledger.opened)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Opened)
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, 0, stats.FailedCount)
}

func TestReconcileJob_NoDriftNoOps(t *testing.T) {
	ledger := newFakeLedger(1, 2)
	roster := &fakeRoster{present: []attendance.ParticipantID{1, 2}}

	job := NewReconcileJob(ledger, roster, nil, nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, ledger.opened)
	assert.Empty(t, ledger.closed)
}

func TestReconcileJob_RosterErrorAbortsSweep(t *testing.T) {
	ledger := newFakeLedger(1)
	roster := &fakeRoster{err: errors.New("gateway down")}

	job := NewReconcileJob(ledger, roster, nil, nil, DefaultReconcileConfig())
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Empty(t, ledger.closed, "no session may be closed on a partial view")
}

func TestReconcileJob_ContinuesPastSingleFailure(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	ledger.closeErr[2] = errors.New("connection reset")
	roster := &fakeRoster{present: nil}

	job := NewReconcileJob(ledger, roster, nil, nil, DefaultReconcileConfig())
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.ElementsMatch(t, []attendance.ParticipantID{1, 3}, ledger.closed)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Closed)
	assert.Equal(t, 1, stats.FailedCount)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, attendance.ParticipantID(2), stats.Errors[0].ParticipantID)
	assert.Equal(t, "close", stats.Errors[0].Operation)
}

func TestReconcileJob_TimeoutWaitsForInFlightOps(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3, 4, 5, 6, 7, 8)
	ledger.opDelay = 20 * time.Millisecond
	roster := &fakeRoster{present: nil}

	config := ReconcileConfig{Timeout: 5 * time.Millisecond, Concurrency: 2}
	job := NewReconcileJob(ledger, roster, nil, nil, config)
	_ = job.Run(context.Background())

	// The sweep hit its timeout mid-fanout. Every operation it launched must
	// have finished before Run returned, so the stored stats agree with the
	// ledger and nothing mutates either afterwards.
	stats := job.LastStats()
	require.NotNil(t, stats)

	ledger.mu.Lock()
	closedNow := len(ledger.closed)
	ledger.mu.Unlock()
	assert.Equal(t, closedNow, stats.Closed)

	time.Sleep(50 * time.Millisecond)
	ledger.mu.Lock()
	closedLater := len(ledger.closed)
	ledger.mu.Unlock()
	assert.Equal(t, closedNow, closedLater, "no ledger writes after the sweep returned")
}

func TestReconcileJob_InvalidatesCacheAfterCloses(t *testing.T) {
	ledger := newFakeLedger(1)
	roster := &fakeRoster{present: nil}
	inv := &fakeInvalidator{}

	job := NewReconcileJob(ledger, roster, inv, nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, inv.callCount())
}

func TestReconcileJob_NoInvalidationWithoutCloses(t *testing.T) {
	ledger := newFakeLedger()
	roster := &fakeRoster{present: []attendance.ParticipantID{5}}
	inv := &fakeInvalidator{}

	job := NewReconcileJob(ledger, roster, inv, nil, DefaultReconcileConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []attendance.ParticipantID{5}, ledger.opened)
	assert.Equal(t, 0, inv.callCount())
}
