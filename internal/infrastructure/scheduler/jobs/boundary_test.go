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

type fakeNotifier struct {
	mu           sync.Mutex
	celebrated   []attendance.ParticipantID
	openedWith   []attendance.ParticipantID
	closedWith   []attendance.ParticipantID
	celebrateErr error
}

func (f *fakeNotifier) CelebrateFirstAttendance(_ context.Context, id attendance.ParticipantID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.celebrateErr != nil {
		return f.celebrateErr
	}
	f.celebrated = append(f.celebrated, id)
	return nil
}

func (f *fakeNotifier) AnnounceWindowOpen(_ context.Context, present []attendance.ParticipantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openedWith = append([]attendance.ParticipantID(nil), present...)
	return nil
}

func (f *fakeNotifier) AnnounceWindowClose(_ context.Context, closed []attendance.ParticipantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedWith = append([]attendance.ParticipantID(nil), closed...)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW OPEN JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestWindowOpenJob_OpensForEveryonePresent(t *testing.T) {
	ledger := newFakeLedger()
	roster := &fakeRoster{present: []attendance.ParticipantID{10, 20, 30}}

	job := NewWindowOpenJob(ledger, roster, nil, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []attendance.ParticipantID{10, 20, 30}, ledger.opened)
}

func TestWindowOpenJob_CelebratesFirstAttendance(t *testing.T) {
	ledger := newFakeLedger()
	ledger.firstTodays[10] = true
	roster := &fakeRoster{present: []attendance.ParticipantID{10, 20}}
	notifier := &fakeNotifier{}

	job := NewWindowOpenJob(ledger, roster, notifier, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []attendance.ParticipantID{10}, notifier.celebrated)
	assert.ElementsMatch(t, []attendance.ParticipantID{10, 20}, notifier.openedWith)
}

func TestWindowOpenJob_EmptyChannelNoAnnouncement(t *testing.T) {
	ledger := newFakeLedger()
	roster := &fakeRoster{present: nil}
	notifier := &fakeNotifier{}

	job := NewWindowOpenJob(ledger, roster, notifier, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, ledger.opened)
	assert.Empty(t, notifier.openedWith)
}

func TestWindowOpenJob_RosterErrorFails(t *testing.T) {
	ledger := newFakeLedger()
	roster := &fakeRoster{err: errors.New("gateway down")}

	job := NewWindowOpenJob(ledger, roster, nil, nil, DefaultBoundaryConfig())
	assert.Error(t, job.Run(context.Background()))
}

func TestWindowOpenJob_NotifierFailureIsNotFatal(t *testing.T) {
	ledger := newFakeLedger()
	ledger.firstTodays[10] = true
	roster := &fakeRoster{present: []attendance.ParticipantID{10}}
	notifier := &fakeNotifier{celebrateErr: errors.New("channel unavailable")}

	job := NewWindowOpenJob(ledger, roster, notifier, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []attendance.ParticipantID{10}, ledger.opened)
}

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW CLOSE JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestWindowCloseJob_ClosesEverything(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	notifier := &fakeNotifier{}
	inv := &fakeInvalidator{}

	job := NewWindowCloseJob(ledger, notifier, inv, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []attendance.ParticipantID{1, 2, 3}, ledger.closed)
	assert.ElementsMatch(t, []attendance.ParticipantID{1, 2, 3}, notifier.closedWith)
	assert.Equal(t, 1, inv.callCount())
}

func TestWindowCloseJob_CountsFirstCompletions(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	ledger.firstTodays[1] = true
	ledger.firstTodays[3] = true

	job := NewWindowCloseJob(ledger, nil, nil, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Closed)
	// 2 finished an earlier session today, only 1 and 3 completed their first.
	assert.Equal(t, 2, stats.FirstCompletions)
	assert.Equal(t, 0, stats.FailedCount)
}

func TestWindowCloseJob_NothingOpenIsQuiet(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	inv := &fakeInvalidator{}

	job := NewWindowCloseJob(ledger, notifier, inv, nil, DefaultBoundaryConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, ledger.closed)
	assert.Empty(t, notifier.closedWith)
	assert.Equal(t, 0, inv.callCount())
}

func TestWindowCloseJob_PartialFailureStillClosesOthers(t *testing.T) {
	ledger := newFakeLedger(1, 2)
	ledger.closeErr[1] = errors.New("connection reset")

	job := NewWindowCloseJob(ledger, nil, nil, nil, DefaultBoundaryConfig())
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.ElementsMatch(t, []attendance.ParticipantID{2}, ledger.closed)
}
