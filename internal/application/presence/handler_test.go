package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeLedger struct {
	openResult  attendance.OpenResult
	closeResult attendance.CloseResult
	openErr     error
	closeErr    error

	opened   []attendance.ParticipantID
	closed   []attendance.ParticipantID
	closedAt []time.Time
}

func (f *fakeLedger) Open(_ context.Context, id attendance.ParticipantID, _ time.Time) (attendance.OpenResult, error) {
	if f.openErr != nil {
		return attendance.OpenResult{}, f.openErr
	}
	f.opened = append(f.opened, id)
	return f.openResult, nil
}

func (f *fakeLedger) Close(_ context.Context, id attendance.ParticipantID, at time.Time) (attendance.CloseResult, error) {
	if f.closeErr != nil {
		return attendance.CloseResult{}, f.closeErr
	}
	f.closed = append(f.closed, id)
	f.closedAt = append(f.closedAt, at)
	return f.closeResult, nil
}

func (f *fakeLedger) ListOpenParticipants(_ context.Context) ([]attendance.ParticipantID, error) {
	return nil, nil
}

type fakeNotifier struct {
	celebrated []attendance.ParticipantID
}

func (f *fakeNotifier) CelebrateFirstAttendance(_ context.Context, id attendance.ParticipantID, _ time.Time) error {
	f.celebrated = append(f.celebrated, id)
	return nil
}

func (f *fakeNotifier) AnnounceWindowOpen(_ context.Context, _ []attendance.ParticipantID) error {
	return nil
}

func (f *fakeNotifier) AnnounceWindowClose(_ context.Context, _ []attendance.ParticipantID) error {
	return nil
}

type fakeDisplay struct {
	counts []int
}

func (f *fakeDisplay) UpdateHeadCount(_ context.Context, count int) error {
	f.counts = append(f.counts, count)
	return nil
}

type fixedHeadCounter int

func (f fixedHeadCounter) HeadCount() int { return int(f) }

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(_ context.Context) error {
	f.calls++
	return nil
}

func newTestHandler(t *testing.T, ledger *fakeLedger, opts ...func(*Config)) (*Handler, *fakeNotifier, *fakeDisplay, *fakeInvalidator) {
	t.Helper()

	notifier := &fakeNotifier{}
	display := &fakeDisplay{}
	inv := &fakeInvalidator{}

	cfg := Config{
		Ledger:      ledger,
		Window:      attendance.DefaultWindow(),
		Notifier:    notifier,
		Display:     display,
		HeadCounter: fixedHeadCounter(3),
		Invalidator: inv,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := NewHandler(cfg)
	require.NoError(t, err)
	return h, notifier, display, inv
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestNewHandler_RequiresLedger(t *testing.T) {
	_, err := NewHandler(Config{Window: attendance.DefaultWindow()})
	assert.Error(t, err)
}

func TestHandleEnter_OpensSessionInsideWindow(t *testing.T) {
	ledger := &fakeLedger{}
	h, _, display, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 19, 30, 0)
	require.NoError(t, h.HandleEnter(context.Background(), 100, at))

	assert.Equal(t, []attendance.ParticipantID{100}, ledger.opened)
	assert.Equal(t, []int{3}, display.counts, "head count refreshed after enter")
}

func TestHandleEnter_IgnoredOutsideWindow(t *testing.T) {
	ledger := &fakeLedger{}
	h, _, display, _ := newTestHandler(t, ledger)

	// 17:59 is before the window opens.
	at := timeutil.DateTime(2026, 3, 2, 17, 59, 0)
	require.NoError(t, h.HandleEnter(context.Background(), 100, at))

	assert.Empty(t, ledger.opened)
	assert.Equal(t, []int{3}, display.counts, "display still reflects occupancy off-hours")
}

func TestHandleEnter_WindowEdges(t *testing.T) {
	tests := []struct {
		name       string
		hour, min  int
		wantOpened bool
	}{
		{name: "open boundary is inclusive", hour: 18, min: 0, wantOpened: true},
		{name: "last minute counts", hour: 21, min: 59, wantOpened: true},
		{name: "close boundary is exclusive", hour: 22, min: 0, wantOpened: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			h, _, _, _ := newTestHandler(t, ledger)

			at := timeutil.DateTime(2026, 3, 2, tt.hour, tt.min, 0)
			require.NoError(t, h.HandleEnter(context.Background(), 100, at))

			if tt.wantOpened {
				assert.NotEmpty(t, ledger.opened)
			} else {
				assert.Empty(t, ledger.opened)
			}
		})
	}
}

func TestHandleEnter_CelebratesFirstAttendance(t *testing.T) {
	ledger := &fakeLedger{openResult: attendance.OpenResult{FirstToday: true}}
	h, notifier, _, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 19, 0, 0)
	require.NoError(t, h.HandleEnter(context.Background(), 100, at))

	assert.Equal(t, []attendance.ParticipantID{100}, notifier.celebrated)
}

func TestHandleEnter_NoCelebrationOnRepeatEntry(t *testing.T) {
	ledger := &fakeLedger{openResult: attendance.OpenResult{FirstToday: false}}
	h, notifier, _, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 19, 0, 0)
	require.NoError(t, h.HandleEnter(context.Background(), 100, at))

	assert.Empty(t, notifier.celebrated)
}

func TestHandleEnter_AlreadyOpenIsQuiet(t *testing.T) {
	ledger := &fakeLedger{openResult: attendance.OpenResult{AlreadyOpen: true, FirstToday: true}}
	h, notifier, _, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 19, 0, 0)
	require.NoError(t, h.HandleEnter(context.Background(), 100, at))

	assert.Empty(t, notifier.celebrated)
}

func TestHandleEnter_PropagatesLedgerError(t *testing.T) {
	ledger := &fakeLedger{openErr: errors.New("connection refused")}
	h, _, _, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 19, 0, 0)
	assert.Error(t, h.HandleEnter(context.Background(), 100, at))
}

func TestHandleLeave_ClosesAndInvalidates(t *testing.T) {
	ledger := &fakeLedger{closeResult: attendance.CloseResult{HadOpenSession: true, Duration: time.Hour}}
	h, _, display, inv := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 20, 0, 0)
	require.NoError(t, h.HandleLeave(context.Background(), 100, at))

	assert.Equal(t, []attendance.ParticipantID{100}, ledger.closed)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, []int{3}, display.counts)
}

func TestHandleLeave_NoOpenSessionSkipsInvalidation(t *testing.T) {
	ledger := &fakeLedger{closeResult: attendance.CloseResult{HadOpenSession: false}}
	h, _, _, inv := newTestHandler(t, ledger)

	// A leave after the boundary sweep already closed everything.
	at := timeutil.DateTime(2026, 3, 2, 22, 5, 0)
	require.NoError(t, h.HandleLeave(context.Background(), 100, at))

	assert.Equal(t, 0, inv.calls)
}

func TestHandleLeave_AttemptedEvenOutsideWindow(t *testing.T) {
	ledger := &fakeLedger{closeResult: attendance.CloseResult{HadOpenSession: true, Duration: time.Minute}}
	h, _, _, _ := newTestHandler(t, ledger)

	at := timeutil.DateTime(2026, 3, 2, 23, 0, 0)
	require.NoError(t, h.HandleLeave(context.Background(), 100, at))

	assert.Equal(t, []attendance.ParticipantID{100}, ledger.closed)
}

func TestHandleLeave_ClampsCloseInstantToWindow(t *testing.T) {
	tests := []struct {
		name  string
		leave time.Time
		want  time.Time
	}{
		{
			name:  "inside window passes through",
			leave: timeutil.DateTime(2026, 3, 2, 21, 30, 0),
			want:  timeutil.DateTime(2026, 3, 2, 21, 30, 0),
		},
		{
			name:  "lingering past closing clamps to same-day close",
			leave: timeutil.DateTime(2026, 3, 2, 23, 40, 0),
			want:  timeutil.DateTime(2026, 3, 2, 22, 0, 0),
		},
		{
			name:  "early-morning leave clamps to previous day's close",
			leave: timeutil.DateTime(2026, 3, 3, 2, 15, 0),
			want:  timeutil.DateTime(2026, 3, 2, 22, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{closeResult: attendance.CloseResult{HadOpenSession: true, Duration: time.Hour}}
			h, _, _, _ := newTestHandler(t, ledger)

			require.NoError(t, h.HandleLeave(context.Background(), 100, tt.leave))
			require.Len(t, ledger.closedAt, 1)
			assert.True(t, tt.want.Equal(ledger.closedAt[0]),
				"left_at must not be credited outside the window")
		})
	}
}
