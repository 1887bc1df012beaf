package attendance

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLedger is an in-memory Ledger with the contract the interface
// demands: one mutex plays the role of the per-participant transaction
// serialization, double opens and closes without an open session are no-ops.
// Instants are applied in lock order, like transaction time in the real
// repository, so a caller-supplied timestamp never moves the ledger backwards.
type memoryLedger struct {
	mu       sync.Mutex
	sessions []*Session
	last     map[ParticipantID]time.Time
}

// clampForward must be called with mu held.
func (m *memoryLedger) clampForward(participantID ParticipantID, at time.Time) time.Time {
	if m.last == nil {
		m.last = make(map[ParticipantID]time.Time)
	}
	if prev, ok := m.last[participantID]; ok && !at.After(prev) {
		at = prev.Add(time.Nanosecond)
	}
	m.last[participantID] = at
	return at
}

func (m *memoryLedger) Open(_ context.Context, participantID ParticipantID, at time.Time) (OpenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findOpen(participantID) != nil {
		return OpenResult{AlreadyOpen: true}, nil
	}

	session, err := NewSession(participantID, m.clampForward(participantID, at))
	if err != nil {
		return OpenResult{}, err
	}
	m.sessions = append(m.sessions, session)
	return OpenResult{}, nil
}

func (m *memoryLedger) Close(_ context.Context, participantID ParticipantID, at time.Time) (CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.findOpen(participantID)
	if session == nil {
		return CloseResult{}, nil
	}

	if err := session.Close(m.clampForward(participantID, at)); err != nil {
		return CloseResult{}, err
	}
	return CloseResult{HadOpenSession: true, Duration: session.Duration()}, nil
}

func (m *memoryLedger) ListOpenParticipants(_ context.Context) ([]ParticipantID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []ParticipantID
	for _, s := range m.sessions {
		if s.IsOpen() {
			ids = append(ids, s.ParticipantID)
		}
	}
	return ids, nil
}

// findOpen must be called with mu held.
func (m *memoryLedger) findOpen(participantID ParticipantID) *Session {
	for _, s := range m.sessions {
		if s.ParticipantID == participantID && s.IsOpen() {
			return s
		}
	}
	return nil
}

func (m *memoryLedger) sessionsOf(participantID ParticipantID) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.ParticipantID == participantID {
			out = append(out, s)
		}
	}
	return out
}

func TestLedger_DuplicateOpenAndCloseAreNoOps(t *testing.T) {
	ledger := &memoryLedger{}
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	first, err := ledger.Open(ctx, 42, base)
	require.NoError(t, err)
	assert.False(t, first.AlreadyOpen)

	second, err := ledger.Open(ctx, 42, base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, second.AlreadyOpen, "second open must be a no-op")

	closed, err := ledger.Close(ctx, 42, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, closed.HadOpenSession)
	assert.Equal(t, time.Hour, closed.Duration, "duration measured from the first open")

	again, err := ledger.Close(ctx, 42, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, again.HadOpenSession, "close without an open session is a no-op")
}

func TestLedger_SingleOpenSessionUnderInterleaving(t *testing.T) {
	ledger := &memoryLedger{}
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	const (
		workers    = 8
		iterations = 50
		target     = ParticipantID(42)
		bystander  = ParticipantID(7)
	)

	// Every operation gets a distinct, increasing instant.
	var tick int64
	nextInstant := func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}

	var realOpens, realCloses int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				switch (seed + i) % 3 {
				case 0, 1:
					result, err := ledger.Open(ctx, target, nextInstant())
					assert.NoError(t, err)
					if !result.AlreadyOpen {
						atomic.AddInt64(&realOpens, 1)
					}
				case 2:
					result, err := ledger.Close(ctx, target, nextInstant())
					assert.NoError(t, err)
					if result.HadOpenSession {
						atomic.AddInt64(&realCloses, 1)
					}
				}

				// A concurrent observer must never see two open sessions
				// for the same participant.
				open, err := ledger.ListOpenParticipants(ctx)
				assert.NoError(t, err)
				seen := 0
				for _, id := range open {
					if id == target {
						seen++
					}
				}
				assert.LessOrEqual(t, seen, 1)
			}
		}(w)
	}

	// An unrelated participant proceeds in parallel without interference.
	_, err := ledger.Open(ctx, bystander, nextInstant())
	require.NoError(t, err)

	wg.Wait()

	sessions := ledger.sessionsOf(target)
	require.NotEmpty(t, sessions)
	assert.Equal(t, realOpens, int64(len(sessions)), "every effective open created exactly one session")

	openCount := 0
	closedCount := 0
	for _, s := range sessions {
		if s.IsOpen() {
			openCount++
		} else {
			closedCount++
			assert.True(t, s.LeftAt.After(s.JoinedAt))
		}
	}
	assert.LessOrEqual(t, openCount, 1, "at most one open session may remain")
	assert.Equal(t, realCloses, int64(closedCount))

	// Closed sessions never overlap: each starts at or after the previous end.
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].JoinedAt.Before(sessions[j].JoinedAt) })
	for i := 1; i < len(sessions); i++ {
		prev := sessions[i-1]
		require.NotNil(t, prev.LeftAt, "only the last session may be open")
		assert.False(t, sessions[i].JoinedAt.Before(*prev.LeftAt))
	}

	bystanderSessions := ledger.sessionsOf(bystander)
	require.Len(t, bystanderSessions, 1)
	assert.True(t, bystanderSessions[0].IsOpen())
}
