package attendance

import (
	"context"
	"time"
)

// Ledger is the write-side port of the session ledger. Implementations must
// keep the single-open-session invariant under concurrent callers and treat
// double opens and closes without an open session as no-ops.
type Ledger interface {
	// Open records that the participant entered the tracked channel at the
	// given instant. Idempotent while a session is already open.
	Open(ctx context.Context, participantID ParticipantID, at time.Time) (OpenResult, error)

	// Close seals the participant's open session at the given instant.
	// A no-op when no session is open.
	Close(ctx context.Context, participantID ParticipantID, at time.Time) (CloseResult, error)

	// ListOpenParticipants returns participants with an open session.
	ListOpenParticipants(ctx context.Context) ([]ParticipantID, error)
}

// Aggregator is the read-side port over closed sessions.
// Unknown participants yield empty results, never errors.
type Aggregator interface {
	// Leaderboard returns ranked standings. limit <= 0 returns everyone.
	Leaderboard(ctx context.Context, limit int) ([]Standing, error)

	// ParticipantStanding returns the standing of one participant, or nil
	// when the participant has no closed sessions.
	ParticipantStanding(ctx context.Context, participantID ParticipantID) (*Standing, error)

	// AttendedDates returns the distinct attendance dates of the participant
	// within the month containing the given time, as local midnights.
	AttendedDates(ctx context.Context, participantID ParticipantID, month time.Time) ([]time.Time, error)
}

// Roster reports live membership of the tracked channel. Outside the active
// window implementations return an empty set.
type Roster interface {
	Present(ctx context.Context) ([]ParticipantID, error)
}
