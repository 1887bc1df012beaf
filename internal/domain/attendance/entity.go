// Package attendance contains domain entities and business logic for the
// mogakko attendance ledger: durable sessions, the active time window,
// leaderboard records and the monthly attendance calendar.
package attendance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors for attendance package.
var (
	ErrInvalidParticipant   = errors.New("attendance: invalid participant ID")
	ErrSessionAlreadyClosed = errors.New("attendance: session already closed")
	ErrLeftBeforeJoined     = errors.New("attendance: left_at must be after joined_at")
	ErrZeroTimestamp        = errors.New("attendance: timestamp cannot be zero")
)

// ParticipantID is the Discord snowflake of a tracked member.
type ParticipantID int64

// IsValid checks if the participant ID is valid.
func (p ParticipantID) IsValid() bool {
	return p > 0
}

// Int64 returns the raw snowflake value.
func (p ParticipantID) Int64() int64 {
	return int64(p)
}

// Session is one contiguous stay of a participant in the tracked channel.
// A session is open while LeftAt is nil and immutable once closed.
type Session struct {
	ID            uuid.UUID
	ParticipantID ParticipantID
	JoinedAt      time.Time
	LeftAt        *time.Time // nil while the participant is still present
}

// NewSession creates a new open session starting at joinedAt.
func NewSession(participantID ParticipantID, joinedAt time.Time) (*Session, error) {
	if !participantID.IsValid() {
		return nil, ErrInvalidParticipant
	}
	if joinedAt.IsZero() {
		return nil, ErrZeroTimestamp
	}

	return &Session{
		ID:            uuid.New(),
		ParticipantID: participantID,
		JoinedAt:      joinedAt,
	}, nil
}

// Close seals the session at leftAt. Closed sessions never change again.
func (s *Session) Close(leftAt time.Time) error {
	if s.LeftAt != nil {
		return ErrSessionAlreadyClosed
	}
	if !leftAt.After(s.JoinedAt) {
		return ErrLeftBeforeJoined
	}

	s.LeftAt = &leftAt
	return nil
}

// IsOpen returns true while the session has not been closed.
func (s *Session) IsOpen() bool {
	return s.LeftAt == nil
}

// Duration returns the length of the session.
// For open sessions it measures up to now.
func (s *Session) Duration() time.Duration {
	if s.LeftAt != nil {
		return s.LeftAt.Sub(s.JoinedAt)
	}
	return time.Since(s.JoinedAt)
}

// OpenResult reports what an Open call did.
type OpenResult struct {
	// AlreadyOpen is true when the participant already had an open session
	// and the call was a no-op.
	AlreadyOpen bool
	// FirstToday is true when, after the mutation, the participant has no
	// closed session yet on the current local day. Used for the
	// first-attendance celebration.
	FirstToday bool
}

// CloseResult reports what a Close call did.
type CloseResult struct {
	// HadOpenSession is false when there was nothing to close and the call
	// was a no-op.
	HadOpenSession bool
	// FirstToday is true when the just-closed session is the only closed
	// session of the current local day, meaning the participant just
	// completed their first attendance of the day. Celebrations fire on the
	// open side instead (OpenResult.FirstToday), where the member is greeted
	// on arrival; firing here as well would announce the same member twice.
	// The closing sweep aggregates this flag into its completion count.
	FirstToday bool
	// Duration of the closed session, zero when HadOpenSession is false.
	Duration time.Duration
}
