// Package postgres implements the PostgreSQL persistence layer of the mogakko bot.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements attendance.Ledger for PostgreSQL.
//
// Every mutation runs in a transaction that first takes
// pg_advisory_xact_lock(participant_id), so all writes for one participant
// are linearized while different participants proceed in parallel. The
// partial unique index idx_sessions_one_open backs the same invariant at
// the storage level.
type SessionRepository struct {
	conn   *Connection
	window attendance.ActiveWindow
}

// NewSessionRepository creates a new SessionRepository.
// The window supplies the local timezone used for day attribution.
func NewSessionRepository(conn *Connection, window attendance.ActiveWindow) *SessionRepository {
	return &SessionRepository{conn: conn, window: window}
}

// Open records that the participant entered the tracked channel.
// Idempotent: a second open while a session is running is a no-op.
func (r *SessionRepository) Open(ctx context.Context, participantID attendance.ParticipantID, at time.Time) (attendance.OpenResult, error) {
	var result attendance.OpenResult

	session, err := attendance.NewSession(participantID, at)
	if err != nil {
		return result, err
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := r.lockParticipant(ctx, tx, participantID); err != nil {
			return err
		}

		var openCount int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM attendance_sessions
			WHERE participant_id = $1 AND left_at IS NULL
		`, participantID.Int64()).Scan(&openCount)
		if err != nil {
			return fmt.Errorf("failed to check open session: %w", err)
		}

		if openCount == 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO attendance_sessions (id, participant_id, joined_at)
				VALUES ($1, $2, $3)
			`, session.ID, participantID.Int64(), at)
			if err != nil {
				if IsUniqueViolation(err) {
					// The advisory lock makes this unreachable in practice;
					// treat it as the session already being open.
					result.AlreadyOpen = true
					err = nil
				} else {
					return fmt.Errorf("failed to insert session: %w", err)
				}
			}
		} else {
			result.AlreadyOpen = true
		}

		closedToday, err := r.countClosedOnDay(ctx, tx, participantID, at)
		if err != nil {
			return err
		}
		result.FirstToday = closedToday == 0

		return nil
	})
	if err != nil {
		return attendance.OpenResult{}, err
	}

	return result, nil
}

// Close seals the participant's open session. A no-op when nothing is open.
func (r *SessionRepository) Close(ctx context.Context, participantID attendance.ParticipantID, at time.Time) (attendance.CloseResult, error) {
	var result attendance.CloseResult

	if !participantID.IsValid() {
		return result, attendance.ErrInvalidParticipant
	}
	if at.IsZero() {
		return result, attendance.ErrZeroTimestamp
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := r.lockParticipant(ctx, tx, participantID); err != nil {
			return err
		}

		var sessionID string
		var joinedAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT id, joined_at FROM attendance_sessions
			WHERE participant_id = $1 AND left_at IS NULL
		`, participantID.Int64()).Scan(&sessionID, &joinedAt)
		if IsNoRows(err) {
			// Nothing to close: a close without an open session is defined
			// as a no-op, reconciliation relies on that.
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find open session: %w", err)
		}

		leftAt := at
		if !leftAt.After(joinedAt) {
			// Clock skew between event sources can yield left_at <= joined_at.
			// Clamp to keep the interval constraint satisfied.
			leftAt = joinedAt.Add(time.Second)
		}

		_, err = tx.Exec(ctx, `
			UPDATE attendance_sessions SET left_at = $2 WHERE id = $1
		`, sessionID, leftAt)
		if err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}

		result.HadOpenSession = true
		result.Duration = leftAt.Sub(joinedAt)

		closedToday, err := r.countClosedOnDay(ctx, tx, participantID, at)
		if err != nil {
			return err
		}
		// The just-closed session is included in the count.
		result.FirstToday = closedToday == 1

		return nil
	})
	if err != nil {
		return attendance.CloseResult{}, err
	}

	return result, nil
}

// ListOpenParticipants returns participants with an open session.
func (r *SessionRepository) ListOpenParticipants(ctx context.Context) ([]attendance.ParticipantID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT participant_id FROM attendance_sessions
		WHERE left_at IS NULL
		ORDER BY participant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	defer rows.Close()

	var participants []attendance.ParticipantID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, attendance.ParticipantID(id))
	}

	return participants, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// lockParticipant serializes all ledger writes for one participant.
func (r *SessionRepository) lockParticipant(ctx context.Context, tx pgx.Tx, participantID attendance.ParticipantID) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", participantID.Int64()); err != nil {
		return fmt.Errorf("failed to acquire participant lock: %w", err)
	}
	return nil
}

// countClosedOnDay counts closed sessions attributed to the local day of at.
// Attribution follows joined_at, the window never crosses midnight.
func (r *SessionRepository) countClosedOnDay(ctx context.Context, tx pgx.Tx, participantID attendance.ParticipantID, at time.Time) (int, error) {
	dayStart := r.window.LocalDate(at)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM attendance_sessions
		WHERE participant_id = $1
		  AND left_at IS NOT NULL
		  AND joined_at >= $2 AND joined_at < $3
	`, participantID.Int64(), dayStart, dayEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count closed sessions: %w", err)
	}

	return count, nil
}
