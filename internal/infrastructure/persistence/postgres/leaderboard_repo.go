// Package postgres implements the PostgreSQL persistence layer of the mogakko bot.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements attendance.Aggregator for PostgreSQL.
// All aggregates derive from closed sessions only; open sessions never count.
type LeaderboardRepository struct {
	conn   *Connection
	window attendance.ActiveWindow
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection, window attendance.ActiveWindow) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn, window: window}
}

// tzName is the timezone passed to AT TIME ZONE for day attribution.
func (r *LeaderboardRepository) tzName() string {
	return r.window.Location.String()
}

// Leaderboard returns ranked standings over all closed sessions.
// limit <= 0 returns every participant.
func (r *LeaderboardRepository) Leaderboard(ctx context.Context, limit int) ([]attendance.Standing, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT participant_id,
		       COUNT(DISTINCT (joined_at AT TIME ZONE $1)::date) AS days,
		       COALESCE(SUM(EXTRACT(EPOCH FROM (left_at - joined_at)))::bigint, 0) AS total_seconds
		FROM attendance_sessions
		WHERE left_at IS NOT NULL
		GROUP BY participant_id
		ORDER BY days DESC, total_seconds DESC, participant_id
	`, r.tzName())
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []attendance.LeaderboardRecord
	for rows.Next() {
		var (
			id           int64
			days         int
			totalSeconds int64
		)
		if err := rows.Scan(&id, &days, &totalSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		records = append(records, attendance.LeaderboardRecord{
			ParticipantID: attendance.ParticipantID(id),
			Days:          days,
			TotalDuration: time.Duration(totalSeconds) * time.Second,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	standings := attendance.Rank(records)
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}

// ParticipantStanding returns one participant's standing, or nil when the
// participant has no closed sessions. Unknown participants are not an error.
func (r *LeaderboardRepository) ParticipantStanding(ctx context.Context, participantID attendance.ParticipantID) (*attendance.Standing, error) {
	var (
		rank         int
		days         int
		totalSeconds int64
	)

	err := r.conn.QueryRow(ctx, `
		WITH totals AS (
			SELECT participant_id,
			       COUNT(DISTINCT (joined_at AT TIME ZONE $1)::date) AS days,
			       COALESCE(SUM(EXTRACT(EPOCH FROM (left_at - joined_at)))::bigint, 0) AS total_seconds
			FROM attendance_sessions
			WHERE left_at IS NOT NULL
			GROUP BY participant_id
		),
		ranked AS (
			SELECT participant_id, days, total_seconds,
			       RANK() OVER (ORDER BY days DESC, total_seconds DESC) AS position
			FROM totals
		)
		SELECT position, days, total_seconds
		FROM ranked
		WHERE participant_id = $2
	`, r.tzName(), participantID.Int64()).Scan(&rank, &days, &totalSeconds)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query participant standing: %w", err)
	}

	return &attendance.Standing{
		Rank: rank,
		LeaderboardRecord: attendance.LeaderboardRecord{
			ParticipantID: participantID,
			Days:          days,
			TotalDuration: time.Duration(totalSeconds) * time.Second,
		},
	}, nil
}

// AttendedDates returns the distinct attendance dates of the participant in
// the month containing month, as local midnights in the window timezone.
func (r *LeaderboardRepository) AttendedDates(ctx context.Context, participantID attendance.ParticipantID, month time.Time) ([]time.Time, error) {
	monthStart := timeutil.StartOfMonth(month)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT (joined_at AT TIME ZONE $1)::date AS day
		FROM attendance_sessions
		WHERE participant_id = $2
		  AND left_at IS NOT NULL
		  AND joined_at >= $3 AND joined_at < $4
		ORDER BY day
	`, r.tzName(), participantID.Int64(), monthStart, monthEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to query attended dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan attended date: %w", err)
		}
		// ::date scans with no timezone attached; pin it to local midnight.
		dates = append(dates, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.window.Location))
	}

	return dates, rows.Err()
}
