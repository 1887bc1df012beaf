// Package postgres implements the PostgreSQL persistence layer of the mogakko bot.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ATTENDANCE SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create attendance_sessions table
-- Version: 001

-- Append-only session ledger. One row per contiguous stay in the tracked
-- voice channel. Open sessions have left_at IS NULL, closed rows never change.
CREATE TABLE IF NOT EXISTS attendance_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    participant_id BIGINT NOT NULL,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL,
    left_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_participant CHECK (participant_id > 0),
    CONSTRAINT valid_interval CHECK (left_at IS NULL OR left_at > joined_at)
);

-- At most one open session per participant. The advisory xact lock taken by
-- the repository already serializes writers; this index is the backstop.
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_open
    ON attendance_sessions(participant_id)
    WHERE left_at IS NULL;
`

const migration001Down = `
DROP TABLE IF EXISTS attendance_sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: AGGREGATION INDEXES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Indexes for leaderboard and calendar aggregation
-- Version: 002

-- Leaderboard and statistics scan closed sessions grouped by participant.
CREATE INDEX IF NOT EXISTS idx_sessions_closed_by_participant
    ON attendance_sessions(participant_id, joined_at)
    WHERE left_at IS NOT NULL;

-- Reconciliation lists open sessions.
CREATE INDEX IF NOT EXISTS idx_sessions_open
    ON attendance_sessions(participant_id)
    WHERE left_at IS NULL;
`

const migration002Down = `
DROP INDEX IF EXISTS idx_sessions_closed_by_participant;
DROP INDEX IF EXISTS idx_sessions_open;
`
