// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/shared"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// AggregateCache is the cache-aside store for leaderboard aggregates.
// Implemented by the Redis layer; nil means every query hits PostgreSQL.
type AggregateCache interface {
	GetLeaderboard(ctx context.Context, limit int) ([]attendance.Standing, error)
	SetLeaderboard(ctx context.Context, limit int, standings []attendance.Standing) error
	GetStanding(ctx context.Context, participantID attendance.ParticipantID) (*attendance.Standing, error)
	SetStanding(ctx context.Context, standing attendance.Standing) error
}

// GetLeaderboardQuery contains the parameters of a leaderboard request.
type GetLeaderboardQuery struct {
	// Limit is the number of entries to return (default 10, maximum 100).
	Limit int
}

// Validate checks the query parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// StandingDTO is one leaderboard entry in presentation form.
type StandingDTO struct {
	// Rank is the competition rank (ties share a rank, the next rank skips).
	Rank int `json:"rank"`

	// ParticipantID is the Discord user ID.
	ParticipantID int64 `json:"participant_id"`

	// Days is the number of distinct attendance days.
	Days int `json:"days"`

	// TotalSeconds is the summed duration of all closed sessions.
	TotalSeconds int64 `json:"total_seconds"`

	// TotalFormatted is the duration formatted for display, e.g. "3시간 20분".
	TotalFormatted string `json:"total_formatted"`
}

// GetLeaderboardResult contains the leaderboard response.
type GetLeaderboardResult struct {
	// Entries are the ranked standings, best first.
	Entries []StandingDTO `json:"entries"`

	// GeneratedAt is when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache reports whether the result was served from cache.
	FromCache bool `json:"from_cache"`
}

// GetLeaderboardHandler handles leaderboard requests.
type GetLeaderboardHandler struct {
	aggregator attendance.Aggregator
	cache      AggregateCache
	logger     *logger.Logger
}

// NewGetLeaderboardHandler creates a new leaderboard query handler.
// The cache is optional.
func NewGetLeaderboardHandler(
	aggregator attendance.Aggregator,
	cache AggregateCache,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardHandler{
		aggregator: aggregator,
		cache:      cache,
		logger:     log.With(logger.Component("get-leaderboard")),
	}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	if standings, ok := h.tryGetFromCache(ctx, query.Limit); ok {
		return h.buildResult(standings, true), nil
	}

	standings, err := h.aggregator.Leaderboard(ctx, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrExternalService, "failed to load leaderboard", err)
	}

	if h.cache != nil {
		if err := h.cache.SetLeaderboard(ctx, query.Limit, standings); err != nil {
			h.logger.Warn("failed to cache leaderboard", logger.Err(err))
		}
	}

	return h.buildResult(standings, false), nil
}

// tryGetFromCache attempts a cache read. Any cache failure is a miss.
func (h *GetLeaderboardHandler) tryGetFromCache(ctx context.Context, limit int) ([]attendance.Standing, bool) {
	if h.cache == nil {
		return nil, false
	}
	standings, err := h.cache.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, false
	}
	return standings, true
}

// buildResult converts domain standings to the response form.
func (h *GetLeaderboardHandler) buildResult(standings []attendance.Standing, fromCache bool) *GetLeaderboardResult {
	entries := make([]StandingDTO, len(standings))
	for i, s := range standings {
		entries[i] = toStandingDTO(s)
	}
	return &GetLeaderboardResult{
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
		FromCache:   fromCache,
	}
}

// toStandingDTO converts a domain standing to its DTO.
func toStandingDTO(s attendance.Standing) StandingDTO {
	return StandingDTO{
		Rank:           s.Rank,
		ParticipantID:  s.ParticipantID.Int64(),
		Days:           s.Days,
		TotalSeconds:   int64(s.TotalDuration / time.Second),
		TotalFormatted: timeutil.FormatDuration(s.TotalDuration),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// FormatRankEmoji returns the display emoji for a leaderboard position.
func FormatRankEmoji(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d위", rank)
	}
}
