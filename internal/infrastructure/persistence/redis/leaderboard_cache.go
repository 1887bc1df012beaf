// Package redis implements Redis caching for the mogakko bot.
package redis

import (
	"context"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED AGGREGATE STRUCTURES
// ══════════════════════════════════════════════════════════════════════════════

// CachedStanding is the JSON shape of one leaderboard entry.
type CachedStanding struct {
	Rank          int   `json:"rank"`
	ParticipantID int64 `json:"participant_id"`
	Days          int   `json:"days"`
	TotalSeconds  int64 `json:"total_seconds"`
}

// toCached converts domain standings to their cache representation.
func toCached(standings []attendance.Standing) []CachedStanding {
	out := make([]CachedStanding, 0, len(standings))
	for _, s := range standings {
		out = append(out, CachedStanding{
			Rank:          s.Rank,
			ParticipantID: s.ParticipantID.Int64(),
			Days:          s.Days,
			TotalSeconds:  int64(s.TotalDuration / time.Second),
		})
	}
	return out
}

// fromCached converts cached entries back to domain standings.
func fromCached(entries []CachedStanding) []attendance.Standing {
	out := make([]attendance.Standing, 0, len(entries))
	for _, e := range entries {
		out = append(out, attendance.Standing{
			Rank: e.Rank,
			LeaderboardRecord: attendance.LeaderboardRecord{
				ParticipantID: attendance.ParticipantID(e.ParticipantID),
				Days:          e.Days,
				TotalDuration: time.Duration(e.TotalSeconds) * time.Second,
			},
		})
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache is the cache-aside store for attendance aggregates.
// Every session close invalidates the whole aggregate keyspace, so stale
// reads last at most one TTL after a missed invalidation.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// GetLeaderboard returns the cached leaderboard for the given limit.
// Returns ErrCacheMiss when absent.
func (lc *LeaderboardCache) GetLeaderboard(ctx context.Context, limit int) ([]attendance.Standing, error) {
	var entries []CachedStanding
	if err := lc.cache.Get(ctx, LeaderboardKey(limit), &entries); err != nil {
		return nil, err
	}
	return fromCached(entries), nil
}

// SetLeaderboard stores the leaderboard for the given limit.
func (lc *LeaderboardCache) SetLeaderboard(ctx context.Context, limit int, standings []attendance.Standing) error {
	return lc.cache.Set(ctx, LeaderboardKey(limit), toCached(standings), TTLLeaderboard)
}

// GetStanding returns a cached personal standing.
// Returns ErrCacheMiss when absent.
func (lc *LeaderboardCache) GetStanding(ctx context.Context, participantID attendance.ParticipantID) (*attendance.Standing, error) {
	var entry CachedStanding
	if err := lc.cache.Get(ctx, StatisticsKey(participantID.Int64()), &entry); err != nil {
		return nil, err
	}
	standings := fromCached([]CachedStanding{entry})
	return &standings[0], nil
}

// SetStanding stores a personal standing.
func (lc *LeaderboardCache) SetStanding(ctx context.Context, standing attendance.Standing) error {
	cached := toCached([]attendance.Standing{standing})
	return lc.cache.Set(ctx, StatisticsKey(standing.ParticipantID.Int64()), cached[0], TTLStatistics)
}

// Invalidate drops every cached aggregate. Called after each session close.
func (lc *LeaderboardCache) Invalidate(ctx context.Context) error {
	for _, pattern := range []string{
		PrefixLeaderboard + "*",
		PrefixStatistics + "*",
		PrefixCalendar + "*",
	} {
		if err := lc.cache.DeleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}
