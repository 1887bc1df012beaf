package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeAggregator struct {
	standings []attendance.Standing
	err       error
}

func (f *fakeAggregator) Leaderboard(_ context.Context, limit int) ([]attendance.Standing, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.standings) {
		return f.standings[:limit], nil
	}
	return f.standings, nil
}

func (f *fakeAggregator) ParticipantStanding(_ context.Context, id attendance.ParticipantID) (*attendance.Standing, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.standings {
		if s.ParticipantID == id {
			standing := s
			return &standing, nil
		}
	}
	return nil, nil
}

func (f *fakeAggregator) AttendedDates(_ context.Context, _ attendance.ParticipantID, _ time.Time) ([]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func newTestServer(t *testing.T, agg *fakeAggregator) *Server {
	t.Helper()

	log := logger.Default().WithLevel(logger.LevelError)
	config := DefaultConfig()
	config.RateLimitPerMinute = 0

	return NewServer(config, Dependencies{
		GetLeaderboardHandler: query.NewGetLeaderboardHandler(agg, nil, log),
		GetStatisticsHandler:  query.NewGetStatisticsHandler(agg, nil, log),
		Logger:                log,
	})
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.buildMiddlewareChain(s.router).ServeHTTP(rec, req)
	return rec
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHandleHealth_DefaultResponse(t *testing.T) {
	s := newTestServer(t, &fakeAggregator{})

	rec := doRequest(s, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleLive(t *testing.T) {
	s := newTestServer(t, &fakeAggregator{})

	rec := doRequest(s, http.MethodGet, "/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestHandleGetLeaderboard(t *testing.T) {
	agg := &fakeAggregator{
		standings: []attendance.Standing{
			{Rank: 1, LeaderboardRecord: attendance.LeaderboardRecord{
				ParticipantID: 100, Days: 7, TotalDuration: 10 * time.Hour,
			}},
		},
	}
	s := newTestServer(t, agg)

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard")

	require.Equal(t, http.StatusOK, rec.Code)

	var response JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)

	data, err := json.Marshal(response.Data)
	require.NoError(t, err)

	var result query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Entries, 1)
	assert.Equal(t, int64(100), result.Entries[0].ParticipantID)
	assert.Equal(t, 7, result.Entries[0].Days)
}

func TestHandleGetLeaderboard_QueryFailure(t *testing.T) {
	s := newTestServer(t, &fakeAggregator{err: errors.New("connection refused")})

	rec := doRequest(s, http.MethodGet, "/api/v1/leaderboard")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestHandleGetStatistics(t *testing.T) {
	agg := &fakeAggregator{
		standings: []attendance.Standing{
			{Rank: 2, LeaderboardRecord: attendance.LeaderboardRecord{
				ParticipantID: 100, Days: 3, TotalDuration: 4 * time.Hour,
			}},
		},
	}
	s := newTestServer(t, agg)

	rec := doRequest(s, http.MethodGet, "/api/v1/participants/100/statistics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rank":2`)
}

func TestHandleGetStatistics_InvalidID(t *testing.T) {
	s := newTestServer(t, &fakeAggregator{})

	rec := doRequest(s, http.MethodGet, "/api/v1/participants/abc/statistics")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestRateLimitMiddleware(t *testing.T) {
	log := logger.Default().WithLevel(logger.LevelError)
	config := DefaultConfig()
	config.RateLimitPerMinute = 2
	s := NewServer(config, Dependencies{Logger: log})

	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/live").Code)
	assert.Equal(t, http.StatusOK, doRequest(s, http.MethodGet, "/live").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(s, http.MethodGet, "/live").Code)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, &fakeAggregator{})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.buildMiddlewareChain(s.router).ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
