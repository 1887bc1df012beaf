package http

import (
	"net/http"
	"strconv"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Mogakko Attendance API",
		"version":     "v1",
		"description": "Read-only REST API for the mogakko attendance ledger",
		"endpoints": map[string]string{
			"health":      "/health",
			"leaderboard": "/api/v1/leaderboard",
			"statistics":  "/api/v1/participants/{id}/statistics",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Limit: getQueryParamInt(r, "limit", 10),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get leaderboard", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStatistics handles GET /api/v1/participants/{id}/statistics
func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStatisticsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Statistics handler not configured")
		return
	}

	participantID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || participantID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Participant ID must be a positive integer")
		return
	}

	result, err := s.deps.GetStatisticsHandler.Handle(r.Context(), query.GetStatisticsQuery{
		ParticipantID: participantID,
	})
	if err != nil {
		s.logger.Error("failed to get statistics",
			logger.ParticipantID(participantID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get statistics")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
