// Package handler contains the chat command handlers. Each handler wraps
// one application query, translates the request, and renders the reply
// through the presenter. Failures become friendly Korean error replies
// instead of propagating to the router.
package handler

import (
	"context"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
	"github.com/mogakko-hub/mogakko-bot/internal/interface/discord/presenter"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLeaderboardLimit is how many standings the !리더보드 reply shows.
const DefaultLeaderboardLimit = 10

// ErrorReplyText is the generic failure reply. Internals stay in the logs.
const ErrorReplyText = "⚠️ 잠시 문제가 생겼어요. 조금 뒤에 다시 시도해 주세요."

// Response is a rendered command reply, ready for the router to deliver.
type Response struct {
	Embed   *discord.Embed
	Text    string
	IsError bool
}

// LeaderboardHandler handles the !리더보드 command.
type LeaderboardHandler struct {
	queryHandler *query.GetLeaderboardHandler
	logger       *logger.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(queryHandler *query.GetLeaderboardHandler, log *logger.Logger) *LeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &LeaderboardHandler{
		queryHandler: queryHandler,
		logger:       log.With(logger.Component("leaderboard-handler")),
	}
}

// Handle builds the leaderboard reply.
func (h *LeaderboardHandler) Handle(ctx context.Context, requesterID int64) *Response {
	result, err := h.queryHandler.Handle(ctx, query.GetLeaderboardQuery{
		Limit: DefaultLeaderboardLimit,
	})
	if err != nil {
		h.logger.Error("leaderboard query failed",
			logger.ParticipantID(requesterID),
			logger.Err(err),
		)
		return &Response{Text: ErrorReplyText, IsError: true}
	}

	embed := presenter.LeaderboardEmbed(result)
	return &Response{Embed: &embed}
}
