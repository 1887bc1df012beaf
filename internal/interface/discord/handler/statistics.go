package handler

import (
	"context"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/interface/discord/presenter"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StatisticsHandler handles the !출석부 and !기록 commands. Both show the
// requester's standing and the current month's attendance calendar.
type StatisticsHandler struct {
	queryHandler *query.GetStatisticsHandler
	logger       *logger.Logger
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(queryHandler *query.GetStatisticsHandler, log *logger.Logger) *StatisticsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &StatisticsHandler{
		queryHandler: queryHandler,
		logger:       log.With(logger.Component("statistics-handler")),
	}
}

// Handle builds the personal statistics reply for the requester.
func (h *StatisticsHandler) Handle(ctx context.Context, requesterID int64) *Response {
	result, err := h.queryHandler.Handle(ctx, query.GetStatisticsQuery{
		ParticipantID: requesterID,
	})
	if err != nil {
		h.logger.Error("statistics query failed",
			logger.ParticipantID(requesterID),
			logger.Err(err),
		)
		return &Response{Text: ErrorReplyText, IsError: true}
	}

	embed := presenter.StatisticsEmbed(requesterID, result)
	return &Response{Embed: &embed}
}
