package query

import (
	"context"
	"errors"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/shared"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATISTICS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStatisticsQuery contains the parameters of a personal statistics request.
type GetStatisticsQuery struct {
	// ParticipantID is the Discord user ID.
	ParticipantID int64

	// Month selects the calendar month. Zero means the current month.
	Month time.Time
}

// Validate checks the query parameters.
func (q *GetStatisticsQuery) Validate() error {
	if q.ParticipantID <= 0 {
		return errors.New("participant ID must be positive")
	}
	if q.Month.IsZero() {
		q.Month = timeutil.Now()
	}
	return nil
}

// CalendarDTO is the month calendar in presentation form.
type CalendarDTO struct {
	// MonthLabel is the month formatted for display, e.g. "2026년 3월".
	MonthLabel string `json:"month_label"`

	// Weeks are Sunday-first rows of day marks:
	// "" outside the month, "attended", "absent", "future".
	Weeks [][]string `json:"weeks"`

	// AttendedDays is the number of attended days in the month.
	AttendedDays int `json:"attended_days"`
}

// GetStatisticsResult contains the personal statistics response.
type GetStatisticsResult struct {
	// Standing is nil when the participant has no closed sessions yet.
	Standing *StandingDTO `json:"standing,omitempty"`

	// Calendar is the attendance calendar of the requested month.
	Calendar CalendarDTO `json:"calendar"`

	// GeneratedAt is when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStatisticsHandler handles personal statistics requests.
type GetStatisticsHandler struct {
	aggregator attendance.Aggregator
	cache      AggregateCache
	logger     *logger.Logger
}

// NewGetStatisticsHandler creates a new statistics query handler.
// The cache is optional and covers the standing only; calendars are cheap
// enough to read from PostgreSQL every time.
func NewGetStatisticsHandler(
	aggregator attendance.Aggregator,
	cache AggregateCache,
	log *logger.Logger,
) *GetStatisticsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetStatisticsHandler{
		aggregator: aggregator,
		cache:      cache,
		logger:     log.With(logger.Component("get-statistics")),
	}
}

// Handle executes the statistics query.
func (h *GetStatisticsHandler) Handle(ctx context.Context, query GetStatisticsQuery) (*GetStatisticsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrValidation, err.Error(), err)
	}

	participantID := attendance.ParticipantID(query.ParticipantID)

	standing, err := h.loadStanding(ctx, participantID)
	if err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrExternalService, "failed to load standing", err)
	}

	attended, err := h.aggregator.AttendedDates(ctx, participantID, query.Month)
	if err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrExternalService, "failed to load attended dates", err)
	}

	grid := attendance.BuildCalendarGrid(query.Month, attended, timeutil.Now())

	result := &GetStatisticsResult{
		Calendar:    toCalendarDTO(grid),
		GeneratedAt: time.Now().UTC(),
	}
	if standing != nil {
		dto := toStandingDTO(*standing)
		result.Standing = &dto
	}
	return result, nil
}

// loadStanding reads the standing cache-aside. A nil standing with nil error
// means the participant has no closed sessions.
func (h *GetStatisticsHandler) loadStanding(ctx context.Context, participantID attendance.ParticipantID) (*attendance.Standing, error) {
	if h.cache != nil {
		if standing, err := h.cache.GetStanding(ctx, participantID); err == nil {
			return standing, nil
		}
	}

	standing, err := h.aggregator.ParticipantStanding(ctx, participantID)
	if err != nil {
		return nil, err
	}

	if standing != nil && h.cache != nil {
		if err := h.cache.SetStanding(ctx, *standing); err != nil {
			h.logger.Warn("failed to cache standing", logger.Err(err))
		}
	}
	return standing, nil
}

// toCalendarDTO converts a domain calendar grid to its DTO.
func toCalendarDTO(grid attendance.CalendarGrid) CalendarDTO {
	weeks := grid.Weeks()
	rows := make([][]string, len(weeks))
	for i, week := range weeks {
		row := make([]string, len(week))
		for j, mark := range week {
			row[j] = calendarMarkLabel(mark)
		}
		rows[i] = row
	}

	return CalendarDTO{
		MonthLabel:   timeutil.FormatKoreanMonthStr(grid.Month),
		Weeks:        rows,
		AttendedDays: grid.AttendedCount(),
	}
}

// calendarMarkLabel maps a day mark to its wire label.
func calendarMarkLabel(mark attendance.DayMark) string {
	switch mark {
	case attendance.DayAttended:
		return "attended"
	case attendance.DayAbsent:
		return "absent"
	case attendance.DayFuture:
		return "future"
	default:
		return ""
	}
}
