// Package presence turns voice channel transitions into attendance ledger
// operations. It is the write side of the bot: a member entering the tracked
// channel during the study window opens a session, a member leaving closes
// it.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/notification"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// CacheInvalidator drops cached aggregates after the ledger changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// HeadCounter reports current occupancy of the tracked channel.
type HeadCounter interface {
	HeadCount() int
}

// Handler applies voice channel transitions to the attendance ledger.
type Handler struct {
	ledger      attendance.Ledger
	window      attendance.ActiveWindow
	notifier    notification.Notifier
	display     notification.PresenceDisplay
	headCounter HeadCounter
	invalidator CacheInvalidator
	logger      *logger.Logger
}

// Config contains the handler's collaborators. Ledger and Window are
// required; everything else is optional.
type Config struct {
	Ledger      attendance.Ledger
	Window      attendance.ActiveWindow
	Notifier    notification.Notifier
	Display     notification.PresenceDisplay
	HeadCounter HeadCounter
	Invalidator CacheInvalidator
	Logger      *logger.Logger
}

// NewHandler creates a new presence handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("presence: ledger is required")
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, fmt.Errorf("presence: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Handler{
		ledger:      cfg.Ledger,
		window:      cfg.Window,
		notifier:    cfg.Notifier,
		display:     cfg.Display,
		headCounter: cfg.HeadCounter,
		invalidator: cfg.Invalidator,
		logger:      log.With(logger.Component("presence")),
	}, nil
}

// HandleEnter processes a member entering the tracked channel.
// Entries outside the study window are ignored; the member can sit in the
// channel, but no session opens until the window does.
func (h *Handler) HandleEnter(ctx context.Context, participantID attendance.ParticipantID, at time.Time) error {
	defer h.refreshDisplay(ctx)

	if !h.window.Contains(at) {
		h.logger.Debug("entry outside study window ignored",
			logger.ParticipantID(participantID.Int64()),
		)
		return nil
	}

	result, err := h.ledger.Open(ctx, participantID, at)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	if result.AlreadyOpen {
		h.logger.Debug("session already open",
			logger.ParticipantID(participantID.Int64()),
		)
		return nil
	}

	h.logger.Info("session opened",
		logger.ParticipantID(participantID.Int64()),
		logger.Bool("first_today", result.FirstToday),
	)

	if result.FirstToday && h.notifier != nil {
		if err := h.notifier.CelebrateFirstAttendance(ctx, participantID, at); err != nil {
			h.logger.Warn("failed to send first attendance celebration",
				logger.ParticipantID(participantID.Int64()),
				logger.Err(err),
			)
		}
	}
	return nil
}

// HandleLeave processes a member leaving the tracked channel.
// Always attempts the close, because the boundary sweep that normally seals
// sessions at closing time may not have run. A leave outside the window is
// clamped to the closing boundary of the day the session belongs to, so a
// member who lingers past closing time is not credited for the overtime.
func (h *Handler) HandleLeave(ctx context.Context, participantID attendance.ParticipantID, at time.Time) error {
	defer h.refreshDisplay(ctx)

	switch {
	case at.After(h.window.CloseAt(at)):
		// Lingered past closing time on the same day.
		at = h.window.CloseAt(at)
	case at.Before(h.window.OpenAt(at)):
		// Left between midnight and the next opening; the open session can
		// only belong to the previous day's window.
		at = h.window.CloseAt(at.AddDate(0, 0, -1))
	}

	result, err := h.ledger.Close(ctx, participantID, at)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	if !result.HadOpenSession {
		h.logger.Debug("leave without open session ignored",
			logger.ParticipantID(participantID.Int64()),
		)
		return nil
	}

	h.logger.Info("session closed",
		logger.ParticipantID(participantID.Int64()),
		logger.Duration("session_duration", result.Duration),
		logger.Bool("first_completed_today", result.FirstToday),
	)

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx); err != nil {
			h.logger.Warn("failed to invalidate aggregate cache", logger.Err(err))
		}
	}
	return nil
}

// refreshDisplay pushes the current head count to the bot's presence status.
func (h *Handler) refreshDisplay(ctx context.Context) {
	if h.display == nil || h.headCounter == nil {
		return
	}
	if err := h.display.UpdateHeadCount(ctx, h.headCounter.HeadCount()); err != nil {
		h.logger.Warn("failed to update presence display", logger.Err(err))
	}
}
