package discord

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// ChannelRoster implements attendance.Roster over the gateway's live voice
// state cache. Outside the active window the roster is empty regardless of
// who occupies the channel, so reconciliation never opens sessions off-hours.
type ChannelRoster struct {
	gateway          *Gateway
	trackedChannelID string
	window           attendance.ActiveWindow
	logger           *logger.Logger
	now              func() time.Time
}

// NewChannelRoster creates a roster for the tracked voice channel.
func NewChannelRoster(gateway *Gateway, trackedChannelID string, window attendance.ActiveWindow, log *logger.Logger) *ChannelRoster {
	if log == nil {
		log = logger.Default()
	}
	return &ChannelRoster{
		gateway:          gateway,
		trackedChannelID: trackedChannelID,
		window:           window,
		logger:           log.With(logger.Component("channel-roster")),
		now:              timeutil.Now,
	}
}

// Present returns the participants currently in the tracked channel, sorted
// by ID. Empty outside the active window. When the gateway is disconnected
// or has not received the guild voice snapshot yet, Present fails instead of
// reporting an empty channel: an empty answer would make the reconciliation
// sweep close every open session while members are still sitting in voice.
func (r *ChannelRoster) Present(ctx context.Context) ([]attendance.ParticipantID, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Outside the window the answer is policy, not cache state, so it does
	// not depend on the gateway being up.
	if !r.window.Contains(r.now()) {
		return nil, nil
	}

	if !r.gateway.Connected() || !r.gateway.Seeded() {
		return nil, fmt.Errorf("live membership unavailable: %w", ErrNotConnected)
	}

	members := r.gateway.MembersInChannel(r.trackedChannelID)
	ids := make([]attendance.ParticipantID, 0, len(members))
	for _, userID := range members {
		id, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			// Snowflakes are always numeric; a bad one is a protocol glitch,
			// not a reason to fail the whole roster.
			r.logger.Warn("skipping malformed user ID", logger.String("user_id", userID))
			continue
		}
		ids = append(ids, attendance.ParticipantID(id))
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HeadCount returns how many members sit in the tracked channel right now,
// ignoring the window. The presence status shows occupancy even off-hours.
func (r *ChannelRoster) HeadCount() int {
	return len(r.gateway.MembersInChannel(r.trackedChannelID))
}
