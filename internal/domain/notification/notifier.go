// Package notification defines the outbound notification ports of the
// mogakko bot. Implementations live in the infrastructure layer.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
)

// Delivery errors.
var (
	ErrDeliveryFailed = errors.New("notification: delivery failed")
	ErrChannelClosed  = errors.New("notification: channel is closed")
)

// Notifier delivers attendance announcements to the community channel.
// Delivery failures never affect the ledger; callers log and move on.
type Notifier interface {
	// CelebrateFirstAttendance announces a participant's first attendance
	// of the day.
	CelebrateFirstAttendance(ctx context.Context, participantID attendance.ParticipantID, at time.Time) error

	// AnnounceWindowOpen announces the start of the mogakko window with the
	// participants already present.
	AnnounceWindowOpen(ctx context.Context, present []attendance.ParticipantID) error

	// AnnounceWindowClose announces the end of the window with the
	// participants whose sessions were closed.
	AnnounceWindowClose(ctx context.Context, closed []attendance.ParticipantID) error
}

// PresenceDisplay reflects the live head-count in the bot's visible status.
type PresenceDisplay interface {
	// UpdateHeadCount sets the bot status for the given number of present
	// participants. Zero switches to the idle text.
	UpdateHeadCount(ctx context.Context, count int) error
}
