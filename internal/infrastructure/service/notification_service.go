// Package service contains adapters between the application ports and the
// infrastructure clients.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/notification"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISCORD NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// DiscordNotifier implements notification.Notifier and
// notification.PresenceDisplay over the Discord REST client and gateway.
// Announcements go to the configured text channel in Korean, matching the
// community the bot serves.
type DiscordNotifier struct {
	client            *discord.Client
	gateway           *discord.Gateway
	announceChannelID string
	logger            *logger.Logger
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(
	client *discord.Client,
	gateway *discord.Gateway,
	announceChannelID string,
	log *logger.Logger,
) *DiscordNotifier {
	if log == nil {
		log = logger.Default()
	}
	return &DiscordNotifier{
		client:            client,
		gateway:           gateway,
		announceChannelID: announceChannelID,
		logger:            log.With(logger.Component("discord-notifier")),
	}
}

// CelebrateFirstAttendance announces a member's first attendance of the day.
func (n *DiscordNotifier) CelebrateFirstAttendance(ctx context.Context, participantID attendance.ParticipantID, at time.Time) error {
	msg := notification.RenderFirstAttendance(participantID, at)
	if _, err := n.client.SendText(ctx, n.announceChannelID, msg.Text); err != nil {
		return fmt.Errorf("failed to send celebration: %w", err)
	}
	return nil
}

// AnnounceWindowOpen announces the start of the study window.
func (n *DiscordNotifier) AnnounceWindowOpen(ctx context.Context, present []attendance.ParticipantID) error {
	msg := notification.RenderWindowOpen(len(present))
	if _, err := n.client.SendText(ctx, n.announceChannelID, msg.Text); err != nil {
		return fmt.Errorf("failed to announce window open: %w", err)
	}
	return nil
}

// AnnounceWindowClose announces the end of the study window.
func (n *DiscordNotifier) AnnounceWindowClose(ctx context.Context, closed []attendance.ParticipantID) error {
	msg := notification.RenderWindowClose(len(closed))
	if _, err := n.client.SendText(ctx, n.announceChannelID, msg.Text); err != nil {
		return fmt.Errorf("failed to announce window close: %w", err)
	}
	return nil
}

// UpdateHeadCount pushes the channel occupancy to the bot's presence status.
// Zero members switches the bot to idle with a waiting message.
func (n *DiscordNotifier) UpdateHeadCount(ctx context.Context, count int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	status := "online"
	if count == 0 {
		status = "idle"
	}

	err := n.gateway.UpdatePresence(status, discord.Activity{
		Name:  "모각코",
		Type:  discord.ActivityTypeCustom,
		State: notification.StatusText(count),
	})
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}
