// Package discordiface routes incoming chat commands to their handlers.
//
// The router sits behind the gateway's message callback. It recognizes the
// "!" command prefix, dispatches to the matching handler, and delivers the
// rendered reply back through the REST client. Unknown commands and plain
// chatter are ignored.
package discordiface

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
	"github.com/mogakko-hub/mogakko-bot/internal/interface/discord/handler"
	"github.com/mogakko-hub/mogakko-bot/pkg/logger"
)

// Commands the router recognizes.
const (
	CommandLeaderboard = "!리더보드"
	CommandCalendar    = "!출석부"
	CommandRecord      = "!기록"
)

// replyTimeout bounds one command round trip, query included.
const replyTimeout = 10 * time.Second

// Sender delivers a reply to a channel. *discord.Client satisfies it.
type Sender interface {
	SendText(ctx context.Context, channelID, content string) (*discord.Message, error)
	SendEmbed(ctx context.Context, channelID string, embed discord.Embed) (*discord.Message, error)
}

// RouterConfig configures the command router.
type RouterConfig struct {
	// CommandChannelID restricts commands to one text channel.
	// Empty means commands are accepted anywhere the bot can read.
	CommandChannelID string
	Logger           *logger.Logger
}

// Router dispatches chat commands.
type Router struct {
	sender      Sender
	leaderboard *handler.LeaderboardHandler
	statistics  *handler.StatisticsHandler
	channelID   string
	logger      *logger.Logger
}

// NewRouter creates a new Router.
func NewRouter(
	sender Sender,
	leaderboard *handler.LeaderboardHandler,
	statistics *handler.StatisticsHandler,
	config RouterConfig,
) *Router {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Router{
		sender:      sender,
		leaderboard: leaderboard,
		statistics:  statistics,
		channelID:   config.CommandChannelID,
		logger:      log.With(logger.Component("command-router")),
	}
}

// HandleMessage is the gateway message callback. Bot authors are already
// filtered out by the gateway.
func (r *Router) HandleMessage(msg discord.Message) {
	if !strings.HasPrefix(msg.Content, "!") {
		return
	}
	if r.channelID != "" && msg.ChannelID != r.channelID {
		return
	}
	if msg.Author == nil {
		return
	}

	requesterID, err := strconv.ParseInt(msg.Author.ID, 10, 64)
	if err != nil {
		r.logger.Warn("malformed author id",
			logger.String("author_id", msg.Author.ID),
		)
		return
	}

	command := strings.Fields(msg.Content)[0]

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	var response *handler.Response
	switch command {
	case CommandLeaderboard:
		response = r.leaderboard.Handle(ctx, requesterID)
	case CommandCalendar, CommandRecord:
		response = r.statistics.Handle(ctx, requesterID)
	default:
		return
	}

	r.logger.Debug("command handled",
		logger.String("command", command),
		logger.ParticipantID(requesterID),
		logger.Bool("is_error", response.IsError),
	)

	r.deliver(ctx, msg.ChannelID, response)
}

// deliver sends a rendered response, preferring the embed form.
func (r *Router) deliver(ctx context.Context, channelID string, response *handler.Response) {
	var err error
	switch {
	case response.Embed != nil:
		_, err = r.sender.SendEmbed(ctx, channelID, *response.Embed)
	case response.Text != "":
		_, err = r.sender.SendText(ctx, channelID, response.Text)
	default:
		return
	}
	if err != nil {
		r.logger.Error("reply delivery failed",
			logger.String("channel_id", channelID),
			logger.Err(err),
		)
	}
}
