package discordiface

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
	"github.com/mogakko-hub/mogakko-bot/internal/interface/discord/handler"
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

type sentMessage struct {
	channelID string
	text      string
	embed     *discord.Embed
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, channelID, content string) (*discord.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, text: content})
	return &discord.Message{}, nil
}

func (f *fakeSender) SendEmbed(_ context.Context, channelID string, embed discord.Embed) (*discord.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, embed: &embed})
	return &discord.Message{}, nil
}

func newTestRouter(t *testing.T, agg *fakeAggregator, config RouterConfig) (*Router, *fakeSender) {
	t.Helper()

	log := logger.Default().WithLevel(logger.LevelError)
	config.Logger = log

	sender := &fakeSender{}
	router := NewRouter(
		sender,
		handler.NewLeaderboardHandler(query.NewGetLeaderboardHandler(agg, nil, log), log),
		handler.NewStatisticsHandler(query.NewGetStatisticsHandler(agg, nil, log), log),
		config,
	)
	return router, sender
}

func userMessage(authorID, channelID, content string) discord.Message {
	return discord.Message{
		ChannelID: channelID,
		Author:    &discord.User{ID: authorID},
		Content:   content,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRouter_LeaderboardCommand(t *testing.T) {
	agg := &fakeAggregator{
		standings: []attendance.Standing{
			{Rank: 1, LeaderboardRecord: attendance.LeaderboardRecord{
				ParticipantID: 100, Days: 7, TotalDuration: 10 * time.Hour,
			}},
		},
	}
	router, sender := newTestRouter(t, agg, RouterConfig{})

	router.HandleMessage(userMessage("100", "chan-1", "!리더보드"))

	require.Len(t, sender.sent, 1)
	require.NotNil(t, sender.sent[0].embed)
	assert.Equal(t, "chan-1", sender.sent[0].channelID)
	assert.Contains(t, sender.sent[0].embed.Description, "<@100>")
}

func TestRouter_StatisticsCommands(t *testing.T) {
	agg := &fakeAggregator{
		standings: []attendance.Standing{
			{Rank: 2, LeaderboardRecord: attendance.LeaderboardRecord{
				ParticipantID: 100, Days: 3, TotalDuration: 4 * time.Hour,
			}},
		},
	}

	for _, command := range []string{"!출석부", "!기록"} {
		t.Run(command, func(t *testing.T) {
			router, sender := newTestRouter(t, agg, RouterConfig{})

			router.HandleMessage(userMessage("100", "chan-1", command))

			require.Len(t, sender.sent, 1)
			require.NotNil(t, sender.sent[0].embed)
			assert.Contains(t, sender.sent[0].embed.Title, "출석부")
		})
	}
}

func TestRouter_IgnoresPlainChatter(t *testing.T) {
	router, sender := newTestRouter(t, &fakeAggregator{}, RouterConfig{})

	router.HandleMessage(userMessage("100", "chan-1", "오늘 몇 시에 시작해요?"))
	router.HandleMessage(userMessage("100", "chan-1", "!없는명령어"))

	assert.Empty(t, sender.sent)
}

func TestRouter_ChannelFilter(t *testing.T) {
	router, sender := newTestRouter(t, &fakeAggregator{}, RouterConfig{CommandChannelID: "commands-only"})

	router.HandleMessage(userMessage("100", "somewhere-else", "!리더보드"))
	assert.Empty(t, sender.sent)

	router.HandleMessage(userMessage("100", "commands-only", "!리더보드"))
	assert.Len(t, sender.sent, 1)
}

func TestRouter_QueryFailureSendsErrorReply(t *testing.T) {
	agg := &fakeAggregator{err: errors.New("connection refused")}
	router, sender := newTestRouter(t, agg, RouterConfig{})

	router.HandleMessage(userMessage("100", "chan-1", "!리더보드"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, handler.ErrorReplyText, sender.sent[0].text)
	assert.Nil(t, sender.sent[0].embed)
}

func TestRouter_MalformedAuthorIDIsDropped(t *testing.T) {
	router, sender := newTestRouter(t, &fakeAggregator{}, RouterConfig{})

	router.HandleMessage(userMessage("not-a-snowflake", "chan-1", "!리더보드"))

	assert.Empty(t, sender.sent)
}

func TestRouter_CommandWithTrailingText(t *testing.T) {
	agg := &fakeAggregator{}
	router, sender := newTestRouter(t, agg, RouterConfig{})

	router.HandleMessage(userMessage("100", "chan-1", "!리더보드 보여줘"))

	require.Len(t, sender.sent, 1)
	require.NotNil(t, sender.sent[0].embed)
}
