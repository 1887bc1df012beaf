// Package presenter renders query results into Discord embeds.
// All user-facing text is Korean, matching the community the bot serves.
package presenter

import (
	"fmt"
	"strings"

	"github.com/mogakko-hub/mogakko-bot/internal/application/query"
	"github.com/mogakko-hub/mogakko-bot/internal/infrastructure/external/discord"
)

// Embed colors.
const (
	ColorGold  = 0xF1C40F // leaderboard
	ColorGreen = 0x2ECC71 // personal statistics
	ColorGray  = 0x95A5A6 // empty states
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD EMBED
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEmbed renders the leaderboard.
func LeaderboardEmbed(result *query.GetLeaderboardResult) discord.Embed {
	if len(result.Entries) == 0 {
		return discord.Embed{
			Title:       "🏆 모각코 리더보드",
			Description: "아직 출석 기록이 없습니다. 오늘 저녁에 만나요!",
			Color:       ColorGray,
		}
	}

	var sb strings.Builder
	for _, entry := range result.Entries {
		fmt.Fprintf(&sb, "%s <@%d>\n",
			query.FormatRankEmoji(entry.Rank),
			entry.ParticipantID,
		)
		fmt.Fprintf(&sb, "   📅 %d일 출석 • ⏱️ %s\n", entry.Days, entry.TotalFormatted)
	}

	return discord.Embed{
		Title:       "🏆 모각코 리더보드",
		Description: sb.String(),
		Color:       ColorGold,
		Footer: &discord.EmbedFooter{
			Text: "출석 일수 기준, 같으면 누적 시간 순",
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS EMBED
// ══════════════════════════════════════════════════════════════════════════════

// Weekday header of the calendar, Sunday first.
const calendarHeader = "일 월 화 수 목 금 토"

// Day cell glyphs. Same display width keeps the grid aligned in Discord's
// monospace block.
const (
	cellAttended = "✅"
	cellAbsent   = "➖"
	cellFuture   = "⬜"
	cellOutside  = "　" // full-width space
)

// StatisticsEmbed renders one participant's standing and month calendar.
func StatisticsEmbed(participantID int64, result *query.GetStatisticsResult) discord.Embed {
	embed := discord.Embed{
		Title: fmt.Sprintf("📋 %s 출석부", result.Calendar.MonthLabel),
		Color: ColorGreen,
	}

	if result.Standing != nil {
		embed.Fields = append(embed.Fields,
			discord.EmbedField{
				Name:   "순위",
				Value:  query.FormatRankEmoji(result.Standing.Rank),
				Inline: true,
			},
			discord.EmbedField{
				Name:   "출석 일수",
				Value:  fmt.Sprintf("%d일", result.Standing.Days),
				Inline: true,
			},
			discord.EmbedField{
				Name:   "누적 시간",
				Value:  result.Standing.TotalFormatted,
				Inline: true,
			},
		)
	} else {
		embed.Description = fmt.Sprintf("<@%d>님은 아직 완료된 출석이 없습니다.", participantID)
		embed.Color = ColorGray
	}

	embed.Fields = append(embed.Fields, discord.EmbedField{
		Name:  fmt.Sprintf("달력 (%d일 출석)", result.Calendar.AttendedDays),
		Value: renderCalendar(result.Calendar),
	})

	return embed
}

// renderCalendar draws the month grid in a code block.
func renderCalendar(cal query.CalendarDTO) string {
	var sb strings.Builder
	sb.WriteString("```\n")
	sb.WriteString(calendarHeader)
	sb.WriteString("\n")

	for _, week := range cal.Weeks {
		for i, mark := range week {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(cellGlyph(mark))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("```")
	return sb.String()
}

// cellGlyph maps a wire label to its display glyph.
func cellGlyph(mark string) string {
	switch mark {
	case "attended":
		return cellAttended
	case "absent":
		return cellAbsent
	case "future":
		return cellFuture
	default:
		return cellOutside
	}
}
