package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/mogakko-hub/mogakko-bot/internal/domain/attendance"
	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE RENDERING
// ══════════════════════════════════════════════════════════════════════════════

// Kind classifies an outbound announcement.
type Kind string

const (
	KindFirstAttendance Kind = "first_attendance"
	KindWindowOpen      Kind = "window_open"
	KindWindowClose     Kind = "window_close"
)

// Message is a rendered announcement, ready for delivery. The domain owns
// the wording so every delivery channel speaks the same Korean.
type Message struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// RenderFirstAttendance builds the first-attendance celebration.
// The <@id> form is a Discord mention; other channels may strip it.
func RenderFirstAttendance(participantID attendance.ParticipantID, at time.Time) Message {
	return Message{
		Kind: KindFirstAttendance,
		Text: fmt.Sprintf("🎉 <@%d>님, 오늘 첫 출석입니다! (%s)",
			participantID.Int64(),
			timeutil.FormatKorean(at),
		),
	}
}

// RenderWindowOpen builds the window opening announcement.
func RenderWindowOpen(presentCount int) Message {
	var sb strings.Builder
	sb.WriteString("🔥 모각코 시간이 시작되었습니다!")
	if presentCount > 0 {
		fmt.Fprintf(&sb, " 이미 %d명이 자리를 지키고 있어요.", presentCount)
	}
	return Message{Kind: KindWindowOpen, Text: sb.String()}
}

// RenderWindowClose builds the window closing announcement.
func RenderWindowClose(closedCount int) Message {
	var sb strings.Builder
	sb.WriteString("🌙 오늘의 모각코가 끝났습니다.")
	if closedCount > 0 {
		fmt.Fprintf(&sb, " %d명 모두 수고하셨습니다!", closedCount)
	}
	return Message{Kind: KindWindowClose, Text: sb.String()}
}

// StatusText renders the bot presence line for the given head count.
// Zero members means the channel is waiting for the first arrival.
func StatusText(count int) string {
	if count == 0 {
		return "모각코 준비중..."
	}
	return fmt.Sprintf("%d명과 모여서 각자 코딩 중...", count)
}
