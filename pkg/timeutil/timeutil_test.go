package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToSeoul(t *testing.T) {
	utc := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	seoul := ToSeoul(utc)

	assert.Equal(t, 15, seoul.Day(), "15:00 UTC crosses midnight into the next KST day")
	assert.Equal(t, 0, seoul.Hour())
	assert.True(t, utc.Equal(seoul), "conversion must not change the instant")
}

func TestStartOfDay(t *testing.T) {
	// 2026-03-14 23:30 UTC is 2026-03-15 08:30 KST.
	utc := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	start := StartOfDay(utc)

	assert.Equal(t, 2026, start.Year())
	assert.Equal(t, time.March, start.Month())
	assert.Equal(t, 15, start.Day())
	assert.Equal(t, 0, start.Hour())
}

func TestStartOfMonth(t *testing.T) {
	start := StartOfMonth(DateTime(2026, 2, 19, 20, 15, 0))
	assert.Equal(t, Date(2026, 2, 1), start)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 28, DaysInMonth(Date(2026, 2, 10)))
	assert.Equal(t, 29, DaysInMonth(Date(2028, 2, 10)))
	assert.Equal(t, 31, DaysInMonth(Date(2026, 1, 1)))
	assert.Equal(t, 30, DaysInMonth(Date(2026, 4, 30)))
}

func TestIsSameDay(t *testing.T) {
	// Same UTC day, different KST days.
	t1 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) // 19:00 KST Mar 14
	t2 := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC) // 01:00 KST Mar 15

	assert.False(t, IsSameDay(t1, t2))
	assert.True(t, IsSameDay(t1, DateTime(2026, 3, 14, 23, 59, 59)))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0분"},
		{"sub-minute truncates to zero", 59 * time.Second, "0분"},
		{"minutes only", 42 * time.Minute, "42분"},
		{"exact hour omits minutes", 2 * time.Hour, "2시간"},
		{"hours and minutes", 3*time.Hour + 5*time.Minute, "3시간 5분"},
		{"days hours minutes", 26*time.Hour + 90*time.Minute, "1일 3시간 30분"},
		{"exact day", 48 * time.Hour, "2일"},
		{"negative clamps to zero", -time.Hour, "0분"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.duration))
		})
	}
}

func TestFormatKorean(t *testing.T) {
	assert.Equal(t, "2026년 3월 5일", FormatKorean(Date(2026, 3, 5)))
}

func TestFormatKoreanMonthStr(t *testing.T) {
	assert.Equal(t, "2026년 3월", FormatKoreanMonthStr(Date(2026, 3, 5)))
	// A UTC instant late in the month must be labeled with the KST month.
	assert.Equal(t, "2026년 4월", FormatKoreanMonthStr(time.Date(2026, 3, 31, 16, 0, 0, 0, time.UTC)))
}

func TestParseDateSeoul(t *testing.T) {
	parsed, err := ParseDateSeoul("2026-09-01")
	assert.NoError(t, err)
	assert.Equal(t, Date(2026, 9, 1), parsed)

	_, err = ParseDateSeoul("not-a-date")
	assert.Error(t, err)
}

func TestWeekdayNameKo(t *testing.T) {
	assert.Equal(t, "일", WeekdayNameKo(time.Sunday))
	assert.Equal(t, "토", WeekdayNameKo(time.Saturday))
}
