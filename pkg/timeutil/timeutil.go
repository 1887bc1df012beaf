// Package timeutil provides timezone utilities for the Seoul timezone (UTC+9).
// All mogakko scheduling, attendance attribution and user-facing formatting
// happens in KST, regardless of where the bot itself is hosted.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// SeoulTZ is the Seoul timezone (UTC+9, no DST).
// South Korea has not observed DST since 1988, so this is constant year-round.
var SeoulTZ = time.FixedZone("Asia/Seoul", 9*60*60)

// Now returns the current time in Seoul timezone.
func Now() time.Time {
	return time.Now().In(SeoulTZ)
}

// ToSeoul converts a time to Seoul timezone.
func ToSeoul(t time.Time) time.Time {
	return t.In(SeoulTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Seoul timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SeoulTZ)
}

// DateTime creates a time in Seoul timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, SeoulTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Seoul timezone.
func StartOfDay(t time.Time) time.Time {
	seoul := ToSeoul(t)
	return time.Date(seoul.Year(), seoul.Month(), seoul.Day(), 0, 0, 0, 0, SeoulTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in Seoul timezone.
func EndOfDay(t time.Time) time.Time {
	seoul := ToSeoul(t)
	return time.Date(seoul.Year(), seoul.Month(), seoul.Day(), 23, 59, 59, 999999999, SeoulTZ)
}

// StartOfMonth returns the start of the month in Seoul timezone.
func StartOfMonth(t time.Time) time.Time {
	seoul := ToSeoul(t)
	return time.Date(seoul.Year(), seoul.Month(), 1, 0, 0, 0, 0, SeoulTZ)
}

// EndOfMonth returns the end of the month in Seoul timezone.
func EndOfMonth(t time.Time) time.Time {
	start := StartOfMonth(t)
	return EndOfDay(start.AddDate(0, 1, -1))
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	start := StartOfMonth(t)
	return start.AddDate(0, 1, -1).Day()
}

// IsToday checks if the given time is today in Seoul timezone.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsSameDay checks if two times are on the same day in Seoul timezone.
func IsSameDay(t1, t2 time.Time) bool {
	s1, s2 := ToSeoul(t1), ToSeoul(t2)
	return s1.Year() == s2.Year() && s1.YearDay() == s2.YearDay()
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	s1 := StartOfDay(t1)
	s2 := StartOfDay(t2)
	duration := s2.Sub(s1)
	days := int(duration.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
	// FormatKoreanDate is the Korean date format (YYYY년 M월 D일).
	FormatKoreanDate = "2006년 1월 2일"
	// FormatKoreanMonth is the Korean year-month format.
	FormatKoreanMonth = "2006년 1월"
)

// FormatSeoul formats a time in Seoul timezone with the given layout.
func FormatSeoul(t time.Time, layout string) string {
	return ToSeoul(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in Seoul timezone.
func FormatDateStr(t time.Time) string {
	return FormatSeoul(t, FormatDate)
}

// FormatTimeStr formats a time as a time string (HH:MM) in Seoul timezone.
func FormatTimeStr(t time.Time) string {
	return FormatSeoul(t, FormatTime)
}

// FormatKorean formats a time as a Korean date string (YYYY년 M월 D일).
func FormatKorean(t time.Time) string {
	return FormatSeoul(t, FormatKoreanDate)
}

// FormatKoreanMonthStr formats a time as a Korean year-month string (YYYY년 M월).
func FormatKoreanMonthStr(t time.Time) string {
	return FormatSeoul(t, FormatKoreanMonth)
}

// FormatDuration renders a duration in Korean units (일/시간/분).
// Seconds are truncated; a duration shorter than a minute renders as "0분".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMinutes := int64(d / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes % (24 * 60)) / 60
	minutes := totalMinutes % 60

	out := ""
	if days > 0 {
		out += fmt.Sprintf("%d일 ", days)
	}
	if hours > 0 {
		out += fmt.Sprintf("%d시간 ", hours)
	}
	if minutes > 0 {
		out += fmt.Sprintf("%d분", minutes)
	}
	if out == "" {
		return "0분"
	}
	return trimTrailingSpace(out)
}

func trimTrailingSpace(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

// ParseSeoul parses a time string in Seoul timezone.
func ParseSeoul(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, SeoulTZ)
}

// ParseDateSeoul parses a date string (YYYY-MM-DD) in Seoul timezone.
func ParseDateSeoul(value string) (time.Time, error) {
	return ParseSeoul(FormatDate, value)
}

// WeekdayNameKo returns the Korean single-character name for a weekday.
func WeekdayNameKo(d time.Weekday) string {
	switch d {
	case time.Sunday:
		return "일"
	case time.Monday:
		return "월"
	case time.Tuesday:
		return "화"
	case time.Wednesday:
		return "수"
	case time.Thursday:
		return "목"
	case time.Friday:
		return "금"
	case time.Saturday:
		return "토"
	default:
		return ""
	}
}
