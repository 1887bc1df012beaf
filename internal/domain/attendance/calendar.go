package attendance

import (
	"time"

	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// DayMark classifies one cell of the attendance calendar.
type DayMark int

const (
	// DayOutsideMonth pads the grid before the 1st and after the last day.
	DayOutsideMonth DayMark = iota
	// DayFuture is a day of the month that has not happened yet.
	DayFuture
	// DayAttended is a past or current day with at least one closed session.
	DayAttended
	// DayAbsent is a past or current day without attendance.
	DayAbsent
)

// String returns the string representation of the mark.
func (m DayMark) String() string {
	switch m {
	case DayOutsideMonth:
		return "outside"
	case DayFuture:
		return "future"
	case DayAttended:
		return "attended"
	case DayAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// CalendarGrid is a month rendered as Sunday-started weeks. Cells holds a
// multiple of 7 marks; leading and trailing pad cells are DayOutsideMonth.
type CalendarGrid struct {
	Month time.Time // first day of the month, local midnight
	Cells []DayMark
}

// Weeks slices the grid into rows of 7 for rendering.
func (g CalendarGrid) Weeks() [][]DayMark {
	weeks := make([][]DayMark, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		weeks = append(weeks, g.Cells[i:i+7])
	}
	return weeks
}

// AttendedCount returns the number of attended days in the grid.
func (g CalendarGrid) AttendedCount() int {
	n := 0
	for _, c := range g.Cells {
		if c == DayAttended {
			n++
		}
	}
	return n
}

// BuildCalendarGrid derives the calendar for the month containing month.
// attended holds the attendance dates of the participant (any instant within
// the day works, only the local date matters), now decides which days are
// still in the future. All date math uses the Seoul timezone.
func BuildCalendarGrid(month time.Time, attended []time.Time, now time.Time) CalendarGrid {
	first := timeutil.StartOfMonth(month)
	daysInMonth := timeutil.DaysInMonth(first)
	today := timeutil.StartOfDay(now)

	attendedSet := make(map[string]struct{}, len(attended))
	for _, d := range attended {
		attendedSet[timeutil.FormatDateStr(d)] = struct{}{}
	}

	leading := int(first.Weekday()) // Sunday-start: Sunday == 0 pad cells
	total := leading + daysInMonth
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}

	cells := make([]DayMark, total)
	for i := range cells {
		cells[i] = DayOutsideMonth
	}

	for day := 1; day <= daysInMonth; day++ {
		date := first.AddDate(0, 0, day-1)
		mark := DayAbsent
		switch {
		case date.After(today):
			mark = DayFuture
		default:
			if _, ok := attendedSet[timeutil.FormatDateStr(date)]; ok {
				mark = DayAttended
			}
		}
		cells[leading+day-1] = mark
	}

	return CalendarGrid{Month: first, Cells: cells}
}
