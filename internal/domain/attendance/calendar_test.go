package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

func TestBuildCalendarGrid_Shape(t *testing.T) {
	// March 2026 starts on a Sunday and has 31 days: 31 cells + 4 trailing
	// pads = 35.
	now := timeutil.Date(2026, 4, 10)
	grid := BuildCalendarGrid(timeutil.Date(2026, 3, 1), nil, now)

	require.Len(t, grid.Cells, 35)
	assert.Zero(t, len(grid.Cells)%7)
	assert.Equal(t, timeutil.Date(2026, 3, 1), grid.Month)
	assert.Len(t, grid.Weeks(), 5)
}

func TestBuildCalendarGrid_LeadingPad(t *testing.T) {
	// February 2026 starts on a Sunday; April 2026 starts on a Wednesday.
	now := timeutil.Date(2026, 12, 31)

	feb := BuildCalendarGrid(timeutil.Date(2026, 2, 1), nil, now)
	assert.Equal(t, DayAbsent, feb.Cells[0], "no pad when the month starts on Sunday")

	apr := BuildCalendarGrid(timeutil.Date(2026, 4, 1), nil, now)
	for i := 0; i < 3; i++ {
		assert.Equal(t, DayOutsideMonth, apr.Cells[i])
	}
	assert.Equal(t, DayAbsent, apr.Cells[3], "April 1st lands on the Wednesday cell")
}

func TestBuildCalendarGrid_Classification(t *testing.T) {
	attended := []time.Time{
		timeutil.DateTime(2026, 3, 2, 18, 10, 0),
		timeutil.DateTime(2026, 3, 5, 21, 59, 0),
	}
	now := timeutil.DateTime(2026, 3, 10, 12, 0, 0)

	grid := BuildCalendarGrid(timeutil.Date(2026, 3, 1), attended, now)

	// March 2026 starts on Sunday, so day N sits at cell N-1.
	assert.Equal(t, DayAttended, grid.Cells[1])
	assert.Equal(t, DayAttended, grid.Cells[4])
	assert.Equal(t, DayAbsent, grid.Cells[0])
	assert.Equal(t, DayAbsent, grid.Cells[9], "today without attendance is absent, not future")
	assert.Equal(t, DayFuture, grid.Cells[10])
	assert.Equal(t, DayFuture, grid.Cells[30])
	assert.Equal(t, 2, grid.AttendedCount())
}

func TestBuildCalendarGrid_AttendedToday(t *testing.T) {
	now := timeutil.DateTime(2026, 3, 10, 22, 5, 0)
	attended := []time.Time{timeutil.DateTime(2026, 3, 10, 18, 0, 0)}

	grid := BuildCalendarGrid(now, attended, now)
	assert.Equal(t, DayAttended, grid.Cells[9])
}

func TestBuildCalendarGrid_EveryMonthIsWeekAligned(t *testing.T) {
	now := timeutil.Date(2027, 1, 1)
	for month := 1; month <= 12; month++ {
		grid := BuildCalendarGrid(timeutil.Date(2026, month, 15), nil, now)
		assert.Zerof(t, len(grid.Cells)%7, "month %d not padded to full weeks", month)
	}
}
