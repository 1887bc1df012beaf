package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

func TestActiveWindow_Contains(t *testing.T) {
	w := DefaultWindow()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"just before open", timeutil.DateTime(2026, 3, 14, 17, 59, 59), false},
		{"open boundary inclusive", timeutil.DateTime(2026, 3, 14, 18, 0, 0), true},
		{"mid window", timeutil.DateTime(2026, 3, 14, 20, 30, 0), true},
		{"last in-window second", timeutil.DateTime(2026, 3, 14, 21, 59, 59), true},
		{"close boundary exclusive", timeutil.DateTime(2026, 3, 14, 22, 0, 0), false},
		{"midnight", timeutil.DateTime(2026, 3, 14, 0, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
}

func TestActiveWindow_ContainsConvertsTimezone(t *testing.T) {
	w := DefaultWindow()

	// 10:30 UTC is 19:30 KST.
	assert.True(t, w.Contains(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)))
	// 14:00 UTC is 23:00 KST.
	assert.False(t, w.Contains(time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)))
}

func TestActiveWindow_Validate(t *testing.T) {
	assert.NoError(t, DefaultWindow().Validate())

	bad := []ActiveWindow{
		{OpenHour: 18, CloseHour: 22, Location: nil},
		{OpenHour: -1, CloseHour: 22, Location: timeutil.SeoulTZ},
		{OpenHour: 18, CloseHour: 25, Location: timeutil.SeoulTZ},
		{OpenHour: 22, CloseHour: 18, Location: timeutil.SeoulTZ},
		{OpenHour: 18, CloseHour: 18, Location: timeutil.SeoulTZ},
	}
	for _, w := range bad {
		assert.ErrorIs(t, w.Validate(), ErrInvalidWindow)
	}
}

func TestActiveWindow_Boundaries(t *testing.T) {
	w := DefaultWindow()
	at := timeutil.DateTime(2026, 3, 14, 20, 15, 42)

	assert.Equal(t, timeutil.DateTime(2026, 3, 14, 18, 0, 0), w.OpenAt(at))
	assert.Equal(t, timeutil.DateTime(2026, 3, 14, 22, 0, 0), w.CloseAt(at))
	assert.Equal(t, timeutil.Date(2026, 3, 14), w.LocalDate(at))
}
