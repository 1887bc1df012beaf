package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "daily at 18:00", expr: "0 18 * * *"},
		{name: "daily at 22:00", expr: "0 22 * * *"},
		{name: "every 5 minutes", expr: "*/5 * * * *"},
		{name: "list of hours", expr: "0 9,18,22 * * *"},
		{name: "range of weekdays", expr: "0 18 * * 1-5"},
		{name: "too few fields", expr: "0 18 * *", wantErr: true},
		{name: "minute out of range", expr: "60 18 * * *", wantErr: true},
		{name: "garbage", expr: "a b c d e", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpression_Next(t *testing.T) {
	expr, err := ParseCronExpression("0 18 * * *")
	require.NoError(t, err)

	// Before the boundary on the same day.
	after := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	next := expr.Next(after)
	assert.Equal(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), next)

	// Exactly at the boundary rolls over to the next day.
	atBoundary := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	next = expr.Next(atBoundary)
	assert.Equal(t, time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC), next)

	// After the boundary also rolls over.
	evening := time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)
	next = expr.Next(evening)
	assert.Equal(t, time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC), next)
}

func TestCronExpression_NextRespectsWeekdays(t *testing.T) {
	expr, err := ParseCronExpression("0 18 * * 0")
	require.NoError(t, err)

	// March 2, 2026 is a Monday; the next Sunday is March 8.
	after := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	next := expr.Next(after)
	assert.Equal(t, time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC), next)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(time.Minute)

	at := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Minute), s.Next(at))
	assert.Equal(t, "@every 1m0s", s.String())
}

func TestMustParseCronExpression_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustParseCronExpression("not a cron")
	})
}
