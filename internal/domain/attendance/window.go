package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

// ErrInvalidWindow indicates a misconfigured active window.
var ErrInvalidWindow = errors.New("attendance: invalid active window")

// ActiveWindow is the daily interval during which presence counts as
// attendance. The window never crosses local midnight.
type ActiveWindow struct {
	OpenHour  int // inclusive, 0-23
	CloseHour int // exclusive, 1-24
	Location  *time.Location
}

// DefaultWindow returns the standard mogakko window: 18:00-22:00 KST.
func DefaultWindow() ActiveWindow {
	return ActiveWindow{
		OpenHour:  18,
		CloseHour: 22,
		Location:  timeutil.SeoulTZ,
	}
}

// Validate checks the window configuration.
func (w ActiveWindow) Validate() error {
	if w.Location == nil {
		return fmt.Errorf("%w: location is required", ErrInvalidWindow)
	}
	if w.OpenHour < 0 || w.OpenHour > 23 {
		return fmt.Errorf("%w: open hour %d out of range", ErrInvalidWindow, w.OpenHour)
	}
	if w.CloseHour < 1 || w.CloseHour > 24 {
		return fmt.Errorf("%w: close hour %d out of range", ErrInvalidWindow, w.CloseHour)
	}
	if w.OpenHour >= w.CloseHour {
		return fmt.Errorf("%w: open hour %d must precede close hour %d", ErrInvalidWindow, w.OpenHour, w.CloseHour)
	}
	return nil
}

// Contains reports whether t falls inside the window.
// The open boundary is inclusive, the close boundary exclusive.
func (w ActiveWindow) Contains(t time.Time) bool {
	local := t.In(w.Location)
	hour := local.Hour()
	return hour >= w.OpenHour && hour < w.CloseHour
}

// OpenAt returns the opening instant of the window on the day containing t.
func (w ActiveWindow) OpenAt(t time.Time) time.Time {
	local := t.In(w.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), w.OpenHour, 0, 0, 0, w.Location)
}

// CloseAt returns the closing instant of the window on the day containing t.
func (w ActiveWindow) CloseAt(t time.Time) time.Time {
	local := t.In(w.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), w.CloseHour, 0, 0, 0, w.Location)
}

// LocalDate returns the attendance date of t: its calendar date in the
// window's location. Sessions are attributed to the date they were opened.
func (w ActiveWindow) LocalDate(t time.Time) time.Time {
	local := t.In(w.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.Location)
}
