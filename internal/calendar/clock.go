package calendar

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day with minute precision, stored as minutes
// since midnight.
type Clock int

const minutesPerDay = 24 * 60

// NewClock validates hour and minute.
func NewClock(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d out of range", ErrInvalidTime, hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// ParseClock parses a strict 24-hour HH:MM string.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	h, ok1 := digits(s[0:2])
	m, ok2 := digits(s[3:5])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	return NewClock(h, m)
}

func (c Clock) Hour() int    { return int(c) / 60 }
func (c Clock) Minute() int  { return int(c) % 60 }
func (c Clock) Minutes() int { return int(c) }

func (c Clock) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant at which c falls on day d in loc.
func (c Clock) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour(), c.Minute(), 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with ParseClock rules.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
