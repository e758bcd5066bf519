// Package overlap detects time conflicts between a candidate event and the
// events already on the calendar.
package overlap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/recurcal/internal/calendar"
)

var ErrEmptyInterval = errors.New("end time must be after start time")

// Interval is one event's span on a single day. Start and End are same-day
// wall-clock times with Start < End.
type Interval struct {
	ID    int64
	Date  calendar.Date
	Start calendar.Clock
	End   calendar.Clock
}

// NewInterval parses a YYYY-MM-DD date and HH:MM start and end times.
func NewInterval(id int64, date, start, end string) (Interval, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return Interval{}, err
	}
	s, err := calendar.ParseClock(start)
	if err != nil {
		return Interval{}, fmt.Errorf("start: %w", err)
	}
	e, err := calendar.ParseClock(end)
	if err != nil {
		return Interval{}, fmt.Errorf("end: %w", err)
	}
	return IntervalAt(id, d, s, e)
}

// IntervalAt builds an interval from parsed parts.
func IntervalAt(id int64, date calendar.Date, start, end calendar.Clock) (Interval, error) {
	if _, err := calendar.NewDate(date.Year, date.Month, date.Day); err != nil {
		return Interval{}, err
	}
	if !start.Valid() || !end.Valid() {
		return Interval{}, fmt.Errorf("%w: %d-%d minutes", calendar.ErrInvalidTime, start, end)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: %s-%s", ErrEmptyInterval, start, end)
	}
	return Interval{ID: id, Date: date, Start: start, End: end}, nil
}

func (iv Interval) StartTime(loc *time.Location) time.Time {
	return iv.Start.On(iv.Date, loc)
}

func (iv Interval) EndTime(loc *time.Location) time.Time {
	return iv.End.On(iv.Date, loc)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s %s-%s", iv.Date, iv.Start, iv.End)
}

// Overlaps reports whether a and b share any instant. Intervals are
// half-open, so one ending at 10:00 and another starting at 10:00 do not
// overlap.
func Overlaps(a, b Interval) bool {
	// Same-day spans on different dates can never meet.
	if a.Date != b.Date {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// FindOverlapping returns the existing intervals that overlap candidate, in
// input order. The result is empty, not nil, when nothing conflicts.
//
// When candidate is an edit of a stored event, drop the stored copy from
// existing first (see Exclude).
func FindOverlapping(candidate Interval, existing []Interval) []Interval {
	conflicts := make([]Interval, 0)
	for _, iv := range existing {
		if Overlaps(candidate, iv) {
			conflicts = append(conflicts, iv)
		}
	}
	return conflicts
}

// Exclude returns existing without the intervals whose ID is id.
func Exclude(existing []Interval, id int64) []Interval {
	out := make([]Interval, 0, len(existing))
	for _, iv := range existing {
		if iv.ID != id {
			out = append(out, iv)
		}
	}
	return out
}

// Conflict pairs one expanded candidate with the existing intervals it hits.
type Conflict struct {
	Candidate Interval
	With      []Interval
}

// FindSeriesConflicts checks every occurrence date of a recurring event,
// not only the first, against the full existing set.
func FindSeriesConflicts(dates []calendar.Date, start, end calendar.Clock, existing []Interval) ([]Conflict, error) {
	byDate := make(map[calendar.Date][]Interval)
	for _, iv := range existing {
		byDate[iv.Date] = append(byDate[iv.Date], iv)
	}

	conflicts := make([]Conflict, 0)
	for _, d := range dates {
		candidate, err := IntervalAt(0, d, start, end)
		if err != nil {
			return nil, err
		}
		if hits := FindOverlapping(candidate, byDate[d]); len(hits) > 0 {
			conflicts = append(conflicts, Conflict{Candidate: candidate, With: hits})
		}
	}
	return conflicts, nil
}
