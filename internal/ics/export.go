// Package ics writes expanded occurrence series as iCalendar data.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/dukerupert/recurcal/internal/calendar"
	"github.com/dukerupert/recurcal/internal/overlap"
	"github.com/dukerupert/recurcal/internal/recurrence"
)

const ProductID = "-//recurcal//recurrence export//EN"

// uidNamespace seeds the name-based UIDs of exported instances.
var uidNamespace = uuid.MustParse("8d7f3c52-1f0e-4d8b-9a51-62f0c1b7e4a9")

// Event describes what every exported occurrence looks like.
type Event struct {
	// SeriesID groups the instances; recurrence.Fingerprint is a good value.
	SeriesID string
	Title    string
	Start    calendar.Clock
	End      calendar.Clock
	// Location is the zone DTSTART/DTEND are written in. Nil means UTC.
	Location *time.Location
}

// InstanceUID is the stable UID of the occurrence of seriesID on d.
func InstanceUID(seriesID string, d calendar.Date) string {
	return uuid.NewSHA1(uidNamespace, []byte(seriesID+"/"+d.String())).String()
}

// Export writes one VEVENT per date of series. stamp becomes every DTSTAMP,
// so identical input produces identical output.
func Export(w io.Writer, ev Event, series recurrence.Series, stamp time.Time) error {
	loc := ev.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, d := range series.Dates {
		iv, err := overlap.IntervalAt(0, d, ev.Start, ev.End)
		if err != nil {
			return fmt.Errorf("occurrence %s: %w", d, err)
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, InstanceUID(ev.SeriesID, d))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, iv.StartTime(loc))
		event.Props.SetDateTime(ical.PropDateTimeEnd, iv.EndTime(loc))
		if ev.Title != "" {
			event.Props.SetText(ical.PropSummary, ev.Title)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}
