package model

import (
	"time"

	"github.com/dukerupert/recurcal/internal/calendar"
	"github.com/dukerupert/recurcal/internal/overlap"
)

type CalendarEvent struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Date      calendar.Date  `json:"date"`
	StartTime calendar.Clock `json:"start_time"`
	EndTime   calendar.Clock `json:"end_time"`
	CreatedAt time.Time      `json:"created_at"`
}

// Interval is the event's span as seen by conflict detection.
func (e CalendarEvent) Interval() overlap.Interval {
	return overlap.Interval{ID: e.ID, Date: e.Date, Start: e.StartTime, End: e.EndTime}
}

// Intervals converts events for overlap.FindOverlapping.
func Intervals(events []CalendarEvent) []overlap.Interval {
	out := make([]overlap.Interval, len(events))
	for i, e := range events {
		out[i] = e.Interval()
	}
	return out
}
