package store

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/dukerupert/recurcal/internal/calendar"
	"github.com/dukerupert/recurcal/internal/model"
	"github.com/dukerupert/recurcal/internal/overlap"
)

// EventStore reads and writes the events that conflict checks run against.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, title, event_date, start_time, end_time, created_at`

// Create stores one event. iv is already validated by overlap.NewInterval.
func (s *EventStore) Create(title string, iv overlap.Interval) (*model.CalendarEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO calendar_events (title, event_date, start_time, end_time)
		 VALUES (?, ?, ?, ?)`,
		title, iv.Date.String(), iv.Start.String(), iv.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// listChunk bounds the IN list of one query. SQLite caps bound variables
// at 32766 and a long series can have more dates than that.
const listChunk = 500

// ListByDates returns the events on any of dates, ordered by date and start.
func (s *EventStore) ListByDates(dates []calendar.Date) ([]model.CalendarEvent, error) {
	keys := make([]string, 0, len(dates))
	seen := make(map[calendar.Date]bool, len(dates))
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			keys = append(keys, d.String())
		}
	}

	var events []model.CalendarEvent
	for chunk := range slices.Chunk(keys, listChunk) {
		found, err := s.listByDateKeys(chunk)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}

	slices.SortFunc(events, func(a, b model.CalendarEvent) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

func (s *EventStore) listByDateKeys(keys []string) ([]model.CalendarEvent, error) {
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}

	rows, err := s.db.Query(
		`SELECT `+eventColumns+`
		 FROM calendar_events
		 WHERE event_date IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var date, start, end string
	if err := row.Scan(&e.ID, &e.Title, &date, &start, &end, &e.CreatedAt); err != nil {
		return nil, err
	}

	iv, err := overlap.NewInterval(e.ID, date, start, end)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", e.ID, err)
	}
	e.Date, e.StartTime, e.EndTime = iv.Date, iv.Start, iv.End
	return &e, nil
}
