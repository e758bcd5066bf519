package recurrence

import (
	"errors"
	"fmt"

	"github.com/samber/mo"

	"github.com/dukerupert/recurcal/internal/calendar"
)

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrInvalidCount    = errors.New("occurrence count must be positive")
	ErrEndBeforeAnchor = errors.New("end date is before the anchor date")
	ErrUnsupportedRule = errors.New("unsupported recurrence rule")
)

// Kind is the repeat unit of a rule.
type Kind int

const (
	None Kind = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var kindNames = map[Kind]string{
	None:    "NONE",
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type endKind int

const (
	endNever endKind = iota
	endOnDate
	endAfterCount
)

// End is the stop condition of a rule. Exactly one of never, on-date and
// after-count holds.
type End struct {
	kind  endKind
	date  calendar.Date
	count int
}

// Never repeats up to the expander's default horizon.
func Never() End { return End{kind: endNever} }

// OnDate stops after the last occurrence on or before d.
func OnDate(d calendar.Date) End { return End{kind: endOnDate, date: d} }

// AfterCount stops after n occurrences, the anchor included.
func AfterCount(n int) End { return End{kind: endAfterCount, count: n} }

func (e End) String() string {
	switch e.kind {
	case endOnDate:
		return "until " + e.date.String()
	case endAfterCount:
		return fmt.Sprintf("count %d", e.count)
	}
	return "never"
}

// Rule is an immutable recurrence rule. Build it with NewRule or ParseRRule.
type Rule struct {
	kind     Kind
	interval int
	end      End
}

// NewRule validates and returns a rule. For kind None the interval and end
// are ignored.
func NewRule(kind Kind, interval int, end End) (Rule, error) {
	if _, ok := kindNames[kind]; !ok {
		return Rule{}, fmt.Errorf("%w: unknown kind %d", ErrUnsupportedRule, int(kind))
	}
	if kind == None {
		return Rule{kind: None, interval: 1, end: Never()}, nil
	}
	if interval <= 0 {
		return Rule{}, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}
	switch end.kind {
	case endAfterCount:
		if end.count <= 0 {
			return Rule{}, fmt.Errorf("%w: got %d", ErrInvalidCount, end.count)
		}
	case endOnDate:
		if _, err := calendar.NewDate(end.date.Year, end.date.Month, end.date.Day); err != nil {
			return Rule{}, fmt.Errorf("end date: %w", err)
		}
	}
	return Rule{kind: kind, interval: interval, end: end}, nil
}

// Once is the non-repeating rule.
func Once() Rule {
	return Rule{kind: None, interval: 1, end: Never()}
}

func (r Rule) Kind() Kind    { return r.kind }
func (r Rule) Interval() int { return r.interval }
func (r Rule) End() End      { return r.end }

// Until returns the inclusive end date for OnDate rules.
func (r Rule) Until() mo.Option[calendar.Date] {
	if r.end.kind == endOnDate {
		return mo.Some(r.end.date)
	}
	return mo.None[calendar.Date]()
}

// Count returns the occurrence limit for AfterCount rules.
func (r Rule) Count() mo.Option[int] {
	if r.end.kind == endAfterCount {
		return mo.Some(r.end.count)
	}
	return mo.None[int]()
}
