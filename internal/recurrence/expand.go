package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/recurcal/internal/calendar"
)

const (
	// DefaultHardCap bounds every expansion regardless of the rule's end.
	DefaultHardCap = 1000

	// DefaultHorizonYears places the horizon for never-ending rules on
	// Dec 31 of the year after the anchor.
	DefaultHorizonYears = 1
)

// lastDate is the largest year calendar.Date supports.
var lastDate = calendar.MustDate(9999, time.December, 31)

// LeapDayPolicy decides what a yearly rule anchored on Feb 29 does in
// non-leap years.
type LeapDayPolicy int

const (
	// LeapDayClamp emits every interval years, on Feb 28 in non-leap years.
	LeapDayClamp LeapDayPolicy = iota
	// LeapDayLeapYearsOnly stays on the anchor + k*interval year lattice
	// and drops the years that have no Feb 29.
	LeapDayLeapYearsOnly
)

var leapDayPolicyNames = map[LeapDayPolicy]string{
	LeapDayClamp:         "clamp",
	LeapDayLeapYearsOnly: "leap-years-only",
}

func (p LeapDayPolicy) String() string {
	if name, ok := leapDayPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("LeapDayPolicy(%d)", int(p))
}

// ParseLeapDayPolicy accepts the names returned by LeapDayPolicy.String.
func ParseLeapDayPolicy(s string) (LeapDayPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range leapDayPolicyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown leap day policy: %q", s)
}

// StopReason records which boundary ended an expansion.
type StopReason int

const (
	StopSingle StopReason = iota
	StopEndDate
	StopCount
	StopHorizon
	StopHardCap
)

var stopReasonNames = map[StopReason]string{
	StopSingle:  "single",
	StopEndDate: "end-date",
	StopCount:   "count",
	StopHorizon: "horizon",
	StopHardCap: "hard-cap",
}

func (s StopReason) String() string {
	if name, ok := stopReasonNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StopReason(%d)", int(s))
}

// Series is the ordered, duplicate-free list of occurrence dates for one
// anchor and rule. Dates[0] is always the anchor.
type Series struct {
	Anchor calendar.Date
	Dates  []calendar.Date
	Stop   StopReason
}

// Capped reports whether the hard cap cut the series short.
func (s Series) Capped() bool {
	return s.Stop == StopHardCap
}

func (s Series) Len() int {
	return len(s.Dates)
}

// Expander turns rules into series. The zero value uses the defaults.
type Expander struct {
	HardCap      int
	HorizonYears int
	LeapDay      LeapDayPolicy
}

func DefaultExpander() Expander {
	return Expander{
		HardCap:      DefaultHardCap,
		HorizonYears: DefaultHorizonYears,
		LeapDay:      LeapDayClamp,
	}
}

// Expand expands rule from anchor with the default expander and the given
// hard cap. A non-positive hardCap means DefaultHardCap.
func Expand(anchor calendar.Date, rule Rule, hardCap int) (Series, error) {
	e := DefaultExpander()
	e.HardCap = hardCap
	return e.Expand(anchor, rule)
}

// Horizon is the last date a never-ending rule anchored on anchor may reach.
func (e Expander) Horizon(anchor calendar.Date) calendar.Date {
	years := e.HorizonYears
	if years <= 0 {
		years = DefaultHorizonYears
	}
	year := anchor.Year + years
	if year > lastDate.Year {
		return lastDate
	}
	return calendar.MustDate(year, time.December, 31)
}

func (e Expander) hardCap() int {
	if e.HardCap <= 0 {
		return DefaultHardCap
	}
	return e.HardCap
}

// Expand produces the occurrence series of rule anchored on anchor.
//
// The anchor is always the first occurrence. Generation stops at the first
// boundary reached: the rule's end date (inclusive), its occurrence count,
// the horizon for never-ending rules, or the hard cap. Only construction
// problems are errors: an invalid anchor or an end date before the anchor.
func (e Expander) Expand(anchor calendar.Date, rule Rule) (Series, error) {
	if _, err := calendar.NewDate(anchor.Year, anchor.Month, anchor.Day); err != nil {
		return Series{}, fmt.Errorf("anchor: %w", err)
	}

	series := Series{Anchor: anchor, Dates: []calendar.Date{anchor}, Stop: StopSingle}
	if rule.kind == None {
		return series, nil
	}
	if rule.interval <= 0 {
		return Series{}, ErrInvalidInterval
	}

	last, dateStop := e.boundary(anchor, rule)
	if last.Before(anchor) {
		return Series{}, fmt.Errorf("%w: %s < %s", ErrEndBeforeAnchor, last, anchor)
	}

	limit := -1
	if n, ok := rule.Count().Get(); ok {
		limit = n
	}
	hardCap := e.hardCap()

	it := newIterator(anchor, rule, e.LeapDay)
	for {
		if len(series.Dates) == limit {
			series.Stop = StopCount
			break
		}
		next, ok := it.next(last)
		if !ok {
			series.Stop = dateStop
			break
		}
		if len(series.Dates) >= hardCap {
			series.Stop = StopHardCap
			break
		}
		series.Dates = append(series.Dates, next)
	}

	series.Dates = normalize(series.Dates)
	return series, nil
}

// boundary resolves the last eligible date and the stop reason reported
// when iteration passes it.
func (e Expander) boundary(anchor calendar.Date, rule Rule) (calendar.Date, StopReason) {
	if until, ok := rule.Until().Get(); ok {
		return until, StopEndDate
	}
	if _, ok := rule.Count().Get(); ok {
		return lastDate, StopHorizon
	}
	return e.Horizon(anchor), StopHorizon
}

// normalize sorts ascending and drops duplicates. Steps are strictly
// increasing so this never reorders, but the Series contract depends on it.
func normalize(dates []calendar.Date) []calendar.Date {
	if slices.IsSortedFunc(dates, calendar.Date.Compare) {
		return slices.CompactFunc(dates, calendar.Date.Equal)
	}
	slices.SortFunc(dates, calendar.Date.Compare)
	return slices.CompactFunc(dates, calendar.Date.Equal)
}

// iterator derives the k-th occurrence from the anchor so that clamped
// months and years never feed back into later steps.
type iterator struct {
	anchor calendar.Date
	rule   Rule
	leap   LeapDayPolicy
	step   int
	prev   calendar.Date
}

func newIterator(anchor calendar.Date, rule Rule, leap LeapDayPolicy) *iterator {
	return &iterator{anchor: anchor, rule: rule, leap: leap, prev: anchor}
}

// maxSpan is how many units of each kind fit in the supported year range.
var maxSpan = map[Kind]int{
	Daily:   9999 * 366,
	Weekly:  9999 * 53,
	Monthly: 9999 * 12,
	Yearly:  9999,
}

// next returns the occurrence after the previous one, or false once it
// would fall after last.
func (it *iterator) next(last calendar.Date) (calendar.Date, bool) {
	for {
		it.step++
		if it.rule.interval > maxSpan[it.rule.kind]/it.step {
			return calendar.Date{}, false
		}
		d, err := it.at(it.step)
		if err != nil || d.After(last) || !d.After(it.prev) {
			return calendar.Date{}, false
		}
		it.prev = d
		if it.skip(d) {
			continue
		}
		return d, true
	}
}

func (it *iterator) at(k int) (calendar.Date, error) {
	n := k * it.rule.interval
	switch it.rule.kind {
	case Daily:
		return calendar.AddDays(it.anchor, n), nil
	case Weekly:
		return calendar.AddWeeks(it.anchor, n), nil
	case Monthly:
		return calendar.AddMonthsClamped(it.anchor, n, it.anchor.Day)
	case Yearly:
		return calendar.AddYearsClamped(it.anchor, n, it.anchor.Month, it.anchor.Day)
	}
	return it.anchor, nil
}

// skip drops clamped Feb 28 dates under LeapDayLeapYearsOnly.
func (it *iterator) skip(d calendar.Date) bool {
	return it.rule.kind == Yearly &&
		it.leap == LeapDayLeapYearsOnly &&
		it.anchor.Month == time.February && it.anchor.Day == 29 &&
		d.Day != 29
}
