package recurrence

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/recurcal/internal/calendar"
)

func date(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func mustRule(t *testing.T, kind Kind, interval int, end End) Rule {
	t.Helper()
	r, err := NewRule(kind, interval, end)
	if err != nil {
		t.Fatalf("NewRule(%v, %d, %v) error: %v", kind, interval, end, err)
	}
	return r
}

func dateStrings(dates []calendar.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

// --- Rule construction ---

func TestNewRuleErrors(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		interval int
		end      End
		want     error
	}{
		{"zero interval", Daily, 0, Never(), ErrInvalidInterval},
		{"negative interval", Weekly, -2, Never(), ErrInvalidInterval},
		{"zero count", Monthly, 1, AfterCount(0), ErrInvalidCount},
		{"unknown kind", Kind(42), 1, Never(), ErrUnsupportedRule},
		{"invalid end date", Daily, 1, OnDate(calendar.Date{Year: 2024, Month: time.February, Day: 30}), calendar.ErrInvalidDate},
	}

	for _, tt := range tests {
		_, err := NewRule(tt.kind, tt.interval, tt.end)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestNewRuleNoneIgnoresIntervalAndEnd(t *testing.T) {
	r, err := NewRule(None, -5, AfterCount(0))
	if err != nil {
		t.Fatalf("NewRule(None) error: %v", err)
	}
	if r.Kind() != None {
		t.Errorf("Kind = %v, want None", r.Kind())
	}
	if r.Count().IsPresent() || r.Until().IsPresent() {
		t.Error("None rule should carry no end condition")
	}
}

func TestRuleEndAccessors(t *testing.T) {
	until := date(t, "2025-01-01")
	r := mustRule(t, Daily, 1, OnDate(until))
	if got, ok := r.Until().Get(); !ok || got != until {
		t.Errorf("Until = %v, %v; want %v, true", got, ok, until)
	}
	if r.Count().IsPresent() {
		t.Error("OnDate rule should have no count")
	}

	r = mustRule(t, Daily, 1, AfterCount(3))
	if got := r.Count().OrElse(0); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

// --- Expand: concrete cases ---

func TestExpandConcreteCases(t *testing.T) {
	tests := []struct {
		name   string
		anchor string
		kind   Kind
		every  int
		until  string
		want   []string
	}{
		{
			name:   "month end clamp in a leap year",
			anchor: "2024-01-31", kind: Monthly, every: 1, until: "2024-04-30",
			want: []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
		},
		{
			name:   "every second day",
			anchor: "2024-11-04", kind: Daily, every: 2, until: "2024-11-10",
			want: []string{"2024-11-04", "2024-11-06", "2024-11-08", "2024-11-10"},
		},
		{
			name:   "every second week",
			anchor: "2024-11-01", kind: Weekly, every: 2, until: "2024-11-30",
			want: []string{"2024-11-01", "2024-11-15", "2024-11-29"},
		},
		{
			name:   "yearly leap day clamps to Feb 28",
			anchor: "2024-02-29", kind: Yearly, every: 1, until: "2026-03-01",
			want: []string{"2024-02-29", "2025-02-28", "2026-02-28"},
		},
		{
			name:   "month end clamp in a common year",
			anchor: "2023-01-31", kind: Monthly, every: 1, until: "2023-06-30",
			want: []string{"2023-01-31", "2023-02-28", "2023-03-31", "2023-04-30", "2023-05-31", "2023-06-30"},
		},
		{
			name:   "every other month from the 30th",
			anchor: "2023-12-30", kind: Monthly, every: 2, until: "2024-06-30",
			want: []string{"2023-12-30", "2024-02-29", "2024-04-30", "2024-06-30"},
		},
		{
			name:   "end date between occurrences",
			anchor: "2024-11-04", kind: Daily, every: 3, until: "2024-11-12",
			want: []string{"2024-11-04", "2024-11-07", "2024-11-10"},
		},
		{
			name:   "end date equal to anchor",
			anchor: "2024-05-05", kind: Weekly, every: 1, until: "2024-05-05",
			want: []string{"2024-05-05"},
		},
		{
			name:   "leap day returns in the next leap year",
			anchor: "2024-02-29", kind: Yearly, every: 2, until: "2028-12-31",
			want: []string{"2024-02-29", "2026-02-28", "2028-02-29"},
		},
	}

	for _, tt := range tests {
		rule := mustRule(t, tt.kind, tt.every, OnDate(date(t, tt.until)))
		s, err := Expand(date(t, tt.anchor), rule, 100)
		if err != nil {
			t.Errorf("%s: Expand error: %v", tt.name, err)
			continue
		}
		if got := dateStrings(s.Dates); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
		if s.Stop != StopEndDate {
			t.Errorf("%s: Stop = %v, want end-date", tt.name, s.Stop)
		}
	}
}

func TestExpandMonthlyDoesNotDrift(t *testing.T) {
	// A naive step from the previous occurrence would settle on the 28th
	// after February.
	rule := mustRule(t, Monthly, 1, AfterCount(13))
	s, err := Expand(date(t, "2025-01-31"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	for _, d := range s.Dates {
		if !calendar.IsLastDayOfMonth(d) {
			t.Errorf("%v is not a month end", d)
		}
	}
	if len(s.Dates) != 13 {
		t.Errorf("got %d occurrences, want 13", len(s.Dates))
	}
}

func TestExpandLeapYearsOnlyPolicy(t *testing.T) {
	e := DefaultExpander()
	e.LeapDay = LeapDayLeapYearsOnly

	rule := mustRule(t, Yearly, 1, OnDate(date(t, "2033-01-01")))
	s, err := e.Expand(date(t, "2024-02-29"), rule)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	want := []string{"2024-02-29", "2028-02-29", "2032-02-29"}
	if got := dateStrings(s.Dates); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Interval 3 from 2024 visits 2027, 2030, 2033, 2036: only 2036 is leap.
	rule = mustRule(t, Yearly, 3, AfterCount(2))
	s, err = e.Expand(date(t, "2024-02-29"), rule)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	want = []string{"2024-02-29", "2036-02-29"}
	if got := dateStrings(s.Dates); !reflect.DeepEqual(got, want) {
		t.Errorf("interval 3: got %v, want %v", got, want)
	}
}

func TestExpandLeapYearsOnlyLeavesOtherAnchorsAlone(t *testing.T) {
	e := Expander{LeapDay: LeapDayLeapYearsOnly}
	rule := mustRule(t, Yearly, 1, AfterCount(3))
	s, err := e.Expand(date(t, "2024-02-28"), rule)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	want := []string{"2024-02-28", "2025-02-28", "2026-02-28"}
	if got := dateStrings(s.Dates); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// --- Expand: end conditions ---

func TestExpandNonePassThrough(t *testing.T) {
	anchor := date(t, "2024-07-01")
	for _, rule := range []Rule{Once(), mustRule(t, None, 0, AfterCount(5))} {
		s, err := Expand(anchor, rule, 10)
		if err != nil {
			t.Fatalf("Expand error: %v", err)
		}
		if len(s.Dates) != 1 || s.Dates[0] != anchor {
			t.Errorf("got %v, want [%v]", s.Dates, anchor)
		}
		if s.Stop != StopSingle {
			t.Errorf("Stop = %v, want single", s.Stop)
		}
	}
}

func TestExpandCount(t *testing.T) {
	rule := mustRule(t, Weekly, 1, AfterCount(5))
	s, err := Expand(date(t, "2026-02-03"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	want := []string{"2026-02-03", "2026-02-10", "2026-02-17", "2026-02-24", "2026-03-03"}
	if got := dateStrings(s.Dates); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if s.Stop != StopCount {
		t.Errorf("Stop = %v, want count", s.Stop)
	}
}

func TestExpandCountOneIsTheAnchor(t *testing.T) {
	rule := mustRule(t, Daily, 1, AfterCount(1))
	s, err := Expand(date(t, "2026-02-03"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if len(s.Dates) != 1 || s.Stop != StopCount {
		t.Errorf("got %v (%v), want only the anchor stopped by count", s.Dates, s.Stop)
	}
}

func TestExpandNeverUsesHorizon(t *testing.T) {
	rule := mustRule(t, Monthly, 1, Never())
	s, err := Expand(date(t, "2024-03-15"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	// Mar 2024 .. Dec 2025
	if len(s.Dates) != 22 {
		t.Errorf("got %d occurrences, want 22", len(s.Dates))
	}
	if last := s.Dates[len(s.Dates)-1]; last != date(t, "2025-12-15") {
		t.Errorf("last = %v, want 2025-12-15", last)
	}
	if s.Stop != StopHorizon {
		t.Errorf("Stop = %v, want horizon", s.Stop)
	}
}

func TestExpandHorizonIsConfigurable(t *testing.T) {
	e := Expander{HorizonYears: 3}
	if got := e.Horizon(date(t, "2024-06-01")); got != date(t, "2027-12-31") {
		t.Errorf("Horizon = %v, want 2027-12-31", got)
	}
	if got := (Expander{}).Horizon(date(t, "2024-06-01")); got != date(t, "2025-12-31") {
		t.Errorf("default Horizon = %v, want 2025-12-31", got)
	}
	if got := e.Horizon(date(t, "9998-01-01")); got != date(t, "9999-12-31") {
		t.Errorf("Horizon near the end of the range = %v, want 9999-12-31", got)
	}
}

func TestExpandEndBeforeAnchor(t *testing.T) {
	rule := mustRule(t, Daily, 1, OnDate(date(t, "2024-01-01")))
	_, err := Expand(date(t, "2024-01-02"), rule, 0)
	if !errors.Is(err, ErrEndBeforeAnchor) {
		t.Errorf("error = %v, want ErrEndBeforeAnchor", err)
	}
}

func TestExpandInvalidAnchor(t *testing.T) {
	rule := mustRule(t, Daily, 1, Never())
	_, err := Expand(calendar.Date{Year: 2025, Month: time.February, Day: 29}, rule, 0)
	if !errors.Is(err, calendar.ErrInvalidDate) {
		t.Errorf("error = %v, want ErrInvalidDate", err)
	}
}

// --- Expand: safety cap ---

func TestExpandHardCap(t *testing.T) {
	rule := mustRule(t, Daily, 1, OnDate(date(t, "2074-01-01")))
	s, err := Expand(date(t, "2024-01-01"), rule, 50)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if len(s.Dates) != 50 {
		t.Errorf("got %d occurrences, want 50", len(s.Dates))
	}
	if !s.Capped() {
		t.Error("series should report the hard cap")
	}
}

func TestExpandHardCapNotReportedWhenSeriesFits(t *testing.T) {
	rule := mustRule(t, Daily, 1, OnDate(date(t, "2024-01-05")))
	s, err := Expand(date(t, "2024-01-01"), rule, 5)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if len(s.Dates) != 5 || s.Capped() {
		t.Errorf("got %d occurrences capped=%v, want 5 uncapped", len(s.Dates), s.Capped())
	}
}

func TestExpandHugeInterval(t *testing.T) {
	rule := mustRule(t, Monthly, 1<<40, Never())
	s, err := Expand(date(t, "2024-01-31"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if len(s.Dates) != 1 {
		t.Errorf("got %v, want only the anchor", s.Dates)
	}
}

func TestExpandCountBeyondSupportedRange(t *testing.T) {
	rule := mustRule(t, Yearly, 1000, AfterCount(50))
	s, err := Expand(date(t, "2024-06-01"), rule, 0)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	// 2024, 3024, ..., 9024
	if len(s.Dates) != 8 {
		t.Errorf("got %d occurrences, want 8", len(s.Dates))
	}
}

// --- Properties ---

func TestExpandProperties(t *testing.T) {
	anchors := []string{"2024-01-31", "2024-02-29", "2023-12-31", "2025-06-15", "2100-02-28"}
	rules := []Rule{
		mustRule(t, Daily, 1, Never()),
		mustRule(t, Daily, 17, AfterCount(40)),
		mustRule(t, Weekly, 3, Never()),
		mustRule(t, Monthly, 1, AfterCount(30)),
		mustRule(t, Monthly, 5, Never()),
		mustRule(t, Yearly, 1, AfterCount(12)),
		mustRule(t, Yearly, 4, AfterCount(5)),
	}
	const hardCap = 200

	for _, a := range anchors {
		anchor := date(t, a)
		for _, rule := range rules {
			first, err := Expand(anchor, rule, hardCap)
			if err != nil {
				t.Fatalf("Expand(%v, %v) error: %v", anchor, rule, err)
			}
			second, _ := Expand(anchor, rule, hardCap)

			if !reflect.DeepEqual(first, second) {
				t.Errorf("Expand(%v, %v) is not idempotent", anchor, rule)
			}
			if first.Dates[0] != anchor {
				t.Errorf("Expand(%v, %v)[0] = %v, want the anchor", anchor, rule, first.Dates[0])
			}
			if len(first.Dates) > hardCap {
				t.Errorf("Expand(%v, %v) returned %d dates, cap %d", anchor, rule, len(first.Dates), hardCap)
			}
			for i := 1; i < len(first.Dates); i++ {
				if !first.Dates[i].After(first.Dates[i-1]) {
					t.Errorf("Expand(%v, %v) not strictly increasing at %d: %v, %v",
						anchor, rule, i, first.Dates[i-1], first.Dates[i])
				}
			}
		}
	}
}

func TestExpandDoesNotAliasResults(t *testing.T) {
	rule := mustRule(t, Daily, 1, AfterCount(3))
	anchor := date(t, "2024-01-01")
	a, _ := Expand(anchor, rule, 0)
	a.Dates[1] = date(t, "1999-01-01")

	b, _ := Expand(anchor, rule, 0)
	if b.Dates[1] != date(t, "2024-01-02") {
		t.Errorf("second expansion saw a mutation: %v", b.Dates)
	}
}

// --- RRULE codec ---

func TestParseRRule(t *testing.T) {
	tests := []struct {
		input    string
		kind     Kind
		interval int
		end      string
	}{
		{"FREQ=DAILY", Daily, 1, "never"},
		{"FREQ=WEEKLY;INTERVAL=2", Weekly, 2, "never"},
		{"RRULE:FREQ=MONTHLY;COUNT=6", Monthly, 1, "count 6"},
		{"FREQ=YEARLY;UNTIL=20300101T000000Z", Yearly, 1, "until 2030-01-01"},
		{"FREQ=DAILY;INTERVAL=3;UNTIL=20241110", Daily, 3, "until 2024-11-10"},
		{"", None, 1, "never"},
	}

	for _, tt := range tests {
		r, err := ParseRRule(tt.input)
		if err != nil {
			t.Errorf("ParseRRule(%q) error: %v", tt.input, err)
			continue
		}
		if r.Kind() != tt.kind || r.Interval() != tt.interval || r.End().String() != tt.end {
			t.Errorf("ParseRRule(%q) = %v/%d/%v, want %v/%d/%s",
				tt.input, r.Kind(), r.Interval(), r.End(), tt.kind, tt.interval, tt.end)
		}
	}
}

func TestParseRRuleErrors(t *testing.T) {
	tests := []string{
		"INTERVAL=2", // no FREQ
		"FREQ=HOURLY",
		"FREQ=WEEKLY;INTERVAL=0",
		"FREQ=WEEKLY;BYDAY=MO,WE",
		"FREQ=MONTHLY;BYMONTHDAY=15",
		"FREQ=DAILY;COUNT=0",
		"FREQ=DAILY;COUNT=3;UNTIL=20300101",
		"FREQ=DAILY;UNKNOWN=1",
	}

	for _, input := range tests {
		if _, err := ParseRRule(input); err == nil {
			t.Errorf("ParseRRule(%q) should error", input)
		}
	}
}

func TestParseRRuleRejectsIgnoredParts(t *testing.T) {
	tests := []string{
		"FREQ=DAILY;DTSTART=20200101T000000Z",
		"FREQ=WEEKLY;WKST=SU",
		"FREQ=YEARLY;BYEASTER=0",
		"FREQ=MONTHLY;BYSETPOS=-1",
		"FREQ=DAILY;TZID=Europe/Berlin",
	}

	for _, input := range tests {
		if _, err := ParseRRule(input); !errors.Is(err, ErrUnsupportedRule) {
			t.Errorf("ParseRRule(%q) error = %v, want ErrUnsupportedRule", input, err)
		}
	}
}

func TestRuleStringRoundTrip(t *testing.T) {
	rules := []Rule{
		mustRule(t, Daily, 1, Never()),
		mustRule(t, Weekly, 2, Never()),
		mustRule(t, Monthly, 1, AfterCount(6)),
		mustRule(t, Yearly, 3, OnDate(date(t, "2040-02-29"))),
	}

	for _, r := range rules {
		s := r.String()
		got, err := ParseRRule(s)
		if err != nil {
			t.Errorf("ParseRRule(%q) error: %v", s, err)
			continue
		}
		if got != r {
			t.Errorf("roundtrip %v -> %q -> %v", r, s, got)
		}
	}

	if got := mustRule(t, Weekly, 2, Never()).String(); !strings.Contains(got, "FREQ=WEEKLY") || !strings.Contains(got, "INTERVAL=2") {
		t.Errorf("String() = %q, want FREQ=WEEKLY and INTERVAL=2", got)
	}
	if got := Once().String(); got != "" {
		t.Errorf("Once().String() = %q, want empty", got)
	}
}

func TestParseLeapDayPolicy(t *testing.T) {
	for _, p := range []LeapDayPolicy{LeapDayClamp, LeapDayLeapYearsOnly} {
		got, err := ParseLeapDayPolicy(strings.ToUpper(p.String()))
		if err != nil || got != p {
			t.Errorf("ParseLeapDayPolicy(%q) = %v, %v; want %v", p.String(), got, err, p)
		}
	}
	if _, err := ParseLeapDayPolicy("skip"); err == nil {
		t.Error("ParseLeapDayPolicy(\"skip\") should error")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StopHardCap.String(), "hard-cap"},
		{StopReason(99).String(), "StopReason(99)"},
		{Kind(42).String(), "Kind(42)"},
		{LeapDayPolicy(7).String(), "LeapDayPolicy(7)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
