package recurrence

import (
	"fmt"
	"strings"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/recurcal/internal/calendar"
)

var freqToKind = map[rrule.Frequency]Kind{
	rrule.DAILY:   Daily,
	rrule.WEEKLY:  Weekly,
	rrule.MONTHLY: Monthly,
	rrule.YEARLY:  Yearly,
}

// supportedParts are the RRULE parts ParseRRule honours. rrule-go accepts
// more (DTSTART, WKST, BY*), and silently dropping them would change the
// meaning of the rule.
var supportedParts = map[string]bool{
	"FREQ":     true,
	"INTERVAL": true,
	"COUNT":    true,
	"UNTIL":    true,
}

var kindToFreq = map[Kind]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// ParseRRule parses the RFC 5545 subset this package expands:
// FREQ=DAILY|WEEKLY|MONTHLY|YEARLY with optional INTERVAL and one of COUNT
// or UNTIL, e.g. "FREQ=MONTHLY;INTERVAL=2;UNTIL=20250101". An empty string
// is the non-repeating rule.
func ParseRRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "RRULE:")
	if s == "" {
		return Once(), nil
	}

	// rrule-go defaults a missing FREQ to YEARLY and a zero INTERVAL or
	// COUNT to "unset", so those are checked on the raw parts.
	parts := ruleParts(s)
	if _, ok := parts["FREQ"]; !ok {
		return Rule{}, fmt.Errorf("%w: FREQ is required", ErrUnsupportedRule)
	}
	for name := range parts {
		if !supportedParts[name] {
			return Rule{}, fmt.Errorf("%w: %s is not supported in %q", ErrUnsupportedRule, name, s)
		}
	}

	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}

	kind, ok := freqToKind[opt.Freq]
	if !ok {
		return Rule{}, fmt.Errorf("%w: frequency %v", ErrUnsupportedRule, opt.Freq)
	}

	interval := opt.Interval
	if _, set := parts["INTERVAL"]; set && interval <= 0 {
		return Rule{}, fmt.Errorf("%w: got %q", ErrInvalidInterval, parts["INTERVAL"])
	}
	if interval == 0 {
		interval = 1
	}

	_, countSet := parts["COUNT"]
	end := Never()
	switch {
	case countSet && !opt.Until.IsZero():
		return Rule{}, fmt.Errorf("%w: COUNT and UNTIL are mutually exclusive", ErrUnsupportedRule)
	case countSet:
		end = AfterCount(opt.Count)
	case !opt.Until.IsZero():
		end = OnDate(calendar.DateOf(opt.Until.UTC()))
	}

	return NewRule(kind, interval, end)
}

// String serializes the rule back to an RRULE string. The non-repeating
// rule is the empty string.
func (r Rule) String() string {
	freq, ok := kindToFreq[r.kind]
	if !ok {
		return ""
	}
	opt := rrule.ROption{Freq: freq}
	if r.interval > 1 {
		opt.Interval = r.interval
	}
	if n, ok := r.Count().Get(); ok {
		opt.Count = n
	}
	if d, ok := r.Until().Get(); ok {
		opt.Until = d.Time(nil)
	}
	return opt.RRuleString()
}

func ruleParts(s string) map[string]string {
	parts := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return parts
}
