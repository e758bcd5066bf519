package calendar

import (
	"fmt"
	"time"
)

var monthLengths = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear applies the Gregorian rule: divisible by 4, except centuries
// not divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the 1-based month of year.
func DaysInMonth(year int, month time.Month) (int, error) {
	if month < time.January || month > time.December {
		return 0, fmt.Errorf("%w: month %d out of range", ErrInvalidDate, int(month))
	}
	if month == time.February && IsLeapYear(year) {
		return 29, nil
	}
	return monthLengths[month], nil
}

func LastDayOfMonth(d Date) (Date, error) {
	n, err := DaysInMonth(d.Year, d.Month)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: d.Year, Month: d.Month, Day: n}, nil
}

// IsLastDayOfMonth is false for dates whose month is out of range.
func IsLastDayOfMonth(d Date) bool {
	n, err := DaysInMonth(d.Year, d.Month)
	return err == nil && d.Day == n
}

// AddDays moves d by n days. Linear day steps never need clamping.
func AddDays(d Date, n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

func AddWeeks(d Date, n int) Date {
	return AddDays(d, 7*n)
}

// AddMonthsClamped moves d by n months and then sets the day to
// min(originalDay, days in the target month). Passing the anchor's day as
// originalDay keeps a series on its intended day after passing a short month.
// A month of d outside 1..12 or an originalDay outside 1..31 is an error
// wrapping ErrInvalidDate.
func AddMonthsClamped(d Date, n, originalDay int) (Date, error) {
	if _, err := DaysInMonth(d.Year, d.Month); err != nil {
		return Date{}, err
	}
	total := d.Year*12 + int(d.Month-1) + n
	year := total / 12
	month := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		year--
		month = time.Month(total%12 + 13)
	}
	return clamp(year, month, originalDay)
}

// AddYearsClamped moves d by n years onto originalMonth/originalDay. Feb 29
// becomes Feb 28 in non-leap target years.
func AddYearsClamped(d Date, n int, originalMonth time.Month, originalDay int) (Date, error) {
	return clamp(d.Year+n, originalMonth, originalDay)
}

func clamp(year int, month time.Month, day int) (Date, error) {
	if day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: day %d out of range", ErrInvalidDate, day)
	}
	last, err := DaysInMonth(year, month)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: year, Month: month, Day: min(day, last)}, nil
}
