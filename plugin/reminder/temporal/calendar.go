package temporal

import (
	"fmt"
	"time"

	"github.com/hrygo/remindbot/internal/errors"
)

// Date is a calendar date without a time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates and builds a date. 31.02.2024 and friends are rejected
// rather than normalized.
func NewDate(year int, month time.Month, day int) (Date, error) {
	if year < 1 || year > 9999 {
		return Date{}, errors.WrongInputf("year %d out of range", year)
	}
	if month < time.January || month > time.December {
		return Date{}, errors.WrongInputf("month %d out of range", month)
	}
	if day < 1 || day > LastDayOfMonth(year, month) {
		return Date{}, errors.WrongInputf("day %d does not exist in %04d-%02d", day, year, month)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseISODate parses the storage form "2006-01-02".
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, errors.Wrap(err, errors.ErrCodeWrongInput, fmt.Sprintf("invalid date %q", s))
	}
	return DateOf(t), nil
}

// ISO returns the storage form "2006-01-02".
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// String returns the user-facing form "02.01.2006".
func (d Date) String() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, d.Month, d.Year)
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Clock is a time-of-day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// Midnight is the default time-of-day of a reminder.
var Midnight = Clock{}

// NewClock validates and builds a time-of-day.
func NewClock(hour, minute, second int) (Clock, error) {
	if hour < 0 || hour > 23 {
		return Clock{}, errors.WrongInputf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return Clock{}, errors.WrongInputf("minute %d out of range", minute)
	}
	if second < 0 || second > 59 {
		return Clock{}, errors.WrongInputf("second %d out of range", second)
	}
	return Clock{Hour: hour, Minute: minute, Second: second}, nil
}

// ClockOf returns the time-of-day of t in t's location.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock{Hour: h, Minute: m, Second: s}
}

// ParseClock parses the storage form "15:04:05".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return Clock{}, errors.Wrap(err, errors.ErrCodeWrongInput, fmt.Sprintf("invalid time %q", s))
	}
	return ClockOf(t), nil
}

// String returns "15:04:05".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// Seconds returns the number of seconds since midnight.
func (c Clock) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Combine returns the instant of date d at clock c in loc.
func Combine(d Date, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// LastDayOfMonth returns the last day of the month.
func LastDayOfMonth(year int, month time.Month) int {
	// First day of next month minus 1 day
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month: 31 Jan + 1 month is 28/29 Feb, not 2/3 Mar as
// time.AddDate would produce.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + floorDiv(total, 12)
	tm := time.Month(total-floorDiv(total, 12)*12 + 1)
	if last := LastDayOfMonth(ty, tm); d > last {
		d = last
	}
	h, mi, s := t.Clock()
	return time.Date(ty, tm, d, h, mi, s, t.Nanosecond(), t.Location())
}

// ResolveShortDate infers the year of a day/month pair: the current year,
// rolled forward one year when that date is already behind today. The result
// is never in the past.
func ResolveShortDate(day int, month time.Month, today Date) (Date, error) {
	d, err := NewDate(today.Year, month, day)
	if err != nil {
		// 29.02 outside a leap year may still exist next year.
		if month == time.February && day == 29 {
			return nextLeapDay(today.Year)
		}
		return Date{}, err
	}
	if d.Before(today) {
		next, err := NewDate(today.Year+1, month, day)
		if err != nil {
			return nextLeapDay(today.Year + 1)
		}
		return next, nil
	}
	return d, nil
}

func nextLeapDay(from int) (Date, error) {
	for y := from; y < from+8; y++ {
		if d, err := NewDate(y, time.February, 29); err == nil {
			return d, nil
		}
	}
	return Date{}, errors.WrongInput("no leap day in range")
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
