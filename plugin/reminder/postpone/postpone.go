// Package postpone resolves postpone requests: ISO-8601 style periods added
// to the current instant, or explicit date/time overrides that replace the
// stored values outright.
package postpone

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
)

var periodPattern = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

const (
	// maxField bounds each period component.
	maxField = 10000
	// maxYear is the last year a stored date can carry.
	maxYear = 9999
)

// Period is a calendar period plus a clock duration, e.g. P1W or PT2H30M.
type Period struct {
	Years   int
	Months  int
	Weeks   int
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// ParsePeriod parses an ISO-8601 style period. Designators are
// case-insensitive. Empty and all-zero periods are rejected.
func ParsePeriod(s string) (Period, error) {
	token := strings.ToUpper(strings.TrimSpace(s))
	m := periodPattern.FindStringSubmatch(token)
	if m == nil || strings.HasSuffix(token, "T") {
		return Period{}, errors.WrongInputf("invalid period %q", s)
	}

	fields := make([]int, 7)
	for i := range fields {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > maxField {
			return Period{}, errors.WrongInputf("period %q is too long", s)
		}
		fields[i] = n
	}

	p := Period{
		Years:   fields[0],
		Months:  fields[1],
		Weeks:   fields[2],
		Days:    fields[3],
		Hours:   fields[4],
		Minutes: fields[5],
		Seconds: fields[6],
	}
	if p.IsZero() {
		return Period{}, errors.WrongInputf("empty period %q", s)
	}
	return p, nil
}

// IsZero reports whether the period has no length.
func (p Period) IsZero() bool {
	return p == Period{}
}

// AddTo returns t shifted by the period. Month and year components clamp
// the day-of-month like the monthly recurrence does.
func (p Period) AddTo(t time.Time) time.Time {
	if months := p.Years*12 + p.Months; months != 0 {
		t = temporal.AddMonths(t, months)
	}
	if days := p.Weeks*7 + p.Days; days != 0 {
		t = t.AddDate(0, 0, days)
	}
	return t.Add(time.Duration(p.Hours)*time.Hour +
		time.Duration(p.Minutes)*time.Minute +
		time.Duration(p.Seconds)*time.Second)
}

// String returns the canonical ISO form.
func (p Period) String() string {
	var b strings.Builder
	b.WriteByte('P')
	write := func(n int, unit byte) {
		if n != 0 {
			b.WriteString(strconv.Itoa(n))
			b.WriteByte(unit)
		}
	}
	write(p.Years, 'Y')
	write(p.Months, 'M')
	write(p.Weeks, 'W')
	write(p.Days, 'D')
	if p.Hours != 0 || p.Minutes != 0 || p.Seconds != 0 {
		b.WriteByte('T')
		write(p.Hours, 'H')
		write(p.Minutes, 'M')
		write(p.Seconds, 'S')
	}
	return b.String()
}

// After returns now shifted by p, truncated to whole seconds. The period is
// applied in now's location, so pass now in the owner's zone. A target
// outside the four-digit year range is WrongInput.
func After(now time.Time, p Period) (time.Time, error) {
	t := p.AddTo(now.Truncate(time.Second))
	if y := t.Year(); y < 1 || y > maxYear {
		return time.Time{}, errors.WrongInputf("postponed date is out of range: year %d", y)
	}
	return t, nil
}

// Override replaces the stored date and/or time outright. A nil field keeps
// the stored value.
type Override struct {
	Date *temporal.Date
	Time *temporal.Clock
}

// IsZero reports whether the override changes nothing.
func (o Override) IsZero() bool {
	return o.Date == nil && o.Time == nil
}

// Apply returns the stored date and time with the override applied.
func (o Override) Apply(date temporal.Date, clock temporal.Clock) (temporal.Date, temporal.Clock) {
	if o.Date != nil {
		date = *o.Date
	}
	if o.Time != nil {
		clock = *o.Time
	}
	return date, clock
}
