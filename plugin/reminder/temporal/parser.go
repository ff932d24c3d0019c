// Package temporal resolves free-form reminder text into a calendar date and a
// time-of-day, stripping the consumed temporal phrases from the reminder body.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder/keyword"
)

// Boundaries. RE2 has no Unicode-aware \b, so each pattern consumes the
// neighbouring character and reports the phrase itself as capture group 1.
const (
	numLB  = `(?:^|[^\p{L}\p{N}.:])`
	numRB  = `(?:$|[^\p{L}\p{N}.:]|[.:](?:$|[^\p{N}]))`
	wordLB = `(?:^|[^\p{L}\p{N}])`
	wordRB = `(?:$|[^\p{L}\p{N}])`
)

// Patterns for explicit dates and times
var (
	fullTimePattern  = regexp.MustCompile(numLB + `((\d{1,2}):(\d{2}):(\d{2}))` + numRB)
	shortTimePattern = regexp.MustCompile(numLB + `((\d{1,2}):(\d{2}))` + numRB)
	fullDatePattern  = regexp.MustCompile(numLB + `((\d{1,2})\.(\d{1,2})\.(\d{4}))` + numRB)
	shortDatePattern = regexp.MustCompile(numLB + `((\d{1,2})\.(\d{1,2}))` + numRB)
)

// canonicalTimes maps time-of-day keywords to fixed clock times.
var canonicalTimes = map[keyword.TimeOfDay]Clock{
	keyword.Morning:   {Hour: 7},
	keyword.Noon:      {Hour: 12},
	keyword.Lunch:     {Hour: 13},
	keyword.Afternoon: {Hour: 15},
	keyword.Dinner:    {Hour: 18},
	keyword.Evening:   {Hour: 20},
	keyword.Night:     {Hour: 23},
}

// maxRelative bounds "in N units" magnitudes.
const maxRelative = 1 << 20

// Match pairs the exact substring consumed by a strategy with what it resolved.
type Match struct {
	Strategy string
	Span     string
	Date     *Date
	Time     *Clock
}

// Result is a fully resolved temporal expression.
type Result struct {
	Date    Date
	Time    Clock
	Text    string
	Matches []Match
}

// At returns the resolved instant in loc.
func (r *Result) At(loc *time.Location) time.Time {
	return Combine(r.Date, r.Time, loc)
}

// strategy is one (matcher, resolver) step of an axis. It reports ok=false
// when its pattern is absent and an error when the pattern is present but
// does not form a valid date or time.
type strategy struct {
	name  string
	match func(text string, now time.Time) (m Match, ok bool, err error)
}

// Parser resolves reminder text for one locale. It is immutable and safe for
// concurrent use.
type Parser struct {
	table *keyword.Table

	relMinutes  *regexp.Regexp
	relHours    *regexp.Regexp
	relDays     *regexp.Regexp
	timeKeyword *regexp.Regexp
	dateKeyword *regexp.Regexp

	timeStrategies []strategy
	dateStrategies []strategy
}

// NewParser compiles the locale-dependent patterns of table.
func NewParser(table *keyword.Table) *Parser {
	p := &Parser{
		table:       table,
		relMinutes:  relativePattern(table.In(), table.UnitWords(keyword.Minutes)),
		relHours:    relativePattern(table.In(), table.UnitWords(keyword.Hours)),
		relDays:     relativePattern(table.In(), table.UnitWords(keyword.Days)),
		timeKeyword: wordPattern(table.TimeOfDayWords()),
		dateKeyword: wordPattern(table.DateWords()),
	}

	p.timeStrategies = []strategy{
		{"full_time", p.fullTime},
		{"short_time", p.shortTime},
		{"in_minutes", p.inDuration("in_minutes", p.relMinutes, time.Minute)},
		{"in_hours", p.inDuration("in_hours", p.relHours, time.Hour)},
		{"time_keyword", p.keywordTime},
	}
	p.dateStrategies = []strategy{
		{"full_date", p.fullDate},
		{"short_date", p.shortDate},
		{"in_days", p.inDays},
		{"date_keyword", p.keywordDate},
	}
	return p
}

// Table returns the keyword table the parser was built from.
func (p *Parser) Table() *keyword.Table {
	return p.table
}

// Parse resolves text relative to now. now must already be in the owner's
// timezone. The date and time axes are resolved independently, each by the
// first strategy that matches; a relative minutes/hours phrase fixes both.
func (p *Parser) Parse(text string, now time.Time) (*Result, error) {
	now = now.Truncate(time.Second)

	var (
		matches []Match
		date    *Date
		clock   *Clock
	)

	for _, s := range p.timeStrategies {
		m, ok, err := s.match(text, now)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, m)
			clock, date = m.Time, m.Date
			break
		}
	}

	if date == nil {
		for _, s := range p.dateStrategies {
			m, ok, err := s.match(text, now)
			if err != nil {
				return nil, err
			}
			if ok {
				matches = append(matches, m)
				date = m.Date
				break
			}
		}
	}

	if len(matches) == 0 {
		return nil, errors.WrongInput("no date or time found")
	}

	if clock == nil {
		c := Midnight
		clock = &c
	}
	if date == nil {
		d := DateOf(now)
		if clock.Seconds() <= ClockOf(now).Seconds() {
			d = d.AddDays(1)
		}
		date = &d
	}

	body := text
	for _, m := range matches {
		body = strings.Replace(body, m.Span, "", 1)
	}
	body = strings.Join(strings.Fields(body), " ")
	if isTrivial(body) {
		body = ""
	}

	return &Result{Date: *date, Time: *clock, Text: body, Matches: matches}, nil
}

func (p *Parser) fullTime(text string, _ time.Time) (Match, bool, error) {
	loc := fullTimePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	c, err := NewClock(atoi(group(text, loc, 2)), atoi(group(text, loc, 3)), atoi(group(text, loc, 4)))
	if err != nil {
		return Match{}, false, err
	}
	return Match{Strategy: "full_time", Span: group(text, loc, 1), Time: &c}, true, nil
}

func (p *Parser) shortTime(text string, _ time.Time) (Match, bool, error) {
	loc := shortTimePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	c, err := NewClock(atoi(group(text, loc, 2)), atoi(group(text, loc, 3)), 0)
	if err != nil {
		return Match{}, false, err
	}
	return Match{Strategy: "short_time", Span: group(text, loc, 1), Time: &c}, true, nil
}

// inDuration builds a strategy for "in N <unit>" phrases that anchor both
// axes to now plus the duration.
func (p *Parser) inDuration(name string, re *regexp.Regexp, unit time.Duration) func(string, time.Time) (Match, bool, error) {
	return func(text string, now time.Time) (Match, bool, error) {
		span, n, ok, err := relative(re, text)
		if !ok || err != nil {
			return Match{}, false, err
		}
		at := now.Add(time.Duration(n) * unit)
		d, c := DateOf(at), ClockOf(at)
		return Match{Strategy: name, Span: span, Date: &d, Time: &c}, true, nil
	}
}

func (p *Parser) keywordTime(text string, _ time.Time) (Match, bool, error) {
	loc := p.timeKeyword.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	span := group(text, loc, 1)
	tod, ok := p.table.TimeOfDay(span)
	if !ok {
		return Match{}, false, nil
	}
	c := canonicalTimes[tod]
	return Match{Strategy: "time_keyword", Span: span, Time: &c}, true, nil
}

func (p *Parser) fullDate(text string, _ time.Time) (Match, bool, error) {
	loc := fullDatePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	d, err := NewDate(atoi(group(text, loc, 4)), time.Month(atoi(group(text, loc, 3))), atoi(group(text, loc, 2)))
	if err != nil {
		return Match{}, false, err
	}
	return Match{Strategy: "full_date", Span: group(text, loc, 1), Date: &d}, true, nil
}

func (p *Parser) shortDate(text string, now time.Time) (Match, bool, error) {
	loc := shortDatePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	d, err := ResolveShortDate(atoi(group(text, loc, 2)), time.Month(atoi(group(text, loc, 3))), DateOf(now))
	if err != nil {
		return Match{}, false, err
	}
	return Match{Strategy: "short_date", Span: group(text, loc, 1), Date: &d}, true, nil
}

func (p *Parser) inDays(text string, now time.Time) (Match, bool, error) {
	span, n, ok, err := relative(p.relDays, text)
	if !ok || err != nil {
		return Match{}, false, err
	}
	d := DateOf(now).AddDays(n)
	return Match{Strategy: "in_days", Span: span, Date: &d}, true, nil
}

func (p *Parser) keywordDate(text string, now time.Time) (Match, bool, error) {
	loc := p.dateKeyword.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false, nil
	}
	span := group(text, loc, 1)
	today := DateOf(now)

	if offset, ok := p.table.DayOffset(span); ok {
		d := today.AddDays(offset)
		return Match{Strategy: "date_keyword", Span: span, Date: &d}, true, nil
	}
	if wd, ok := p.table.Weekday(span); ok {
		d := NextWeekday(today, wd)
		return Match{Strategy: "date_keyword", Span: span, Date: &d}, true, nil
	}
	return Match{}, false, nil
}

// NextWeekday returns the first date strictly after from falling on wd. On
// the named weekday itself it resolves to the same weekday one week later.
func NextWeekday(from Date, wd time.Weekday) Date {
	diff := (int(wd) - int(from.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return from.AddDays(diff)
}

// relative extracts the magnitude of an "in N <unit>" phrase. Zero and
// negative magnitudes are treated as absent.
func relative(re *regexp.Regexp, text string) (span string, n int, ok bool, err error) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", 0, false, nil
	}
	n, convErr := strconv.Atoi(group(text, loc, 2))
	if convErr != nil || n <= 0 {
		return "", 0, false, nil
	}
	if n > maxRelative {
		return "", 0, false, errors.WrongInputf("%d is too far ahead", n)
	}
	return group(text, loc, 1), n, true, nil
}

func relativePattern(in, units []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordLB + `((?:` + alternation(in) + `)\s+(-?\d+)\s*(?:` + alternation(units) + `))` + wordRB)
}

func wordPattern(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordLB + `(` + alternation(words) + `)` + wordRB)
}

// alternation joins already length-sorted words; inner spaces match any run
// of whitespace.
func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	return strings.Join(quoted, "|")
}

func group(text string, loc []int, i int) string {
	return text[loc[2*i]:loc[2*i+1]]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// isTrivial reports whether a leftover body is a lone punctuation or symbol
// character such as "," or "-".
func isTrivial(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
