package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder/postpone"
	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
)

// Action is the edit requested by a callback command.
type Action string

const (
	ActionShow           Action = "show"
	ActionSetDate        Action = "set_date"
	ActionSetTime        Action = "set_time"
	ActionSetDateTime    Action = "set_date_time"
	ActionSetRules       Action = "set_rules"
	ActionToggleNotified Action = "toggle_notified"
	ActionPostpone       Action = "postpone"
)

// Callback command grammar:
//
//	s<id>                     show
//	s<id>d<DD.MM[.YYYY]>      set date
//	s<id>d<date>t<HH:MM[:SS]> set date and time
//	s<id>t<HH:MM[:SS]>        set time
//	s<id>r<rule>              toggle one rule
//	s<id>r<csv>               replace the set; any separator means replace
//	s<id>n                    toggle notified
//	s<id>P<period>            postpone by an ISO-8601 period
var (
	commandPattern = regexp.MustCompile(`^s(\d+)(.*)$`)
	datePattern    = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})(?:\.(\d{4}))?$`)
	clockPattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	rulesPattern   = regexp.MustCompile(`^[\d,]*$`)
)

// DateSpec is a date as typed by the user. Year is zero for the short form,
// whose year is inferred when the command is applied.
type DateSpec struct {
	Day   int
	Month time.Month
	Year  int
}

// Resolve returns the calendar date, inferring a missing year so the result
// is never before today.
func (d DateSpec) Resolve(today temporal.Date) (temporal.Date, error) {
	if d.Year == 0 {
		return temporal.ResolveShortDate(d.Day, d.Month, today)
	}
	return temporal.NewDate(d.Year, d.Month, d.Day)
}

// String returns "DD.MM" or "DD.MM.YYYY".
func (d DateSpec) String() string {
	if d.Year == 0 {
		return fmt.Sprintf("%02d.%02d", d.Day, d.Month)
	}
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, d.Month, d.Year)
}

// Command is a parsed callback command.
type Command struct {
	ID     int64
	Action Action
	Date   *DateSpec
	Time   *temporal.Clock
	Rules  recurrence.Set
	// Replace is set when the rule list is empty or has a separator, so
	// "r3,3" replaces the set with {3} while "r3" toggles rule 3.
	Replace bool
	Period  postpone.Period
}

// ParseCommand parses a callback command. Malformed commands are WrongInput.
func ParseCommand(s string) (*Command, error) {
	s = strings.TrimSpace(s)
	m := commandPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.WrongInputf("unknown command %q", s)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.WrongInputf("invalid reminder id in %q", s)
	}

	cmd := &Command{ID: id}
	rest := m[2]
	switch {
	case rest == "":
		cmd.Action = ActionShow

	case rest == "n":
		cmd.Action = ActionToggleNotified

	case strings.HasPrefix(rest, "d"):
		datePart, timePart, hasTime := strings.Cut(rest[1:], "t")
		date, err := parseDateSpec(datePart)
		if err != nil {
			return nil, err
		}
		cmd.Date = date
		cmd.Action = ActionSetDate
		if hasTime {
			clock, err := parseClock(timePart)
			if err != nil {
				return nil, err
			}
			cmd.Time = clock
			cmd.Action = ActionSetDateTime
		}

	case strings.HasPrefix(rest, "t"):
		clock, err := parseClock(rest[1:])
		if err != nil {
			return nil, err
		}
		cmd.Time = clock
		cmd.Action = ActionSetTime

	case strings.HasPrefix(rest, "r"):
		if !rulesPattern.MatchString(rest[1:]) {
			return nil, errors.WrongInputf("invalid repeat rules %q", rest[1:])
		}
		rules, err := recurrence.Parse(rest[1:])
		if err != nil {
			return nil, err
		}
		cmd.Rules = rules
		cmd.Replace = rest == "r" || strings.Contains(rest, ",")
		cmd.Action = ActionSetRules

	case strings.HasPrefix(rest, "P"):
		period, err := postpone.ParsePeriod(rest)
		if err != nil {
			return nil, err
		}
		cmd.Period = period
		cmd.Action = ActionPostpone

	default:
		return nil, errors.WrongInputf("unknown command %q", s)
	}
	return cmd, nil
}

// String encodes the command back into the callback grammar.
func (c *Command) String() string {
	base := "s" + strconv.FormatInt(c.ID, 10)
	switch c.Action {
	case ActionToggleNotified:
		return base + "n"
	case ActionSetDate:
		return base + "d" + c.Date.String()
	case ActionSetDateTime:
		return base + "d" + c.Date.String() + "t" + c.Time.String()
	case ActionSetTime:
		return base + "t" + c.Time.String()
	case ActionSetRules:
		encoded := c.Rules.Encode()
		if c.Replace && len(c.Rules) == 1 {
			encoded += ","
		}
		return base + "r" + encoded
	case ActionPostpone:
		return base + c.Period.String()
	default:
		return base
	}
}

func parseDateSpec(s string) (*DateSpec, error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.WrongInputf("invalid date %q", s)
	}
	spec := &DateSpec{Day: atoi(m[1]), Month: time.Month(atoi(m[2]))}
	if m[3] != "" {
		spec.Year = atoi(m[3])
		if _, err := temporal.NewDate(spec.Year, spec.Month, spec.Day); err != nil {
			return nil, err
		}
		return spec, nil
	}
	if spec.Month < time.January || spec.Month > time.December || spec.Day < 1 || spec.Day > 31 {
		return nil, errors.WrongInputf("invalid date %q", s)
	}
	return spec, nil
}

func parseClock(s string) (*temporal.Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.WrongInputf("invalid time %q", s)
	}
	second := 0
	if m[3] != "" {
		second = atoi(m[3])
	}
	c, err := temporal.NewClock(atoi(m[1]), atoi(m[2]), second)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
