// Package recurrence encodes reminder repeat rules and computes their next
// occurrences.
//
// A rule set is stored as an order-preserving comma-separated list of rule
// ordinals, e.g. "10,14,16" for Monday, Friday and Daily.
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
)

// Rule is a closed enumeration of repeat rules. The numeric value is the
// ordinal used in storage and in callback commands and must never change.
type Rule int

const (
	EveryMinute Rule = iota
	Every5Minutes
	Every10Minutes
	Every15Minutes
	Every30Minutes
	EveryHour
	Every2Hours
	Every3Hours
	Every6Hours
	Every12Hours
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	Daily
	Weekly
	Monthly
	Yearly

	ruleCount
)

// Kind groups rules by how they advance.
type Kind int

const (
	// Interval rules add a fixed duration regardless of wall-clock alignment.
	Interval Kind = iota
	// Weekday rules move to the next selected weekday at the same time-of-day.
	Weekday
	// Calendar rules add one calendar unit.
	Calendar
)

type ruleInfo struct {
	name     string
	kind     Kind
	interval time.Duration
	weekday  time.Weekday
	days     int
	months   int
}

// rules is indexed by ordinal.
var rules = [ruleCount]ruleInfo{
	EveryMinute:    {name: "every_minute", kind: Interval, interval: time.Minute},
	Every5Minutes:  {name: "every_5_minutes", kind: Interval, interval: 5 * time.Minute},
	Every10Minutes: {name: "every_10_minutes", kind: Interval, interval: 10 * time.Minute},
	Every15Minutes: {name: "every_15_minutes", kind: Interval, interval: 15 * time.Minute},
	Every30Minutes: {name: "every_30_minutes", kind: Interval, interval: 30 * time.Minute},
	EveryHour:      {name: "every_hour", kind: Interval, interval: time.Hour},
	Every2Hours:    {name: "every_2_hours", kind: Interval, interval: 2 * time.Hour},
	Every3Hours:    {name: "every_3_hours", kind: Interval, interval: 3 * time.Hour},
	Every6Hours:    {name: "every_6_hours", kind: Interval, interval: 6 * time.Hour},
	Every12Hours:   {name: "every_12_hours", kind: Interval, interval: 12 * time.Hour},
	Monday:         {name: "monday", kind: Weekday, weekday: time.Monday},
	Tuesday:        {name: "tuesday", kind: Weekday, weekday: time.Tuesday},
	Wednesday:      {name: "wednesday", kind: Weekday, weekday: time.Wednesday},
	Thursday:       {name: "thursday", kind: Weekday, weekday: time.Thursday},
	Friday:         {name: "friday", kind: Weekday, weekday: time.Friday},
	Saturday:       {name: "saturday", kind: Weekday, weekday: time.Saturday},
	Sunday:         {name: "sunday", kind: Weekday, weekday: time.Sunday},
	Daily:          {name: "daily", kind: Calendar, days: 1},
	Weekly:         {name: "weekly", kind: Calendar, days: 7},
	Monthly:        {name: "monthly", kind: Calendar, months: 1},
	Yearly:         {name: "yearly", kind: Calendar, months: 12},
}

// Rules returns every rule in ordinal order.
func Rules() []Rule {
	out := make([]Rule, ruleCount)
	for i := range out {
		out[i] = Rule(i)
	}
	return out
}

// Valid reports whether r belongs to the enumeration.
func (r Rule) Valid() bool {
	return r >= 0 && r < ruleCount
}

// Kind returns how the rule advances.
func (r Rule) Kind() Kind {
	return rules[r].kind
}

// String returns the stable rule name, e.g. "every_15_minutes".
func (r Rule) String() string {
	if !r.Valid() {
		return "rule(" + strconv.Itoa(int(r)) + ")"
	}
	return rules[r].name
}

// step advances t by exactly one occurrence of r.
func (r Rule) step(t time.Time) time.Time {
	info := rules[r]
	switch info.kind {
	case Interval:
		return t.Add(info.interval)
	case Weekday:
		d := temporal.NextWeekday(temporal.DateOf(t), info.weekday)
		return temporal.Combine(d, temporal.ClockOf(t), t.Location())
	default:
		if info.months > 0 {
			return temporal.AddMonths(t, info.months)
		}
		return t.AddDate(0, 0, info.days)
	}
}

// firstAfter returns the first occurrence of r reached from anchor that is
// strictly after both anchor and after.
func (r Rule) firstAfter(anchor, after time.Time) time.Time {
	info := rules[r]
	if info.kind == Interval && after.After(anchor) {
		k := after.Sub(anchor)/info.interval + 1
		return anchor.Add(k * info.interval)
	}
	next := r.step(anchor)
	for !next.After(after) {
		next = r.step(next)
	}
	return next
}

// Set is an ordered collection of rules. The zero value is a one-shot
// reminder.
type Set []Rule

// Decode parses a stored rule list. Empty elements and trailing separators are
// skipped. An ordinal outside the enumeration means the stored data is
// corrupt and is reported as an internal error.
func Decode(s string) (Set, error) {
	set, bad, err := decode(s)
	if err != nil {
		return nil, errors.Internal("corrupt repeat rules "+strconv.Quote(s), err)
	}
	if bad != nil {
		return nil, errors.Internal("unknown repeat rule "+bad.String(), nil)
	}
	return set, nil
}

// Parse is Decode for user-supplied rule lists: problems are the user's.
func Parse(s string) (Set, error) {
	set, bad, err := decode(s)
	if err != nil {
		return nil, errors.WrongInputf("invalid repeat rules %q", s)
	}
	if bad != nil {
		return nil, errors.WrongInputf("unknown repeat rule %d", int(*bad))
	}
	return set, nil
}

func decode(s string) (Set, *Rule, error) {
	var set Set
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, err
		}
		r := Rule(n)
		if !r.Valid() {
			return nil, &r, nil
		}
		set = append(set, r)
	}
	return set.normalize(), nil, nil
}

// Encode returns the storage form, dropping duplicates while keeping the
// first occurrence of each rule.
func (s Set) Encode() string {
	norm := s.normalize()
	parts := make([]string, len(norm))
	for i, r := range norm {
		parts[i] = strconv.Itoa(int(r))
	}
	return strings.Join(parts, ",")
}

// Contains reports whether r is in the set.
func (s Set) Contains(r Rule) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

// Toggle returns a new set with r removed if present, or appended otherwise.
// Toggling the same rule twice yields the original set.
func (s Set) Toggle(r Rule) Set {
	out := make(Set, 0, len(s)+1)
	found := false
	for _, x := range s.normalize() {
		if x == r {
			found = true
			continue
		}
		out = append(out, x)
	}
	if !found {
		out = append(out, r)
	}
	return out
}

// IsEmpty reports whether the set has no rules, i.e. the reminder is one-shot.
func (s Set) IsEmpty() bool {
	return len(s) == 0
}

// Names returns the rule names in set order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for _, r := range s.normalize() {
		names = append(names, r.String())
	}
	return names
}

func (s Set) normalize() Set {
	if len(s) == 0 {
		return nil
	}
	seen := make(map[Rule]bool, len(s))
	out := make(Set, 0, len(s))
	for _, r := range s {
		if seen[r] || !r.Valid() {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Next returns the earliest occurrence after from across every rule of the
// set. ok is false for an empty set.
func Next(s Set, from time.Time) (time.Time, bool) {
	return NextAfter(s, from, from)
}

// NextAfter returns the earliest occurrence reachable from from that is
// strictly after after. It is used to rearm a reminder that fired late,
// skipping the occurrences missed in between.
func NextAfter(s Set, from, after time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, r := range s.normalize() {
		next := r.firstAfter(from, after)
		if !found || next.Before(best) {
			best, found = next, true
		}
	}
	return best, found
}
