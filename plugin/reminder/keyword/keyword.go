// Package keyword provides the per-locale keyword tables consumed by the
// temporal parser: date keywords, weekday names, time-of-day keywords and
// duration unit names.
//
// Tables are built once at startup and never mutated afterwards, so a single
// *Tables value can be shared by every goroutine without locking.
package keyword

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimeOfDay identifies a time-of-day keyword slot.
type TimeOfDay int

const (
	Morning TimeOfDay = iota
	Noon
	Lunch
	Afternoon
	Dinner
	Evening
	Night
)

var timeOfDayNames = map[string]TimeOfDay{
	"morning":   Morning,
	"noon":      Noon,
	"lunch":     Lunch,
	"afternoon": Afternoon,
	"dinner":    Dinner,
	"evening":   Evening,
	"night":     Night,
}

// Unit identifies a duration unit.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
)

var unitNames = map[string]Unit{
	"seconds": Seconds,
	"minutes": Minutes,
	"hours":   Hours,
	"days":    Days,
}

var dateOffsetNames = map[string]int{
	"today":              0,
	"tomorrow":           1,
	"day_after_tomorrow": 2,
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// Table holds the keyword synonyms of a single locale.
// All lookups are case-insensitive and whitespace-insensitive.
type Table struct {
	Language   language.Tag
	CopyMarker string

	in         []string
	dayOffsets map[string]int
	weekdays   map[string]time.Weekday
	timesOfDay map[string]TimeOfDay
	units      map[string]Unit
	unitWords  map[Unit][]string
}

// Fold normalizes a keyword or a matched phrase for lookup.
func Fold(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// In returns the synonyms of the "in" preposition of relative phrases.
func (t *Table) In() []string {
	return byLengthDesc(t.in)
}

// DayOffset resolves a today/tomorrow/day-after-tomorrow keyword.
func (t *Table) DayOffset(word string) (int, bool) {
	v, ok := t.dayOffsets[Fold(word)]
	return v, ok
}

// Weekday resolves a weekday keyword.
func (t *Table) Weekday(word string) (time.Weekday, bool) {
	v, ok := t.weekdays[Fold(word)]
	return v, ok
}

// TimeOfDay resolves a time-of-day keyword.
func (t *Table) TimeOfDay(word string) (TimeOfDay, bool) {
	v, ok := t.timesOfDay[Fold(word)]
	return v, ok
}

// Unit resolves a duration unit name.
func (t *Table) Unit(word string) (Unit, bool) {
	v, ok := t.units[Fold(word)]
	return v, ok
}

// DateWords returns every date keyword and weekday name, longest first.
func (t *Table) DateWords() []string {
	words := make([]string, 0, len(t.dayOffsets)+len(t.weekdays))
	for w := range t.dayOffsets {
		words = append(words, w)
	}
	for w := range t.weekdays {
		words = append(words, w)
	}
	return byLengthDesc(words)
}

// TimeOfDayWords returns every time-of-day keyword, longest first.
func (t *Table) TimeOfDayWords() []string {
	words := make([]string, 0, len(t.timesOfDay))
	for w := range t.timesOfDay {
		words = append(words, w)
	}
	return byLengthDesc(words)
}

// UnitWords returns the names of a unit, longest first.
func (t *Table) UnitWords(u Unit) []string {
	return byLengthDesc(t.unitWords[u])
}

// byLengthDesc returns a sorted copy so that regexp alternations prefer the
// longest synonym ("day after tomorrow" before "tomorrow").
func byLengthDesc(words []string) []string {
	out := append([]string(nil), words...)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}
