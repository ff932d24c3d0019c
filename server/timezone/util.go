// Package timezone provides timezone utilities for reminder owners.
//
// Reminder dates and times are wall-clock values in the owner's zone; this
// package resolves the zone names stored with each reminder and converts
// fire timestamps for display.
package timezone

import (
	"fmt"
	"time"

	// Embedded zone database so lookups do not depend on the host.
	_ "time/tzdata"
)

// Default location constants
var (
	// UTC is the coordinated universal time timezone
	UTC = time.UTC
)

// ParseTimezone parses an IANA timezone identifier (e.g., "Europe/Moscow").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == TimezoneUTC {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// LocationOrUTC resolves a stored zone name, falling back to UTC for names
// the zone database no longer knows.
func LocationOrUTC(tz string) *time.Location {
	loc, _ := ParseTimezone(tz)
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// ToUserTimezone converts a Unix timestamp to the user's timezone.
func ToUserTimezone(ts int64, tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.Unix(ts, 0).In(tz)
}

// FormatFireTime formats a reminder fire timestamp for display,
// e.g. "25.12.2024 18:30:00 MSK".
func FormatFireTime(ts int64, tz *time.Location) string {
	return ToUserTimezone(ts, tz).Format("02.01.2006 15:04:05 MST")
}

// Common timezone constants
const (
	// TimezoneUTC is the UTC timezone identifier
	TimezoneUTC = "UTC"

	// TimezoneEuropeMoscow is the Moscow Standard Time timezone
	TimezoneEuropeMoscow = "Europe/Moscow"
)
