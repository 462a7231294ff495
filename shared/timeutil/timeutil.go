// Package timeutil is a bucket of day-oriented time helpers. The network
// runs on UTC calendar days and serializes instants as ISO-8601 strings
// with millisecond precision, so every package that touches timestamps
// goes through here rather than formatting ad hoc.
package timeutil

import (
	"time"

	"github.com/pkg/errors"
)

// DayFormat is the wire form of a day id, e.g. "2026-01-28". Day ids are
// always UTC calendar days.
const DayFormat = "2006-01-02"

// isoFormat pins millisecond precision so that an instant round-trips to
// the exact same string on every host.
const isoFormat = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}

// ISO formats t as an ISO-8601 UTC string with millisecond precision.
func ISO(t time.Time) string {
	return t.UTC().Format(isoFormat)
}

// ParseISO parses an ISO-8601 timestamp. Both millisecond and plain
// second precision are accepted.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "could not parse timestamp %q", s)
	}
	return t.UTC(), nil
}

// DayID returns the UTC calendar day of t in YYYY-MM-DD form.
func DayID(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// CurrentDayID returns the UTC calendar day of the wall clock.
func CurrentDayID() string {
	return DayID(Now())
}

// ValidDayID reports whether s is a well-formed YYYY-MM-DD day id.
func ValidDayID(s string) bool {
	if len(s) != len(DayFormat) {
		return false
	}
	_, err := time.Parse(DayFormat, s)
	return err == nil
}

// ParseDayID returns UTC midnight at the start of the given day id.
func ParseDayID(dayID string) (time.Time, error) {
	t, err := time.Parse(DayFormat, dayID)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "could not parse day id %q", dayID)
	}
	return t.UTC(), nil
}

// NoonUTC returns the pinned reference instant of a day, 12:00:00 UTC.
// Reward and lookback windows are evaluated against this instant so that
// recomputing a historical day yields the same answer regardless of the
// wall clock.
func NoonUTC(dayID string) (time.Time, error) {
	t, err := ParseDayID(dayID)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(12 * time.Hour), nil
}
