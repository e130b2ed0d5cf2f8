// Package timeutil provides the day-granularity time helpers the gamification
// rules rely on. All "what day is it" questions go through a single zone so the
// streak tracker and the daily aggregate agree on the day boundary.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultZone is Western Indonesia Time (UTC+7, no DST).
var DefaultZone = time.FixedZone("Asia/Jakarta", 7*60*60)

var (
	zoneMu sync.RWMutex
	zone   = DefaultZone
)

// Layouts used across the API and storage.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Zone returns the zone that defines day boundaries.
func Zone() *time.Location {
	zoneMu.RLock()
	defer zoneMu.RUnlock()
	return zone
}

// SetZone replaces the zone that defines day boundaries.
// A nil location resets to DefaultZone.
func SetZone(loc *time.Location) {
	zoneMu.Lock()
	defer zoneMu.Unlock()
	if loc == nil {
		loc = DefaultZone
	}
	zone = loc
}

// LoadZone resolves an IANA name, falling back to DefaultZone for an empty name.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return DefaultZone, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Now returns the current time in the configured zone.
func Now() time.Time {
	return time.Now().In(Zone())
}

// Date creates midnight of the given calendar day in the configured zone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Zone())
}

// StartOfDay returns 00:00:00 of t's calendar day in the configured zone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(Zone())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Zone())
}

// Today returns the start of the current day.
func Today() time.Time {
	return StartOfDay(Now())
}

// AsDate reinterprets a stored calendar date (e.g. a Postgres DATE scanned as
// UTC midnight) as midnight in the configured zone, keeping Y/M/D intact.
func AsDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Zone())
}

// DaysBetween returns the signed number of calendar days from a to b.
// Both values are compared by their calendar date only, so DST shifts and
// differing source zones never produce fractional days.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// IsSameDay reports whether a and b fall on the same calendar date.
func IsSameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, Zone())
}

// EndOfMonth returns the last calendar day of t's month (at midnight).
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return EndOfMonth(t).Day()
}

// ParseDate parses a YYYY-MM-DD string as midnight in the configured zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, Zone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// ParseMonth parses a YYYY-MM string into the first day of that month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, Zone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatMonth formats a date's month as YYYY-MM.
func FormatMonth(t time.Time) string {
	return t.Format(MonthLayout)
}

// ════════════════════════════════════════════════════════════════════════════
// CLOCK
// ════════════════════════════════════════════════════════════════════════════

// Clock is the "current date" source shared by the streak tracker and the
// daily aggregate.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the configured zone.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// TodayFrom returns the start of the current day according to c.
func TodayFrom(c Clock) time.Time {
	if c == nil {
		return Today()
	}
	return StartOfDay(c.Now())
}
