// Package timeutil provides the calendar primitives the progression engine
// depends on: a civil Date type, day arithmetic, and an injectable Clock.
// Streak and daily-reward logic must never read the wall clock directly;
// everything goes through a Clock so tests can replay exact day sequences.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// FormatDate is the canonical date layout (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// ═══════════════════════════════════════════════════════════════════════════
// Date (civil day)
// ═══════════════════════════════════════════════════════════════════════════

// Date is a civil calendar day without a time-of-day or timezone component.
// Two completions on the same Date count as the same day regardless of the
// hours between them.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf truncates a time to its civil day in the time's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate creates a Date from components.
func NewDate(year int, month time.Month, day int) Date {
	// Normalize through time.Date so "February 30" becomes March 2.
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// IsZero reports whether the date is the zero value (no day recorded yet).
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of the date in the given location.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time(time.UTC).Before(other.Time(time.UTC))
}

// Equal reports whether two dates name the same day.
func (d Date) Equal(other Date) bool {
	return d == other
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// String returns the YYYY-MM-DD representation.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(FormatDate, value)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// DaysBetween returns the signed number of calendar days from a to b.
// Positive when b is after a. Computed on civil days, so a completion at
// 23:59 followed by one at 00:01 is exactly one day apart.
func DaysBetween(a, b Date) int {
	ta := a.Time(time.UTC)
	tb := b.Time(time.UTC)
	return int(tb.Sub(ta).Hours() / 24)
}

// IsSameDay checks if two times fall on the same civil day.
func IsSameDay(t1, t2 time.Time) bool {
	return DateOf(t1) == DateOf(t2)
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return DaysBetween(DateOf(t1), DateOf(t2)) == 1
}

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock supplies the current moment and the current civil day.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Today returns the current civil day in the clock's location.
	Today() Date
}

// SystemClock reads the real wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a SystemClock in the given location.
// A nil location means local time.
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return &SystemClock{loc: loc}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Today implements Clock.
func (c *SystemClock) Today() Date {
	return DateOf(c.Now())
}

// FixedClock is a settable clock for tests.
type FixedClock struct {
	current time.Time
}

// NewFixedClock creates a FixedClock pinned to the given time.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{current: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	return c.current
}

// Today implements Clock.
func (c *FixedClock) Today() Date {
	return DateOf(c.current)
}

// Set pins the clock to a new moment.
func (c *FixedClock) Set(t time.Time) {
	c.current = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// AdvanceDays moves the clock forward by whole days.
func (c *FixedClock) AdvanceDays(n int) {
	c.current = c.current.AddDate(0, 0, n)
}
