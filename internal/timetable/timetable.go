// Package timetable holds the calendar arithmetic shared by the batch jobs.
// Every function takes the business location explicitly; nothing here reads
// the process-local timezone.
package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidClock   = errors.New("invalid clock time")
	ErrInvalidWeekday = errors.New("invalid weekday")
)

// DefaultSessionLength applies when a class has no explicit start/end time.
const DefaultSessionLength = time.Hour

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts a case-insensitive English weekday name.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	return wd, nil
}

// Clock is a local wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Before reports whether c is earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

// StartOfDay returns local midnight of the calendar day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns [start, end) of the local calendar day containing t.
// The window is 23 or 25 hours long on DST transition days.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := StartOfDay(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// PreviousDayWindow returns [start, end) of the local calendar day before t.
func PreviousDayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	end := StartOfDay(t, loc)
	return end.AddDate(0, 0, -1), end
}

// At combines the calendar date of day (in loc) with a wall-clock time.
func At(day time.Time, c Clock, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// FirstSessionDate returns local midnight of the first date on or after the
// term start that falls on weekday. The offset is 0–6 days and never wraps
// backwards.
func FirstSessionDate(termStart time.Time, weekday time.Weekday, loc *time.Location) time.Time {
	start := StartOfDay(termStart, loc)
	offset := (int(weekday) - int(start.Weekday()) + 7) % 7
	return start.AddDate(0, 0, offset)
}

// WeekSessionDate returns the date of week (1-based) given the first session
// date, at wall-clock time c. Calendar arithmetic keeps the wall clock across
// DST changes.
func WeekSessionDate(first time.Time, week int, c Clock, loc *time.Location) time.Time {
	return At(first.In(loc).AddDate(0, 0, (week-1)*7), c, loc)
}

// DaysUntil counts local calendar days from the day of from to the day of to.
// Negative when to is in the past.
func DaysUntil(from, to time.Time, loc *time.Location) int {
	a := StartOfDay(from, loc)
	b := StartOfDay(to, loc)
	// Dates are compared in UTC to keep DST hours out of the division.
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// FormatClock renders t in loc as "6:00 pm".
func FormatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 pm")
}

// FormatDate renders t in loc as "2 Jan 2006".
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2 Jan 2006")
}
