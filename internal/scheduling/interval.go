// Package scheduling holds the weekly timetable and seat rules of the academy:
// interval overlap, schedule conflict detection, enrollment and reservation
// admission, and the enrollment/reservation lifecycle. It performs no I/O.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the symbolic day a schedule entry repeats on.
type Weekday string

// Weekdays in calendar order starting on Monday.
const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Weekdays lists every valid weekday, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday normalises raw into a Weekday.
func ParseWeekday(raw string) (Weekday, error) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	if !day.Valid() {
		return "", fmt.Errorf("unknown weekday %q", raw)
	}
	return day, nil
}

// Valid reports whether d is one of the seven weekdays.
func (d Weekday) Valid() bool {
	return d.Index() >= 0
}

// Index returns the position of d in Weekdays or -1.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// WeekdayOf maps a calendar time to its Weekday.
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday starts on Sunday.
	return Weekdays[(int(t.Weekday())+6)%7]
}

// ClockTime is a wall-clock time expressed in minutes after midnight.
type ClockTime int

// ParseClock parses a 24h "HH:MM" value.
func ParseClock(raw string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// MustClock parses raw and panics on error. Intended for fixtures and tests.
func MustClock(raw string) ClockTime {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// TimeInterval is the half-open range [Start, End) repeating on Weekday.
type TimeInterval struct {
	Weekday Weekday
	Start   ClockTime
	End     ClockTime
}

// NewTimeInterval validates and builds an interval.
func NewTimeInterval(day Weekday, start, end ClockTime) (TimeInterval, error) {
	if !day.Valid() {
		return TimeInterval{}, ErrInvalidInterval.withMessage(fmt.Sprintf("unknown weekday %q", day))
	}
	if start >= end {
		return TimeInterval{}, ErrInvalidInterval
	}
	return TimeInterval{Weekday: day, Start: start, End: end}, nil
}

// ParseInterval builds an interval from its textual parts.
func ParseInterval(day, start, end string) (TimeInterval, error) {
	weekday, err := ParseWeekday(day)
	if err != nil {
		return TimeInterval{}, ErrInvalidInterval.withMessage(err.Error())
	}
	from, err := ParseClock(start)
	if err != nil {
		return TimeInterval{}, ErrInvalidInterval.withMessage(err.Error())
	}
	to, err := ParseClock(end)
	if err != nil {
		return TimeInterval{}, ErrInvalidInterval.withMessage(err.Error())
	}
	return NewTimeInterval(weekday, from, to)
}

// Overlaps reports whether both intervals share at least one minute.
// Touching endpoints do not overlap and different weekdays never do.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	if i.Weekday != other.Weekday {
		return false
	}
	return i.Start < other.End && other.Start < i.End
}

// Duration is the length of the interval.
func (i TimeInterval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

// String renders e.g. "MONDAY 08:00-10:00".
func (i TimeInterval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Weekday, i.Start, i.End)
}
