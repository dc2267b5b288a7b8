package booking

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrInvalidDateFormat = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTimeFormat = errors.New("time must be HH:MM")
)

// Date is a civil calendar date in the clinic's local calendar.
// It deliberately carries no timezone: dates coming in over the wire
// are parsed field by field and never pass through a timezone-aware
// constructor that could shift the calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, ErrInvalidDateFormat
	}
	y, err := strconv.Atoi(s[0:4])
	if err != nil {
		return Date{}, ErrInvalidDateFormat
	}
	m, err := strconv.Atoi(s[5:7])
	if err != nil {
		return Date{}, ErrInvalidDateFormat
	}
	d, err := strconv.Atoi(s[8:10])
	if err != nil {
		return Date{}, ErrInvalidDateFormat
	}
	if m < 1 || m > 12 {
		return Date{}, ErrInvalidDateFormat
	}
	// Round-trip through time.Date to catch day-of-month overflow
	// (e.g. 2026-02-30 normalizes to March).
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return Date{}, ErrInvalidDateFormat
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

// DateOf extracts the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Equal(o Date) bool {
	return d == o
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.midnightUTC().Weekday()
}

// ISOWeek returns the ISO 8601 year and week number (Monday is day 1).
func (d Date) ISOWeek() (year, week int) {
	return d.midnightUTC().ISOWeek()
}

// WeekBounds returns the Monday and Sunday of the ISO week containing d.
func (d Date) WeekBounds() (monday, sunday Date) {
	wd := int(d.Weekday())
	if wd == 0 { // Sunday
		wd = 7
	}
	monday = d.AddDays(1 - wd)
	sunday = monday.AddDays(6)
	return monday, sunday
}

// SameISOWeek reports whether a and b fall in the same ISO calendar week.
func SameISOWeek(a, b Date) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// DaysUntil returns the count of calendar days from d to o, negative
// when o is earlier than d.
func (d Date) DaysUntil(o Date) int {
	return int(o.midnightUTC().Sub(d.midnightUTC()) / (24 * time.Hour))
}

// midnightUTC is used only for calendar arithmetic on the civil fields;
// the UTC location never leaks into a stored or compared value.
func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// TimeOfDay is a local wall-clock time expressed as minutes after
// midnight. Appointment times are stored and compared in this form so
// no timestamp composition or timezone math happens in the core.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidTimeFormat
	}
	h, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, ErrInvalidTimeFormat
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, ErrInvalidTimeFormat
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, ErrInvalidTimeFormat
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MinuteOf returns the wall-clock minute of tm as a TimeOfDay.
func MinuteOf(tm time.Time) TimeOfDay {
	return TimeOfDay(tm.Hour()*60 + tm.Minute())
}

// Interval is a half-open [Start, End) wall-clock range within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}
