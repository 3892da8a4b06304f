package availability

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with minute precision and no date.
// The zero value is midnight.
type TimeOfDay struct {
	minutes int
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return TimeOfDay{}, malformed("time of day", "hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return TimeOfDay{}, malformed("time of day", "minute %d out of range", minute)
	}
	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// ClockOf returns the wall-clock part of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay{minutes: t.Hour()*60 + t.Minute()}
}

func (t TimeOfDay) Hour() int   { return t.minutes / 60 }
func (t TimeOfDay) Minute() int { return t.minutes % 60 }

func (t TimeOfDay) Before(u TimeOfDay) bool { return t.minutes < u.minutes }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On combines the calendar date of day, in day's location, with t.
// Seconds are zeroed.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	ts, err := time.Parse("15:04", string(b))
	if err != nil {
		return malformed("time of day", "%q is not HH:MM", string(b))
	}
	*t = ClockOf(ts)
	return nil
}

// Date is a calendar date without time or location, as used by all-day
// provider records.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO-8601 date (2006-01-02).
func ParseDate(s string) (Date, error) {
	ts, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, malformed("date", "%q is not YYYY-MM-DD", s)
	}
	return DateOf(ts), nil
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
