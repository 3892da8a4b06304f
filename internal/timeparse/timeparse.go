package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agis/meetme/internal/availability"
)

// ParseError is returned for human-entered text that does not match any
// accepted format.
type ParseError struct {
	Kind     string
	Input    string
	Expected string
}

func (e *ParseError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("unsupported %s: %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("%s %q didn't match accepted formats %s", e.Kind, e.Input, e.Expected)
}

var clockLayouts = []string{"3pm", "3:04pm", "3:04 pm", "15:04"}

// ParseClock reads a time of day such as "9am", "1:30pm", "1:30 pm" or
// "13:30".
func ParseClock(input string) (availability.TimeOfDay, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	for _, layout := range clockLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return availability.ClockOf(ts), nil
		}
	}
	return availability.TimeOfDay{}, &ParseError{Kind: "time", Input: input, Expected: "13:30 or 1:30pm"}
}

// ParseDate reads a US-style MM/DD/YYYY date as midnight in loc.
func ParseDate(input string, loc *time.Location) (time.Time, error) {
	ts, err := time.ParseInLocation("01/02/2006", strings.TrimSpace(input), loc)
	if err != nil {
		return time.Time{}, &ParseError{Kind: "date", Input: input, Expected: "12/31/2001"}
	}
	return ts, nil
}

// ParseDateRange reads "MM/DD/YYYY - MM/DD/YYYY".
func ParseDateRange(input string, loc *time.Location) (time.Time, time.Time, error) {
	parts := strings.Fields(input)
	if len(parts) != 3 || parts[1] != "-" {
		return time.Time{}, time.Time{}, &ParseError{Kind: "date range", Input: input, Expected: "12/01/2001 - 12/31/2001"}
	}
	from, err := ParseDate(parts[0], loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseDate(parts[2], loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func ParseDateTime(input string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, &ParseError{Kind: "datetime", Input: input}
	}

	switch s {
	case "today":
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case "tomorrow":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, 1), nil
	case "yesterday":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, -1), nil
	}

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign := 1
		if strings.HasPrefix(s, "-") {
			sign = -1
		}
		raw := strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
		if strings.HasSuffix(raw, "d") {
			n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
			if err != nil {
				return time.Time{}, &ParseError{Kind: "relative day", Input: input, Expected: "+7d or -1d"}
			}
			v, _ := ParseDateTime("today", now, loc)
			return v.AddDate(0, 0, sign*n), nil
		}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, strings.TrimSpace(input), loc); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, &ParseError{Kind: "datetime", Input: input}
}
