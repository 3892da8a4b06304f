package availability

import "time"

// TimeWindow is the daily time-of-day window a user is interested in.
// Start == End means the whole day counts.
type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func NewTimeWindow(start, end TimeOfDay) (TimeWindow, error) {
	if end.Before(start) {
		return TimeWindow{}, malformed("time window", "end %s is before start %s", end, start)
	}
	return TimeWindow{Start: start, End: end}, nil
}

// AllDay reports whether w is the whole-day sentinel.
func (w TimeWindow) AllDay() bool { return w.Start == w.End }

func (w TimeWindow) String() string { return w.Start.String() + "-" + w.End.String() }

// DateRange is an inclusive range of calendar dates. Both ends are midnight
// in the same location.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange takes the calendar dates of start and end as written and
// places both at midnight in start's location.
func NewDateRange(start, end time.Time) (DateRange, error) {
	from := midnight(start)
	y, m, d := end.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, from.Location())
	if to.Before(from) {
		return DateRange{}, malformed("date range", "end %s is before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return DateRange{Start: from, End: to}, nil
}

func (r DateRange) Location() *time.Location {
	if r.Start.IsZero() {
		return time.UTC
	}
	return r.Start.Location()
}

// Days returns the number of dates in r.
func (r DateRange) Days() int {
	n := 0
	for day := r.Start; !day.After(r.End); day = nextDay(day) {
		n++
	}
	return n
}

// Contains reports whether the calendar date of t, viewed in r's location,
// falls inside r.
func (r DateRange) Contains(t time.Time) bool {
	day := midnight(t.In(r.Location()))
	return !day.Before(r.Start) && !day.After(r.End)
}

// QueryBounds returns the instant range used to ask a provider for events:
// the first date at the window start through the last date at the window
// end. For the whole-day sentinel the upper bound is the window start on
// the day after the last date.
func (r DateRange) QueryBounds(w TimeWindow) (time.Time, time.Time) {
	from := w.Start.On(r.Start)
	if w.AllDay() {
		return from, w.Start.On(nextDay(r.End))
	}
	return from, w.End.On(r.End)
}

// DailyWindow is the time window applied to one concrete date.
type DailyWindow struct {
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`
}

// ExpandWindow returns one DailyWindow per date in r, in date order.
func ExpandWindow(r DateRange, w TimeWindow) []DailyWindow {
	return dailyWindows(r.Start, r.End, w)
}

// dailyWindows walks the dates from first to last (inclusive, in first's
// location). The first date is always emitted.
func dailyWindows(first, last time.Time, w TimeWindow) []DailyWindow {
	day := midnight(first)
	stop := midnight(last.In(day.Location()))
	out := []DailyWindow{{Begin: w.Start.On(day), End: w.End.On(day)}}
	for day.Before(stop) {
		day = nextDay(day)
		out = append(out, DailyWindow{Begin: w.Start.On(day), End: w.End.On(day)})
	}
	return out
}
