package availability

import "time"

// Timing is the timing shape of a provider record. It is either an
// InstantSpan or a DateSpan.
type Timing interface {
	timing()
}

// InstantSpan is a timed record with zone-aware start and end instants.
type InstantSpan struct {
	Start time.Time
	End   time.Time
}

// DateSpan is an all-day record expressed as dates only.
type DateSpan struct {
	Start Date
	End   Date
}

func (InstantSpan) timing() {}
func (DateSpan) timing()    {}

// RawInstance is one event or event occurrence as delivered by a provider.
type RawInstance struct {
	ID          string
	Summary     string
	Transparent bool
	Recurring   bool
	Timing      Timing
}

// RawEvent is a top-level provider event. For recurring events the fetch
// step fills Instances with the occurrences in the queried range; Err holds
// a failure to fetch them.
type RawEvent struct {
	RawInstance
	Instances []RawInstance
	Err       error
}

// CalendarEvents is the fetch result for one calendar. A non-nil Err marks
// the calendar as failed; its Events are ignored.
type CalendarEvents struct {
	CalendarID string
	Events     []RawEvent
	Err        error
}
