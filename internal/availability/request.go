package availability

import (
	"time"

	"github.com/agis/meetme/internal/contract"
)

// Request is everything one busy-time query needs. It replaces any
// per-user session state: callers build it once and pass it down.
type Request struct {
	Range       DateRange  `json:"date_range"`
	Window      TimeWindow `json:"time_window"`
	Calendars   []string   `json:"calendars"`
	ClipToRange bool       `json:"clip_to_range,omitempty"`
}

// QueryBounds is the instant range to ask the provider for.
func (r Request) QueryBounds() (time.Time, time.Time) {
	return r.Range.QueryBounds(r.Window)
}

func (r Request) Collect(fetched []CalendarEvents, opts ...Option) ([]contract.BusyInstance, error) {
	opts = append([]Option{ClipToRange(r.ClipToRange)}, opts...)
	return CollectBusyInstances(fetched, r.Range, r.Window, opts...)
}
