package backend

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/availability"
)

// Fetch queries every calendar for events between from and to, drops
// transparent events, and resolves recurring events into their instances.
// Failures are recorded per calendar or per event so one bad calendar does
// not hide the others.
func Fetch(ctx context.Context, be Backend, calendarIDs []string, from, to time.Time, log zerolog.Logger) []availability.CalendarEvents {
	out := make([]availability.CalendarEvents, 0, len(calendarIDs))
	for _, calID := range calendarIDs {
		out = append(out, fetchCalendar(ctx, be, EventFilter{CalendarID: calID, From: from, To: to}, log))
	}
	return out
}

func fetchCalendar(ctx context.Context, be Backend, f EventFilter, log zerolog.Logger) availability.CalendarEvents {
	res := availability.CalendarEvents{CalendarID: f.CalendarID}
	events, err := be.ListEvents(ctx, f)
	if err != nil {
		log.Warn().Err(err).Str("calendar", f.CalendarID).Msg("list events failed")
		res.Err = err
		return res
	}
	log.Debug().Str("calendar", f.CalendarID).Int("events", len(events)).Msg("events found")

	for _, ev := range events {
		if ev.Transparent {
			continue
		}
		raw := availability.RawEvent{RawInstance: ev}
		switch {
		case ev.Recurring:
			raw.Instances, raw.Err = be.ListInstances(ctx, f, ev.ID)
			if raw.Err != nil {
				log.Warn().Err(raw.Err).Str("calendar", f.CalendarID).Str("event", ev.ID).Msg("list instances failed")
			} else {
				log.Debug().Str("event", ev.ID).Int("instances", len(raw.Instances)).Msg("recurring instances found")
			}
		case ev.Timing == nil:
			// Listings may omit timing; ask for the full record.
			got, err := be.GetEvent(ctx, f.CalendarID, ev.ID)
			if err != nil {
				log.Warn().Err(err).Str("calendar", f.CalendarID).Str("event", ev.ID).Msg("get event failed")
				raw.Err = err
			} else if got == nil {
				continue
			} else {
				raw.RawInstance = *got
			}
		}
		res.Events = append(res.Events, raw)
	}
	return res
}
