package availability

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/contract"
)

type collectConfig struct {
	log  zerolog.Logger
	loc  *time.Location
	clip bool
}

// Option tunes CollectBusyInstances.
type Option func(*collectConfig)

// WithLogger traces per-instance decisions at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *collectConfig) { c.log = log }
}

// WithLocation sets the zone all-day records are normalized in. It defaults
// to the date range's location.
func WithLocation(loc *time.Location) Option {
	return func(c *collectConfig) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// ClipToRange only counts days inside the requested date range.
func ClipToRange(clip bool) Option {
	return func(c *collectConfig) { c.clip = clip }
}

// CollectBusyInstances normalizes every non-transparent instance in fetched
// and keeps those that are busy within w, in discovery order. Calendars and
// events whose fetch failed are skipped. A record with no timing shape
// aborts the whole collection.
func CollectBusyInstances(fetched []CalendarEvents, r DateRange, w TimeWindow, opts ...Option) ([]contract.BusyInstance, error) {
	cfg := collectConfig{log: zerolog.Nop(), loc: r.Location()}
	for _, opt := range opts {
		opt(&cfg)
	}

	busy := make([]contract.BusyInstance, 0)
	for _, cal := range fetched {
		if cal.Err != nil {
			cfg.log.Debug().Str("calendar", cal.CalendarID).Err(cal.Err).Msg("skipping calendar with failed fetch")
			continue
		}
		for _, ev := range cal.Events {
			if ev.Transparent {
				continue
			}
			if ev.Err != nil {
				cfg.log.Debug().Str("calendar", cal.CalendarID).Str("event", ev.ID).Err(ev.Err).Msg("skipping event with failed fetch")
				continue
			}
			candidates := []RawInstance{ev.RawInstance}
			if ev.Recurring {
				candidates = ev.Instances
			}
			for _, raw := range candidates {
				if raw.Transparent {
					continue
				}
				inst, err := Normalize(raw, cfg.loc)
				if err != nil {
					return nil, err
				}
				inst.CalendarID = cal.CalendarID
				if !cfg.matches(inst, r, w) {
					cfg.log.Debug().Str("summary", inst.Summary).Stringer("window", w).Msg("not a busy time")
					continue
				}
				cfg.log.Debug().Str("summary", inst.Summary).Stringer("window", w).Time("begin", inst.Begin).Msg("busy time")
				busy = append(busy, inst)
			}
		}
	}
	return busy, nil
}

func (c collectConfig) matches(inst contract.BusyInstance, r DateRange, w TimeWindow) bool {
	if c.clip {
		return IsBusyWithinRange(inst, w, r)
	}
	return IsBusyWithinWindow(inst, w)
}
