package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/agis/meetme/internal/availability"
)

// series is a stored event record before expansion. All-day records keep
// Start and End at local midnight and set AllDay.
type series struct {
	ID          string
	Summary     string
	Transparent bool
	HasTiming   bool
	AllDay      bool
	Start       time.Time
	End         time.Time
	RRule       string
	ExDates     []time.Time

	// RecurrenceID is set on overrides of a single occurrence.
	RecurrenceID time.Time
	overrides    []series
}

func (s series) recurring() bool { return s.RRule != "" }

// raw renders the record the way a provider listing would.
func (s series) raw() availability.RawInstance {
	inst := availability.RawInstance{
		ID:          s.ID,
		Summary:     s.Summary,
		Transparent: s.Transparent,
		Recurring:   s.recurring(),
	}
	if !s.HasTiming {
		return inst
	}
	if s.AllDay {
		inst.Timing = availability.DateSpan{Start: availability.DateOf(s.Start), End: availability.DateOf(s.End)}
	} else {
		inst.Timing = availability.InstantSpan{Start: s.Start, End: s.End}
	}
	return inst
}

// inRange reports whether the record, or any occurrence of it, touches
// [from, to]. Records without timing are kept so the pipeline can reject
// them.
func (s series) inRange(from, to time.Time) (bool, error) {
	if !s.HasTiming {
		return true, nil
	}
	if !s.recurring() {
		return !s.End.Before(from) && !s.Start.After(to), nil
	}
	occ, err := s.occurrences(from, to)
	if err != nil {
		return false, err
	}
	return len(occ) > 0, nil
}

// occurrences expands the rule into single instances touching [from, to].
// Excluded dates are dropped and overrides replace the occurrence they
// name.
func (s series) occurrences(from, to time.Time) ([]availability.RawInstance, error) {
	if !s.HasTiming {
		return nil, fmt.Errorf("event %s: recurring record has no start", s.ID)
	}
	rule, err := rrule.StrToRRule(strings.TrimPrefix(s.RRule, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("event %s: parse rrule: %w", s.ID, err)
	}
	rule.DTStart(s.Start)

	set := rrule.Set{}
	set.RRule(rule)
	for _, ex := range s.ExDates {
		set.ExDate(ex.In(s.Start.Location()))
	}

	overrides := make(map[int64]series, len(s.overrides))
	for _, o := range s.overrides {
		overrides[o.RecurrenceID.Unix()] = o
	}

	dur := s.End.Sub(s.Start)
	days := calendarDays(s.Start, s.End)
	var out []availability.RawInstance
	for _, start := range set.Between(from.Add(-dur), to, true) {
		occ := s
		occ.RRule = ""
		occ.Start = start
		if s.AllDay {
			// A fixed duration drifts by an hour across a DST change.
			occ.End = start.AddDate(0, 0, days)
		} else {
			occ.End = start.Add(dur)
		}
		if o, ok := overrides[start.Unix()]; ok {
			occ = o
		}
		if occ.HasTiming && (occ.End.Before(from) || occ.Start.After(to)) {
			continue
		}
		inst := occ.raw()
		inst.ID = instanceID(s.ID, start, s.AllDay)
		inst.Recurring = false
		out = append(out, inst)
	}
	return out, nil
}

// calendarDays counts the dates between a and b, ignoring the clock.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	d := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Sub(time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC))
	return int(d.Hours() / 24)
}

// instanceID names an occurrence after its series and original start.
func instanceID(seriesID string, start time.Time, allDay bool) string {
	if allDay {
		return seriesID + "_" + start.Format("20060102")
	}
	return seriesID + "_" + start.UTC().Format("20060102T150405Z")
}
