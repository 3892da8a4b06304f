package availability

import (
	"time"

	"github.com/agis/meetme/internal/contract"
)

var (
	allDayBegin = TimeOfDay{minutes: 0}
	allDayEnd   = TimeOfDay{minutes: 23*60 + 59}
)

// Normalize turns a raw provider record into a BusyInstance. Timed records
// are copied through; all-day records become [start 00:00, end 23:59] in
// loc (time.Local when nil). A record without a timing shape is rejected.
func Normalize(raw RawInstance, loc *time.Location) (contract.BusyInstance, error) {
	if loc == nil {
		loc = time.Local
	}
	inst := contract.BusyInstance{EventID: raw.ID, Summary: raw.Summary}
	switch t := raw.Timing.(type) {
	case InstantSpan:
		if t.Start.IsZero() || t.End.IsZero() {
			return contract.BusyInstance{}, malformed("event "+raw.ID, "timed record is missing start or end")
		}
		inst.Begin, inst.End = t.Start, t.End
	case DateSpan:
		if t.Start.IsZero() || t.End.IsZero() {
			return contract.BusyInstance{}, malformed("event "+raw.ID, "all-day record is missing start or end date")
		}
		inst.Begin = allDayBegin.On(t.Start.In(loc))
		inst.End = allDayEnd.On(t.End.In(loc))
	default:
		return contract.BusyInstance{}, malformed("event "+raw.ID, "record has neither start/end instants nor start/end dates")
	}
	return inst, nil
}
