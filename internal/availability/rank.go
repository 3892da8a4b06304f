package availability

import (
	"sort"

	"github.com/agis/meetme/internal/contract"
)

// RankCalendars returns a copy of cals ordered primary first, then selected,
// then by name. Ties keep their input order.
func RankCalendars(cals []contract.Calendar) []contract.Calendar {
	out := make([]contract.Calendar, len(cals))
	copy(out, cals)
	sort.SliceStable(out, func(i, j int) bool {
		return calendarLess(out[i], out[j])
	})
	return out
}

func calendarLess(a, b contract.Calendar) bool {
	if a.Primary != b.Primary {
		return a.Primary
	}
	if a.Selected != b.Selected {
		return a.Selected
	}
	return a.Name < b.Name
}
