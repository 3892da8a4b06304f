package availability

import "github.com/agis/meetme/internal/contract"

// IsBusyWithinWindow reports whether inst overlaps w on any date of the
// instance's own span (begin date through end date). Touching a window edge
// counts as overlap. The whole-day sentinel window matches every instance.
func IsBusyWithinWindow(inst contract.BusyInstance, w TimeWindow) bool {
	if w.AllDay() {
		return true
	}
	return firstOverlap(inst, instanceWindows(inst, w)) >= 0
}

// IsBusyWithinRange is IsBusyWithinWindow restricted to the dates that are
// also inside r, so an instance spilling past the requested range only
// counts for the days the caller asked about.
func IsBusyWithinRange(inst contract.BusyInstance, w TimeWindow, r DateRange) bool {
	windows := instanceWindows(inst, w)
	if w.AllDay() {
		for i := range windows {
			day := midnight(windows[i].Begin)
			windows[i] = DailyWindow{Begin: day, End: nextDay(day)}
		}
	}
	kept := windows[:0]
	for _, dw := range windows {
		if r.Contains(dw.Begin) {
			kept = append(kept, dw)
		}
	}
	return firstOverlap(inst, kept) >= 0
}

func instanceWindows(inst contract.BusyInstance, w TimeWindow) []DailyWindow {
	return dailyWindows(inst.Begin, inst.End, w)
}

// firstOverlap returns the index of the first window inst overlaps, or -1.
func firstOverlap(inst contract.BusyInstance, windows []DailyWindow) int {
	for i, dw := range windows {
		if overlaps(inst, dw) {
			return i
		}
	}
	return -1
}

// overlaps is false only when the instance lies entirely before or entirely
// after dw, both endpoints compared strictly.
func overlaps(inst contract.BusyInstance, dw DailyWindow) bool {
	before := inst.Begin.Before(dw.Begin) && inst.End.Before(dw.Begin)
	after := inst.Begin.After(dw.End) && inst.End.After(dw.End)
	return !before && !after
}
