package app

import (
	"strings"
	"time"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
	"github.com/agis/meetme/internal/timeparse"
)

const (
	defaultBeginTime = "9am"
	defaultEndTime   = "5pm"
)

type requestFlags struct {
	Calendars   []string
	Dates       string
	From        string
	To          string
	Begin       string
	End         string
	Session     string
	SaveSession string
	ClipToRange bool
}

func (f requestFlags) session() sessionFile {
	return sessionFile{
		Dates:       strings.TrimSpace(f.Dates),
		From:        strings.TrimSpace(f.From),
		To:          strings.TrimSpace(f.To),
		Begin:       f.Begin,
		End:         f.End,
		Calendars:   splitCSV(strings.Join(f.Calendars, ",")),
		ClipToRange: f.ClipToRange,
	}
}

// buildRequest resolves a busy query from flags, then the session file,
// then config, then defaults. Calendars stay empty when none were named.
func buildRequest(f requestFlags, ro *globalOptions, now time.Time) (availability.Request, error) {
	top := f.session()
	if top.Dates != "" && (top.From != "" || top.To != "") {
		return availability.Request{}, usageErrorf("--dates and --from/--to are mutually exclusive")
	}
	s := sessionFile{Begin: ro.BeginTime, End: ro.EndTime}
	if f.Session != "" {
		saved, err := loadSession(f.Session)
		if err != nil {
			return availability.Request{}, err
		}
		s = s.overlay(saved)
	}
	s = s.overlay(top)

	loc := resolveLocation(ro.TZ)
	r, err := resolveDateRange(s, ro.HorizonDays, now, loc)
	if err != nil {
		return availability.Request{}, err
	}
	w, err := resolveTimeWindow(s.Begin, s.End)
	if err != nil {
		return availability.Request{}, err
	}
	return availability.Request{
		Range:       r,
		Window:      w,
		Calendars:   s.Calendars,
		ClipToRange: s.ClipToRange,
	}, nil
}

// resolveDateRange defaults to tomorrow through horizon days from today.
func resolveDateRange(s sessionFile, horizon int, now time.Time, loc *time.Location) (availability.DateRange, error) {
	var start, end time.Time
	var err error
	if s.Dates != "" {
		start, end, err = timeparse.ParseDateRange(s.Dates, loc)
		if err != nil {
			return availability.DateRange{}, err
		}
	} else {
		today, _ := timeparse.ParseDateTime("today", now, loc)
		start = today.AddDate(0, 0, 1)
		end = today.AddDate(0, 0, horizon)
		if s.From != "" {
			if start, err = timeparse.ParseDateTime(s.From, now, loc); err != nil {
				return availability.DateRange{}, err
			}
		}
		if s.To != "" {
			if end, err = timeparse.ParseDateTime(s.To, now, loc); err != nil {
				return availability.DateRange{}, err
			}
		} else if end.Before(start) {
			end = start
		}
	}
	start, end = start.In(loc), end.In(loc)
	if dateOnly(end).Before(dateOnly(start)) {
		return availability.DateRange{}, usageErrorf("end date %s is before start date %s", end.Format("01/02/2006"), start.Format("01/02/2006"))
	}
	return availability.NewDateRange(start, end)
}

func resolveTimeWindow(beginText, endText string) (availability.TimeWindow, error) {
	begin, err := timeparse.ParseClock(firstNonEmpty(beginText, defaultBeginTime))
	if err != nil {
		return availability.TimeWindow{}, err
	}
	end, err := timeparse.ParseClock(firstNonEmpty(endText, defaultEndTime))
	if err != nil {
		return availability.TimeWindow{}, err
	}
	if end.Before(begin) {
		return availability.TimeWindow{}, usageErrorf("begin time %s is after end time %s", begin, end)
	}
	return availability.NewTimeWindow(begin, end)
}

// defaultCalendars picks the provider-selected calendars in ranked order,
// falling back to the primary calendar.
func defaultCalendars(cals []contract.Calendar) ([]string, error) {
	var ids []string
	var primary string
	for _, c := range availability.RankCalendars(cals) {
		if c.Selected {
			ids = append(ids, c.ID)
		}
		if c.Primary && primary == "" {
			primary = c.ID
		}
	}
	if len(ids) == 0 && primary != "" {
		ids = []string{primary}
	}
	if len(ids) == 0 {
		return nil, usageErrorf("no selected or primary calendar found")
	}
	return ids, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
