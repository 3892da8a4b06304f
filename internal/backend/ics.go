package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

const icsKind = "ics#calendar"

// ICSBackend reads calendars from a directory of .ics files. Each file is
// one calendar, identified by its base name.
type ICSBackend struct {
	dir     string
	primary string
	loc     *time.Location
	log     zerolog.Logger
}

func NewICSBackend(dir, primary string, loc *time.Location, log zerolog.Logger) *ICSBackend {
	if loc == nil {
		loc = time.Local
	}
	return &ICSBackend{dir: dir, primary: primary, loc: loc, log: log}
}

func (b *ICSBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	if b.dir == "" {
		return []contract.DoctorCheck{{
			Name:    "ics_dir",
			Status:  "fail",
			Message: "no ICS directory configured",
			Hint:    "Set ics.dir in config or MEETME_ICS_DIR",
		}}, nil
	}
	info, err := os.Stat(b.dir)
	if err != nil || !info.IsDir() {
		return []contract.DoctorCheck{{
			Name:    "ics_dir",
			Status:  "fail",
			Message: fmt.Sprintf("%s is not a readable directory", b.dir),
			Hint:    "Point ics.dir at a directory of exported .ics files",
		}}, nil
	}
	checks := []contract.DoctorCheck{{Name: "ics_dir", Status: "ok", Message: b.dir}}

	paths, err := b.files()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return append(checks, contract.DoctorCheck{
			Name:    "ics_files",
			Status:  "warn",
			Message: "directory has no .ics files",
		}), nil
	}
	var total uint64
	var broken []string
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil {
			total += uint64(fi.Size())
		}
		if _, err := b.parseFile(p); err != nil {
			broken = append(broken, filepath.Base(p))
		}
	}
	checks = append(checks, contract.DoctorCheck{
		Name:    "ics_files",
		Status:  "ok",
		Message: fmt.Sprintf("%d calendars, %s", len(paths), humanize.Bytes(total)),
	})
	if len(broken) > 0 {
		checks = append(checks, contract.DoctorCheck{
			Name:    "ics_parse",
			Status:  "fail",
			Message: "unparseable: " + strings.Join(broken, ", "),
		})
	}
	if b.primary != "" {
		if _, err := os.Stat(b.path(b.primary)); err != nil {
			checks = append(checks, contract.DoctorCheck{
				Name:    "ics_primary",
				Status:  "warn",
				Message: fmt.Sprintf("primary calendar %q has no file", b.primary),
			})
		}
	}
	return checks, nil
}

func (b *ICSBackend) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	paths, err := b.files()
	if err != nil {
		return nil, err
	}
	out := make([]contract.Calendar, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		cal, err := b.parseFile(p)
		if err != nil {
			b.log.Warn().Err(err).Str("file", p).Msg("skipping unparseable calendar")
			continue
		}
		name := calendarName(cal)
		if name == "" {
			name = id
		}
		out = append(out, contract.Calendar{
			ID:       id,
			Name:     name,
			Kind:     icsKind,
			Primary:  id == b.primary,
			Selected: true,
		})
	}
	return out, nil
}

func (b *ICSBackend) ListEvents(ctx context.Context, f EventFilter) ([]availability.RawInstance, error) {
	records, err := b.load(f.CalendarID)
	if err != nil {
		return nil, err
	}
	var out []availability.RawInstance
	for _, s := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := s.inRange(f.From, f.To)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, s.raw())
		}
	}
	return out, nil
}

func (b *ICSBackend) ListInstances(ctx context.Context, f EventFilter, eventID string) ([]availability.RawInstance, error) {
	s, err := b.find(f.CalendarID, eventID)
	if err != nil {
		return nil, err
	}
	if !s.recurring() {
		return []availability.RawInstance{s.raw()}, nil
	}
	return s.occurrences(f.From, f.To)
}

func (b *ICSBackend) GetEvent(ctx context.Context, calendarID, eventID string) (*availability.RawInstance, error) {
	s, err := b.find(calendarID, eventID)
	if err != nil {
		return nil, err
	}
	raw := s.raw()
	return &raw, nil
}

func (b *ICSBackend) find(calendarID, eventID string) (series, error) {
	records, err := b.load(calendarID)
	if err != nil {
		return series{}, err
	}
	for _, s := range records {
		if s.ID == eventID {
			return s, nil
		}
	}
	return series{}, fmt.Errorf("event %s in %s: %w", eventID, calendarID, ErrNotFound)
}

func (b *ICSBackend) path(calendarID string) string {
	return filepath.Join(b.dir, calendarID+".ics")
}

func (b *ICSBackend) files() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(b.dir, "*.ics"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (b *ICSBackend) parseFile(path string) (*ical.Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ical.ParseCalendar(f)
}

// load parses one calendar file into series records, folding overrides
// into their parent series.
func (b *ICSBackend) load(calendarID string) ([]series, error) {
	cal, err := b.parseFile(b.path(calendarID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("calendar %s: %w", calendarID, ErrNotFound)
		}
		return nil, fmt.Errorf("calendar %s: %w", calendarID, err)
	}

	var records []series
	var overrides []series
	for i, ve := range cal.Events() {
		s, err := b.parseVEvent(calendarID, i, ve)
		if err != nil {
			b.log.Warn().Err(err).Str("calendar", calendarID).Int("index", i).Msg("skipping unreadable event")
			continue
		}
		if !s.RecurrenceID.IsZero() {
			overrides = append(overrides, s)
			continue
		}
		records = append(records, s)
	}
	for _, o := range overrides {
		for i := range records {
			if records[i].ID == o.ID {
				records[i].overrides = append(records[i].overrides, o)
			}
		}
	}
	return records, nil
}

func (b *ICSBackend) parseVEvent(calendarID string, index int, ve *ical.VEvent) (series, error) {
	var s series
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		s.Summary = p.Value
	}
	if p := ve.GetProperty("TRANSP"); p != nil {
		s.Transparent = strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT")
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil && p.Value != "" {
		start, allDay, err := b.parseValue(p.Value, p.ICalParameters)
		if err != nil {
			return s, fmt.Errorf("DTSTART: %w", err)
		}
		s.HasTiming = true
		s.AllDay = allDay
		s.Start = start
		s.End = start
		if allDay {
			s.End = start.AddDate(0, 0, 1)
		}
		if e := ve.GetProperty(ical.ComponentPropertyDtEnd); e != nil && e.Value != "" {
			end, _, err := b.parseValue(e.Value, e.ICalParameters)
			if err != nil {
				return s, fmt.Errorf("DTEND: %w", err)
			}
			s.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value != "" {
		s.ID = p.Value
	} else {
		seed := fmt.Sprintf("%s/%d/%s/%s", calendarID, index, s.Summary, s.Start.Format(time.RFC3339))
		s.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		s.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if ex, _, err := b.parseValue(part, p.ICalParameters); err == nil {
				s.ExDates = append(s.ExDates, ex)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil && p.Value != "" {
		rid, _, err := b.parseValue(p.Value, p.ICalParameters)
		if err != nil {
			return s, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		s.RecurrenceID = rid
	}
	return s, nil
}

// parseValue reads an ICS DATE or DATE-TIME honoring VALUE and TZID.
// Floating times are read in the backend location.
func (b *ICSBackend) parseValue(v string, params map[string][]string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	loc := b.loc
	if tz := firstParam(params, "TZID"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	if strings.EqualFold(firstParam(params, "VALUE"), "DATE") || !strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102", v, b.loc)
		return t, true, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}
	t, err := time.ParseInLocation("20060102T150405", v, loc)
	return t, false, err
}

func firstParam(params map[string][]string, key string) string {
	if vs := params[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func calendarName(cal *ical.Calendar) string {
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == "X-WR-CALNAME" {
			return p.Value
		}
	}
	return ""
}
