package backend

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

type fakeBackend struct {
	events    map[string][]availability.RawInstance
	instances map[string][]availability.RawInstance
	full      map[string]*availability.RawInstance
	listErr   map[string]error
	instErr   map[string]error
	calls     []string
}

func (f *fakeBackend) Doctor(context.Context) ([]contract.DoctorCheck, error) { return nil, nil }

func (f *fakeBackend) ListCalendars(context.Context) ([]contract.Calendar, error) { return nil, nil }

func (f *fakeBackend) ListEvents(_ context.Context, ef EventFilter) ([]availability.RawInstance, error) {
	f.calls = append(f.calls, "list:"+ef.CalendarID)
	if err := f.listErr[ef.CalendarID]; err != nil {
		return nil, err
	}
	return f.events[ef.CalendarID], nil
}

func (f *fakeBackend) ListInstances(_ context.Context, ef EventFilter, eventID string) ([]availability.RawInstance, error) {
	f.calls = append(f.calls, "instances:"+eventID)
	if err := f.instErr[eventID]; err != nil {
		return nil, err
	}
	return f.instances[eventID], nil
}

func (f *fakeBackend) GetEvent(_ context.Context, calendarID, eventID string) (*availability.RawInstance, error) {
	f.calls = append(f.calls, "get:"+eventID)
	return f.full[eventID], nil
}

func span(start, end time.Time) availability.InstantSpan {
	return availability.InstantSpan{Start: start, End: end}
}

func TestFetchResolvesRecurringAndSkipsTransparent(t *testing.T) {
	day := time.Date(2013, 5, 13, 0, 0, 0, 0, time.UTC)
	fb := &fakeBackend{
		events: map[string][]availability.RawInstance{
			"work": {
				{ID: "standup", Recurring: true},
				{ID: "lunch", Transparent: true, Timing: span(day.Add(12*time.Hour), day.Add(13*time.Hour))},
				{ID: "review", Timing: span(day.Add(15*time.Hour), day.Add(16*time.Hour))},
			},
		},
		instances: map[string][]availability.RawInstance{
			"standup": {{ID: "standup_1", Timing: span(day.Add(10*time.Hour), day.Add(11*time.Hour))}},
		},
	}

	got := Fetch(context.Background(), fb, []string{"work"}, day, day.AddDate(0, 0, 1), zerolog.Nop())
	if len(got) != 1 || got[0].Err != nil {
		t.Fatalf("unexpected fetch result: %+v", got)
	}
	events := got[0].Events
	if len(events) != 2 || events[0].ID != "standup" || events[1].ID != "review" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(events[0].Instances) != 1 {
		t.Fatalf("expected one standup instance, got %d", len(events[0].Instances))
	}
	if calls := strings.Join(fb.calls, ","); calls != "list:work,instances:standup" {
		t.Fatalf("calls=%s", calls)
	}
}

func TestFetchRecordsPartialFailures(t *testing.T) {
	day := time.Date(2013, 5, 13, 0, 0, 0, 0, time.UTC)
	fb := &fakeBackend{
		events: map[string][]availability.RawInstance{
			"ok": {{ID: "series", Recurring: true}},
		},
		listErr: map[string]error{"denied": errors.New("403")},
		instErr: map[string]error{"series": errors.New("500")},
	}

	var buf bytes.Buffer
	got := Fetch(context.Background(), fb, []string{"denied", "ok"}, day, day.AddDate(0, 0, 1), zerolog.New(&buf))
	if len(got) != 2 {
		t.Fatalf("expected 2 calendars, got %d", len(got))
	}
	if got[0].CalendarID != "denied" || got[0].Err == nil || got[0].Err.Error() != "403" {
		t.Fatalf("unexpected denied result: %+v", got[0])
	}
	if got[1].Err != nil || len(got[1].Events) != 1 {
		t.Fatalf("unexpected ok result: %+v", got[1])
	}
	if err := got[1].Events[0].Err; err == nil || err.Error() != "500" {
		t.Fatalf("expected instance error 500, got %v", err)
	}
	if !strings.Contains(buf.String(), "list events failed") {
		t.Fatalf("expected warning in log: %q", buf.String())
	}
}

func TestFetchLooksUpUntimedListings(t *testing.T) {
	day := time.Date(2013, 5, 13, 0, 0, 0, 0, time.UTC)
	fb := &fakeBackend{
		events: map[string][]availability.RawInstance{
			"work": {{ID: "sparse"}, {ID: "gone"}},
		},
		full: map[string]*availability.RawInstance{
			"sparse": {ID: "sparse", Summary: "Sparse", Timing: span(day.Add(9*time.Hour), day.Add(10*time.Hour))},
		},
	}
	got := Fetch(context.Background(), fb, []string{"work"}, day, day.AddDate(0, 0, 1), zerolog.Nop())
	if len(got[0].Events) != 1 {
		t.Fatalf("expected the unresolvable listing to be dropped, got %+v", got[0].Events)
	}
	if ev := got[0].Events[0]; ev.Summary != "Sparse" || ev.Timing == nil {
		t.Fatalf("expected full record, got %+v", ev)
	}
}

func TestFetchFeedsCollection(t *testing.T) {
	loc := time.UTC
	r, err := availability.NewDateRange(time.Date(2013, 5, 12, 0, 0, 0, 0, loc), time.Date(2013, 5, 15, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatal(err)
	}
	nine, _ := availability.NewTimeOfDay(9, 0)
	six, _ := availability.NewTimeOfDay(18, 0)
	w, err := availability.NewTimeWindow(nine, six)
	if err != nil {
		t.Fatal(err)
	}

	day := time.Date(2013, 5, 13, 0, 0, 0, 0, loc)
	fb := &fakeBackend{
		events: map[string][]availability.RawInstance{
			"primary": {
				{ID: "late", Timing: span(day.Add(20*time.Hour), day.Add(21*time.Hour))},
				{ID: "standup", Recurring: true},
			},
		},
		instances: map[string][]availability.RawInstance{
			"standup": {{ID: "standup_20130513T100000Z", Timing: span(day.Add(10*time.Hour), day.Add(11*time.Hour))}},
		},
	}
	from, to := r.QueryBounds(w)
	fetched := Fetch(context.Background(), fb, []string{"primary"}, from, to, zerolog.Nop())
	busy, err := availability.CollectBusyInstances(fetched, r, w)
	if err != nil {
		t.Fatalf("CollectBusyInstances: %v", err)
	}
	if len(busy) != 1 || busy[0].EventID != "standup_20130513T100000Z" {
		t.Fatalf("unexpected busy instances: %+v", busy)
	}
}
