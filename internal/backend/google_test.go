package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agis/meetme/internal/availability"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newGoogleFixture(t *testing.T) *GoogleBackend {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": "primary", "summary": "me@example.com", "kind": "calendar#calendarListEntry", "primary": true, "selected": true},
				{"id": "team", "summary": "Team", "summaryOverride": "My team"},
			},
		})
	})
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timeMin") == "" || r.URL.Query().Get("timeMax") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "missing bounds"}})
			return
		}
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"nextPageToken": "p2",
				"items": []map[string]any{{
					"id":         "standup",
					"summary":    "Standup",
					"recurrence": []string{"RRULE:FREQ=DAILY"},
					"start":      map[string]any{"dateTime": "2013-05-13T10:00:00Z"},
					"end":        map[string]any{"dateTime": "2013-05-13T10:15:00Z"},
				}},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id":           "offsite",
				"summary":      "Offsite",
				"transparency": "transparent",
				"start":        map[string]any{"date": "2013-05-14"},
				"end":          map[string]any{"date": "2013-05-15"},
			}},
		})
	})
	mux.HandleFunc("/calendars/primary/events/standup/instances", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id":    "standup_20130513T100000Z",
				"start": map[string]any{"dateTime": "2013-05-13T10:00:00Z"},
				"end":   map[string]any{"dateTime": "2013-05-13T10:15:00Z"},
			}},
		})
	})
	mux.HandleFunc("/calendars/primary/events/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
	})
	mux.HandleFunc("/calendars/down/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "backend error"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("calendar.NewService: %v", err)
	}
	return NewGoogleBackendWithService(svc, zerolog.Nop())
}

func TestGoogleListCalendars(t *testing.T) {
	cals, err := newGoogleFixture(t).ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("ListCalendars: %v", err)
	}
	if len(cals) != 2 {
		t.Fatalf("expected 2 calendars, got %d", len(cals))
	}
	if !cals[0].Primary || cals[0].Kind != "calendar#calendarListEntry" {
		t.Fatalf("unexpected primary calendar: %+v", cals[0])
	}
	if cals[1].Name != "My team" || cals[1].Selected {
		t.Fatalf("expected summary override and unselected: %+v", cals[1])
	}
}

func TestGoogleListEventsFollowsPages(t *testing.T) {
	be := newGoogleFixture(t)
	f := EventFilter{
		CalendarID: "primary",
		From:       time.Date(2013, 5, 12, 9, 0, 0, 0, time.UTC),
		To:         time.Date(2013, 5, 15, 18, 0, 0, 0, time.UTC),
	}
	events, err := be.ListEvents(context.Background(), f)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 || !events[0].Recurring || !events[1].Transparent {
		t.Fatalf("unexpected events: %+v", events)
	}
	want := availability.DateSpan{
		Start: availability.Date{Year: 2013, Month: time.May, Day: 14},
		End:   availability.Date{Year: 2013, Month: time.May, Day: 15},
	}
	if got, ok := events[1].Timing.(availability.DateSpan); !ok || got != want {
		t.Fatalf("timing=%#v want=%#v", events[1].Timing, want)
	}

	inst, err := be.ListInstances(context.Background(), f, "standup")
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	if len(inst) != 1 || inst[0].ID != "standup_20130513T100000Z" {
		t.Fatalf("unexpected instances: %+v", inst)
	}
}

func TestGoogleGetEventNotFound(t *testing.T) {
	_, err := newGoogleFixture(t).GetEvent(context.Background(), "primary", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGoogleBreakerOpensOnServerErrors(t *testing.T) {
	be := newGoogleFixture(t)
	f := EventFilter{CalendarID: "down", From: time.Now(), To: time.Now().Add(time.Hour)}
	for i := 0; i < 3; i++ {
		if _, err := be.ListEvents(context.Background(), f); err == nil {
			t.Fatalf("call %d: expected server error", i)
		}
	}
	_, err := be.ListEvents(context.Background(), f)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestGoogleClientErrorsDoNotTripBreaker(t *testing.T) {
	be := newGoogleFixture(t)
	for i := 0; i < 5; i++ {
		if _, err := be.GetEvent(context.Background(), "primary", "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if state := be.cb.State(); state != gobreaker.StateClosed {
		t.Fatalf("breaker state=%s want=closed", state)
	}
}

func TestConvertEventWithoutTiming(t *testing.T) {
	be := NewGoogleBackend(GoogleConfig{}, zerolog.Nop())
	raw := be.convertEvent(&calendar.Event{Id: "x", Start: &calendar.EventDateTime{DateTime: "not a time"}, End: &calendar.EventDateTime{DateTime: "2013-05-13T10:00:00Z"}})
	if raw.Timing != nil {
		t.Fatalf("expected unparseable start to drop timing, got %#v", raw.Timing)
	}
	if raw = be.convertEvent(&calendar.Event{Id: "y"}); raw.Timing != nil {
		t.Fatalf("expected missing start to drop timing, got %#v", raw.Timing)
	}
}

func TestGoogleDoctorReportsMissingCredentials(t *testing.T) {
	checks, err := NewGoogleBackend(GoogleConfig{}, zerolog.Nop()).Doctor(context.Background())
	if err != nil {
		t.Fatalf("Doctor: %v", err)
	}
	if len(checks) != 1 || checks[0].Name != "google_credentials" || checks[0].Status != "fail" {
		t.Fatalf("unexpected checks: %+v", checks)
	}
}
