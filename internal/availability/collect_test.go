package availability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/contract"
)

func timed(id, summary string, begin, end time.Time) RawInstance {
	return RawInstance{ID: id, Summary: summary, Timing: InstantSpan{Start: begin, End: end}}
}

func eventIDs(busy []contract.BusyInstance) string {
	out := make([]string, 0, len(busy))
	for _, b := range busy {
		out = append(out, b.EventID)
	}
	return strings.Join(out, ",")
}

func TestCollectBusyInstancesEndToEnd(t *testing.T) {
	r := dateRange(t, "2013-05-12", "2013-05-15", time.UTC)
	w := window(t, 9, 0, 18, 0)

	fetched := []CalendarEvents{
		{
			CalendarID: "personal",
			Events: []RawEvent{
				{RawInstance: timed("dinner", "Dinner", at(12, 19, 0), at(12, 21, 0))},
			},
		},
		{
			CalendarID: "work",
			Events: []RawEvent{
				{
					RawInstance: RawInstance{ID: "standup", Summary: "Standup", Recurring: true},
					Instances: []RawInstance{
						timed("standup_20130513T100000Z", "Standup", at(13, 10, 0), at(13, 11, 0)),
					},
				},
			},
		},
	}

	got, err := CollectBusyInstances(fetched, r, w)
	if err != nil {
		t.Fatalf("CollectBusyInstances: %v", err)
	}
	if ids := eventIDs(got); ids != "standup_20130513T100000Z" {
		t.Fatalf("busy=%s", ids)
	}
	if got[0].CalendarID != "work" {
		t.Fatalf("calendar=%s want=work", got[0].CalendarID)
	}
	if !got[0].Begin.Equal(at(13, 10, 0)) || !got[0].End.Equal(at(13, 11, 0)) {
		t.Fatalf("span=%v..%v", got[0].Begin, got[0].End)
	}
}

func TestCollectBusyInstancesExcludesTransparent(t *testing.T) {
	r := dateRange(t, "2013-05-12", "2013-05-15", time.UTC)
	w := window(t, 0, 0, 0, 0)

	transparent := timed("free", "Working from cafe", at(13, 10, 0), at(13, 11, 0))
	transparent.Transparent = true
	fetched := []CalendarEvents{{
		CalendarID: "primary",
		Events: []RawEvent{
			{RawInstance: transparent},
			{
				RawInstance: RawInstance{ID: "series", Recurring: true},
				Instances: []RawInstance{
					{ID: "series_1", Transparent: true, Timing: InstantSpan{Start: at(14, 10, 0), End: at(14, 11, 0)}},
					timed("series_2", "kept", at(15, 10, 0), at(15, 11, 0)),
				},
			},
		},
	}}

	got, err := CollectBusyInstances(fetched, r, w)
	if err != nil {
		t.Fatalf("CollectBusyInstances: %v", err)
	}
	if ids := eventIDs(got); ids != "series_2" {
		t.Fatalf("busy=%s want=series_2", ids)
	}
}

func TestCollectBusyInstancesKeepsDiscoveryOrder(t *testing.T) {
	r := dateRange(t, "2013-05-12", "2013-05-15", time.UTC)
	w := window(t, 9, 0, 18, 0)
	fetched := []CalendarEvents{
		{CalendarID: "a", Events: []RawEvent{{RawInstance: timed("late", "", at(15, 10, 0), at(15, 11, 0))}}},
		{CalendarID: "b", Events: []RawEvent{{RawInstance: timed("early", "", at(12, 10, 0), at(12, 11, 0))}}},
	}
	got, err := CollectBusyInstances(fetched, r, w)
	if err != nil {
		t.Fatalf("CollectBusyInstances: %v", err)
	}
	if ids := eventIDs(got); ids != "late,early" {
		t.Fatalf("busy=%s want=late,early", ids)
	}
}

func TestCollectBusyInstancesToleratesPartialFetch(t *testing.T) {
	r := dateRange(t, "2013-05-12", "2013-05-15", time.UTC)
	w := window(t, 9, 0, 18, 0)
	fetched := []CalendarEvents{
		{CalendarID: "broken", Err: errors.New("403 forbidden")},
		{
			CalendarID: "ok",
			Events: []RawEvent{
				{RawInstance: RawInstance{ID: "lost", Recurring: true}, Err: errors.New("instances: 500")},
				{RawInstance: timed("kept", "", at(13, 12, 0), at(13, 13, 0))},
			},
		},
	}

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	got, err := CollectBusyInstances(fetched, r, w, WithLogger(log))
	if err != nil {
		t.Fatalf("CollectBusyInstances: %v", err)
	}
	if ids := eventIDs(got); ids != "kept" {
		t.Fatalf("busy=%s want=kept", ids)
	}
	for _, want := range []string{"skipping calendar with failed fetch", "skipping event with failed fetch"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in log: %q", want, buf.String())
		}
	}
}

func TestCollectBusyInstancesAbortsOnMalformedRecord(t *testing.T) {
	r := dateRange(t, "2013-05-12", "2013-05-15", time.UTC)
	w := window(t, 9, 0, 18, 0)
	fetched := []CalendarEvents{{
		CalendarID: "primary",
		Events:     []RawEvent{{RawInstance: RawInstance{ID: "broken"}}},
	}}
	got, err := CollectBusyInstances(fetched, r, w)
	if got != nil {
		t.Fatalf("expected no partial result, got %v", got)
	}
	var mi *MalformedInputError
	if !errors.As(err, &mi) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}

func TestCollectBusyInstancesAllDayUsesRangeZone(t *testing.T) {
	r := dateRange(t, "2020-01-01", "2020-01-03", pdt)
	w := window(t, 9, 0, 17, 0)
	fetched := []CalendarEvents{{
		CalendarID: "primary",
		Events: []RawEvent{{RawInstance: RawInstance{
			ID:     "offsite",
			Timing: DateSpan{Start: Date{2020, time.January, 2}, End: Date{2020, time.January, 2}},
		}}},
	}}
	got, err := CollectBusyInstances(fetched, r, w)
	if err != nil || len(got) != 1 {
		t.Fatalf("busy=%v err=%v", got, err)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, pdt); !got[0].Begin.Equal(want) {
		t.Fatalf("begin=%v want=%v", got[0].Begin, want)
	}

	got, err = CollectBusyInstances(fetched, r, w, WithLocation(time.UTC))
	if err != nil || len(got) != 1 {
		t.Fatalf("busy=%v err=%v", got, err)
	}
	if want := time.Date(2020, 1, 2, 23, 59, 0, 0, time.UTC); !got[0].End.Equal(want) {
		t.Fatalf("end=%v want=%v", got[0].End, want)
	}
}

func TestRequestCollectClipsToRange(t *testing.T) {
	req := Request{
		Range:     dateRange(t, "2013-05-12", "2013-05-15", time.UTC),
		Window:    window(t, 9, 0, 18, 0),
		Calendars: []string{"primary"},
	}
	fetched := []CalendarEvents{{
		CalendarID: "primary",
		Events: []RawEvent{
			{RawInstance: timed("spill", "", at(15, 19, 0), at(16, 10, 0))},
			{RawInstance: timed("early", "", at(14, 2, 0), at(14, 3, 0))},
		},
	}}

	got, err := req.Collect(fetched)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ids := eventIDs(got); ids != "spill" {
		t.Fatalf("unclipped busy=%s want=spill", ids)
	}

	req.ClipToRange = true
	got, err = req.Collect(fetched)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected spill to be clipped, got %s", eventIDs(got))
	}

	// Equal begin and end means every hour of an in-range day is busy.
	req.Window = window(t, 9, 0, 9, 0)
	got, err = req.Collect(fetched)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ids := eventIDs(got); ids != "spill,early" {
		t.Fatalf("whole-day clipped busy=%s want=spill,early", ids)
	}
}
