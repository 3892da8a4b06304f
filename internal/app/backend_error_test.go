package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agis/meetme/internal/availability"
)

func TestBackendErrorMetaFromDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := annotateBackendError(ctx, "backend.fetch", context.DeadlineExceeded)
	meta := backendErrorMeta(err)
	if meta == nil {
		t.Fatalf("expected metadata for annotated timeout")
	}
	if meta["phase"] != "backend.fetch" || meta["kind"] != "timeout" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if _, ok := meta["deadline"]; !ok {
		t.Fatalf("expected deadline in metadata: %+v", meta)
	}
}

func TestBackendErrorMetaNilForGenericError(t *testing.T) {
	meta := backendErrorMeta(context.Canceled)
	if meta != nil {
		t.Fatalf("did not expect metadata for unannotated error: %+v", meta)
	}
}

func TestBackendContextErrorMessageContainsPhase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := annotateBackendError(ctx, "backend.list_calendars", context.DeadlineExceeded)
	if !strings.Contains(err.Error(), "backend.list_calendars timed out") {
		t.Fatalf("expected phase-aware message, got: %q", err.Error())
	}
}

func TestAnnotateCircuitOpen(t *testing.T) {
	err := annotateBackendError(context.Background(), "calendar work", gobreaker.ErrOpenState)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected wrapped breaker error, got %v", err)
	}
	meta := backendErrorMeta(err)
	if meta["kind"] != "circuit_open" || meta["phase"] != "calendar work" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestFetchFailures(t *testing.T) {
	fetched := []availability.CalendarEvents{
		{CalendarID: "work", Events: []availability.RawEvent{
			{RawInstance: availability.RawInstance{ID: "ok"}},
			{RawInstance: availability.RawInstance{ID: "weekly", Recurring: true}, Err: errors.New("instances unavailable")},
		}},
		{CalendarID: "personal", Err: gobreaker.ErrOpenState},
	}
	warnings, failed := fetchFailures(context.Background(), fetched)
	if len(failed) != 1 || failed[0] != "personal" {
		t.Fatalf("failed=%v", failed)
	}
	want := []string{
		"calendar work: instances unavailable",
		"calendar personal skipped, provider circuit open: circuit breaker is open",
	}
	if strings.Join(warnings, "|") != strings.Join(want, "|") {
		t.Fatalf("warnings=%q want=%q", warnings, want)
	}
}
