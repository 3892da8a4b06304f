package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/backend"
	"github.com/agis/meetme/internal/contract"
)

type phaseTimingsKey struct{}

// phaseTimings accumulates wall time per backend phase for --verbose meta.
type phaseTimings struct {
	mu     sync.Mutex
	total  map[string]time.Duration
	counts map[string]int
}

func timingsFrom(ctx context.Context) *phaseTimings {
	pt, _ := ctx.Value(phaseTimingsKey{}).(*phaseTimings)
	return pt
}

func (pt *phaseTimings) add(phase string, d time.Duration) {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.total == nil {
		pt.total, pt.counts = map[string]time.Duration{}, map[string]int{}
	}
	pt.total[phase] += d
	pt.counts[phase]++
}

// summary renders "12ms" for a phase run once and "30ms over 3 calls"
// otherwise.
func (pt *phaseTimings) summary() map[string]string {
	if pt == nil {
		return nil
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if len(pt.total) == 0 {
		return nil
	}
	phases := make([]string, 0, len(pt.total))
	for phase := range pt.total {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	out := make(map[string]string, len(phases))
	for _, phase := range phases {
		d := pt.total[phase].Round(time.Microsecond).String()
		if n := pt.counts[phase]; n > 1 {
			d = fmt.Sprintf("%s over %d calls", d, n)
		}
		out[phase] = d
	}
	return out
}

// call runs fn under ctx, returning as soon as ctx ends even if fn does not.
// The error is annotated with phase and the elapsed time recorded.
func call[T any](ctx context.Context, phase string, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	start := time.Now()
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		res.err = ctx.Err()
	case res = <-done:
	}
	elapsed := time.Since(start)
	timingsFrom(ctx).add(phase, elapsed)
	zerolog.Ctx(ctx).Debug().Str("phase", phase).Dur("elapsed", elapsed).Err(res.err).Msg("backend call")
	return res.val, annotateBackendError(ctx, phase, res.err)
}

func doctorWithTimeout(ctx context.Context, be backend.Backend) ([]contract.DoctorCheck, error) {
	return call(ctx, "backend.doctor", be.Doctor)
}

func listCalendarsWithTimeout(ctx context.Context, be backend.Backend) ([]contract.Calendar, error) {
	return call(ctx, "backend.list_calendars", be.ListCalendars)
}

func fetchWithTimeout(ctx context.Context, be backend.Backend, calendarIDs []string, from, to time.Time) ([]availability.CalendarEvents, error) {
	return call(ctx, "backend.fetch", func(ctx context.Context) ([]availability.CalendarEvents, error) {
		return backend.Fetch(ctx, be, calendarIDs, from, to, *zerolog.Ctx(ctx)), nil
	})
}
