package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/availability"
)

func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVar(&f.Dates, "dates", "", "Date range \"MM/DD/YYYY - MM/DD/YYYY\"")
	cmd.Flags().StringVar(&f.From, "from", "", "Range start (today, tomorrow, +3d, 2026-01-02, 01/02/2026)")
	cmd.Flags().StringVar(&f.To, "to", "", "Range end, inclusive")
	cmd.Flags().StringVar(&f.Begin, "begin", "", "Daily window start (9am, 1:30pm, 13:30)")
	cmd.Flags().StringVar(&f.End, "end", "", "Daily window end; equal to --begin means the whole day")
	cmd.Flags().StringVar(&f.Session, "session", "", "Load a saved query file (YAML or JSON)")
}

func newBusyCmd(opts *globalOptions) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "busy",
		Short: "List busy times across calendars inside a daily window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "busy")
			if err != nil {
				return err
			}
			req, err := buildRequest(f, ro, time.Now())
			if err != nil {
				return fail(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()

			if len(req.Calendars) == 0 {
				cals, err := listCalendarsWithTimeout(ctx, be)
				if err != nil {
					return fail(p, err, "Pass --calendar to skip the calendar lookup")
				}
				if req.Calendars, err = defaultCalendars(cals); err != nil {
					return fail(p, err, "Pass --calendar <id>; `meetme calendars` lists them")
				}
			}
			if f.SaveSession != "" {
				if err := saveSession(f.SaveSession, req); err != nil {
					return fail(p, err, "")
				}
			}

			from, to := req.QueryBounds()
			ro.log.Debug().Time("from", from).Time("to", to).Strs("calendars", req.Calendars).Msg("fetching events")
			fetched, err := fetchWithTimeout(ctx, be, req.Calendars, from, to)
			if err != nil {
				return fail(p, err, "")
			}
			if err := allFailed(ctx, fetched); err != nil {
				return fail(p, err, "")
			}
			busy, err := req.Collect(fetched, availability.WithLogger(*zerolog.Ctx(ctx)))
			if err != nil {
				return fail(p, err, "")
			}
			warnings, failed := fetchFailures(ctx, fetched)
			meta := map[string]any{
				"count":     len(busy),
				"days":      req.Range.Days(),
				"window":    req.Window.String(),
				"calendars": req.Calendars,
			}
			if req.ClipToRange {
				meta["clip_to_range"] = true
			}
			if len(failed) > 0 {
				meta["failed_calendars"] = failed
			}
			return successWithMeta(ctx, p, ro, busy, meta, warnings)
		},
	}
	addRequestFlags(cmd, &f)
	cmd.Flags().StringSliceVar(&f.Calendars, "calendar", nil, "Calendar id (repeatable or comma-separated; default: selected calendars)")
	cmd.Flags().StringVar(&f.SaveSession, "save-session", "", "Write the resolved query to a file for --session")
	cmd.Flags().BoolVar(&f.ClipToRange, "clip-to-range", false, "Only count days inside the requested date range")
	return cmd
}

// allFailed returns an error when no calendar could be fetched at all.
func allFailed(ctx context.Context, fetched []availability.CalendarEvents) error {
	if len(fetched) == 0 {
		return nil
	}
	for _, ce := range fetched {
		if ce.Err == nil {
			return nil
		}
	}
	first := annotateBackendError(ctx, "calendar "+fetched[0].CalendarID, fetched[0].Err)
	return &fetchFailedError{count: len(fetched), first: first}
}
