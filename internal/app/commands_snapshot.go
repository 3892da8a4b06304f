package app

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/backend"
)

type snapshotResult struct {
	Path      string `json:"path"`
	Calendars int    `json:"calendars"`
	Events    int    `json:"events"`
	Summary   string `json:"summary"`
}

func newSnapshotCmd(opts *globalOptions) *cobra.Command {
	var f requestFlags
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy calendars and events from the current backend into a local SQLite file",
		Long: "Fetches every calendar (or those named with --calendar) over the requested date range " +
			"and writes them to a file the sqlite backend can read offline.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "snapshot")
			if err != nil {
				return err
			}
			if strings.TrimSpace(out) == "" {
				return fail(p, usageErrorf("--out is required"), "")
			}
			if strings.EqualFold(ro.Backend, "sqlite") && expandHome(out) == expandHome(ro.SQLitePath) {
				return fail(p, usageErrorf("--out must differ from the sqlite backend path"), "")
			}
			req, err := buildRequest(f, ro, time.Now())
			if err != nil {
				return fail(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()

			cals, err := listCalendarsWithTimeout(ctx, be)
			if err != nil {
				return fail(p, err, "")
			}
			ids := req.Calendars
			if len(ids) == 0 {
				for _, c := range cals {
					ids = append(ids, c.ID)
				}
			}
			from, to := req.QueryBounds()
			fetched, err := fetchWithTimeout(ctx, be, ids, from, to)
			if err != nil {
				return fail(p, err, "")
			}
			n, err := call(ctx, "snapshot.write", func(ctx context.Context) (int, error) {
				return backend.WriteSnapshot(ctx, expandHome(out), cals, fetched)
			})
			if err != nil {
				return fail(p, err, "")
			}
			warnings, failed := fetchFailures(ctx, fetched)
			ro.log.Info().Str("path", out).Int("events", n).Msg("snapshot written")
			data := snapshotResult{
				Path:      out,
				Calendars: len(cals),
				Events:    n,
				Summary:   humanize.Comma(int64(n)) + " events from " + humanize.Comma(int64(len(ids))) + " calendars",
			}
			meta := map[string]any{"count": n}
			if len(failed) > 0 {
				meta["failed_calendars"] = failed
			}
			return successWithMeta(ctx, p, ro, data, meta, warnings)
		},
	}
	addRequestFlags(cmd, &f)
	cmd.Flags().StringSliceVar(&f.Calendars, "calendar", nil, "Calendar id to include (repeatable; default: all)")
	cmd.Flags().StringVar(&out, "out", "", "SQLite file to write")
	return cmd
}
