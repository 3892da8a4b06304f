package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/availability"
)

func newWindowsCmd(opts *globalOptions) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Print the daily time windows for a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, ro, err := resolveContext(cmd, opts, "windows")
			if err != nil {
				return err
			}
			req, err := buildRequest(f, ro, time.Now())
			if err != nil {
				return fail(p, err, "")
			}
			windows := availability.ExpandWindow(req.Range, req.Window)
			from, to := req.QueryBounds()
			meta := map[string]any{
				"count":      len(windows),
				"window":     req.Window.String(),
				"all_day":    req.Window.AllDay(),
				"query_from": from.Format(time.RFC3339),
				"query_to":   to.Format(time.RFC3339),
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			return successWithMeta(ctx, p, ro, windows, meta, nil)
		},
	}
	addRequestFlags(cmd, &f)
	return cmd
}
