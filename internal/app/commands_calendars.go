package app

import (
	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/availability"
	"github.com/agis/meetme/internal/contract"
)

func newCalendarsCmd(opts *globalOptions) *cobra.Command {
	var selectedOnly bool
	cmd := &cobra.Command{
		Use:   "calendars",
		Short: "List provider calendars, primary and selected first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "calendars")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			cals, err := listCalendarsWithTimeout(ctx, be)
			if err != nil {
				return fail(p, err, "Run `meetme doctor` to check provider access")
			}
			ranked := availability.RankCalendars(cals)
			if selectedOnly {
				kept := make([]contract.Calendar, 0, len(ranked))
				for _, c := range ranked {
					if c.Selected {
						kept = append(kept, c)
					}
				}
				ranked = kept
			}
			return successWithMeta(ctx, p, ro, ranked, map[string]any{"count": len(ranked)}, nil)
		},
	}
	cmd.Flags().BoolVar(&selectedOnly, "selected", false, "Only show calendars selected in the provider")
	return cmd
}
