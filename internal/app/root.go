package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/backend"
	"github.com/agis/meetme/internal/contract"
	"github.com/agis/meetme/internal/output"
)

var backendFactory = selectBackend

type globalOptions struct {
	JSON          bool
	JSONL         bool
	Plain         bool
	Fields        string
	Quiet         bool
	Verbose       bool
	Profile       string
	Config        string
	Backend       string
	TZ            string
	Timeout       time.Duration
	SchemaVersion string

	// Config-only keys.
	BeginTime         string
	EndTime           string
	HorizonDays       int
	GoogleCredentials string
	GoogleToken       string
	ICSDir            string
	ICSPrimary        string
	SQLitePath        string

	requestID string
	log       zerolog.Logger
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		Backend:       "google",
		Timeout:       30 * time.Second,
		SchemaVersion: contract.SchemaVersion,
		HorizonDays:   7,
	}

	root := &cobra.Command{
		Use:           "meetme",
		Short:         "Find busy times across your calendars inside a daily time window",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("meetme {{.Version}}\n")

	root.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	root.PersistentFlags().BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	root.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	root.PersistentFlags().StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	root.PersistentFlags().StringVar(&opts.Profile, "profile", "default", "Config profile")
	root.PersistentFlags().StringVar(&opts.Config, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&opts.Backend, "backend", "google", "Backend: google|ics|sqlite")
	root.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA timezone for dates and windows")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Backend call timeout (e.g. 10s, 1m, 0 to disable)")
	root.PersistentFlags().StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newCalendarsCmd(opts))
	root.AddCommand(newBusyCmd(opts))
	root.AddCommand(newWindowsCmd(opts))
	root.AddCommand(newSnapshotCmd(opts))
	root.AddCommand(newCompletionCmd(root))

	return root
}

// resolveContext resolves options and the printer without touching a
// backend.
func resolveContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return output.Printer{}, nil, Wrap(2, err)
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return output.Printer{}, nil, Wrap(2, errors.New("--json, --jsonl, and --plain are mutually exclusive"))
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}

	resolved.requestID = uuid.NewString()
	resolved.log = newLogger(printer.Err, mode, resolved.Verbose).With().
		Str("request_id", resolved.requestID).
		Str("command", command).
		Logger()
	resolved.log.Debug().
		Str("backend", resolved.Backend).
		Str("mode", string(mode)).
		Str("tz", resolved.TZ).
		Str("profile", resolved.Profile).
		Dur("timeout", resolved.Timeout).
		Msg("resolved options")
	return printer, resolved, nil
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, backend.Backend, *globalOptions, error) {
	printer, resolved, err := resolveContext(cmd, opts, command)
	if err != nil {
		return printer, nil, nil, err
	}
	be, err := backendFactory(resolved)
	if err != nil {
		_ = printer.Error(contract.ErrInvalidUsage, err.Error(), "Use --backend google, ics or sqlite")
		return printer, nil, nil, WrapPrinted(2, err)
	}
	return printer, be, resolved, nil
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	base := context.WithValue(context.Background(), phaseTimingsKey{}, &phaseTimings{})
	if ro != nil {
		base = ro.log.WithContext(base)
	}
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, ro.Timeout)
}

func successWithMeta(ctx context.Context, p output.Printer, ro *globalOptions, data any, meta map[string]any, warnings []string) error {
	if meta == nil {
		meta = map[string]any{}
	}
	if ro != nil {
		meta["request_id"] = ro.requestID
	}
	if ro != nil && ro.Verbose {
		if timings := timingsFrom(ctx).summary(); len(timings) > 0 {
			meta["timings"] = timings
		}
	}
	return p.Success(data, meta, warnings)
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func errorCodeForExit(code int) contract.ErrorCode {
	switch code {
	case 2:
		return contract.ErrInvalidUsage
	case 4:
		return contract.ErrNotFound
	case 6:
		return contract.ErrBackendUnavailable
	default:
		return contract.ErrGeneric
	}
}

func selectBackend(ro *globalOptions) (backend.Backend, error) {
	loc := resolveLocation(ro.TZ)
	switch strings.ToLower(strings.TrimSpace(ro.Backend)) {
	case "", "google":
		return backend.NewGoogleBackend(backend.GoogleConfig{
			CredentialsFile: expandHome(ro.GoogleCredentials),
			TokenFile:       expandHome(ro.GoogleToken),
		}, ro.log), nil
	case "ics":
		return backend.NewICSBackend(expandHome(ro.ICSDir), ro.ICSPrimary, loc, ro.log), nil
	case "sqlite":
		return backend.NewSQLiteBackend(expandHome(ro.SQLitePath), loc, ro.log), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", ro.Backend)
	}
}

func resolveLocation(tz string) *time.Location {
	if strings.TrimSpace(tz) != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
