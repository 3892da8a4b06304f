package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/contract"
	"github.com/agis/meetme/internal/output"
)

type doctorResult struct {
	Ready       bool                   `json:"ready"`
	Degraded    bool                   `json:"degraded"`
	Backend     string                 `json:"backend"`
	Profile     string                 `json:"profile"`
	TZ          string                 `json:"tz,omitempty"`
	Checks      []contract.DoctorCheck `json:"checks"`
	NextSteps   []string               `json:"next_steps,omitempty"`
	Notes       []string               `json:"notes,omitempty"`
	ReasonCodes []string               `json:"degraded_reason_codes,omitempty"`
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run provider preflight checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "doctor")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			checks, derr := doctorWithTimeout(ctx, be)
			res := buildDoctorResult(checks, derr, ro)
			meta := map[string]any{
				"count":                 len(checks),
				"ready":                 res.Ready,
				"degraded":              res.Degraded,
				"degraded_reason_codes": res.ReasonCodes,
			}
			if p.EffectiveSuccessMode() == output.ModePlain {
				_ = printDoctorPlain(cmd.OutOrStdout(), res)
			} else {
				_ = successWithMeta(ctx, p, ro, res, meta, res.Notes)
			}
			if !res.Ready && derr != nil {
				return WrapPrinted(6, derr)
			}
			if !res.Ready {
				return WrapPrinted(6, fmt.Errorf("doctor checks not ready"))
			}
			return nil
		},
	}
}

// buildDoctorResult folds provider checks into a verdict. Any failed check
// makes the provider not ready; warnings only degrade it.
func buildDoctorResult(checks []contract.DoctorCheck, derr error, ro *globalOptions) doctorResult {
	res := doctorResult{
		Ready:   derr == nil,
		Backend: strings.TrimSpace(ro.Backend),
		Profile: ro.Profile,
		TZ:      ro.TZ,
		Checks:  checks,
	}
	if res.Checks == nil {
		res.Checks = []contract.DoctorCheck{}
	}
	for _, c := range checks {
		switch strings.ToLower(strings.TrimSpace(c.Status)) {
		case "fail":
			res.Ready = false
		case "warn":
			res.Degraded = true
		default:
			continue
		}
		if c.Hint != "" {
			res.NextSteps = append(res.NextSteps, c.Hint)
		}
	}
	if derr != nil {
		res.Notes = append(res.Notes, derr.Error())
	}
	if res.Ready {
		res.NextSteps = append(res.NextSteps, "Verify with: `meetme calendars`")
		res.NextSteps = append(res.NextSteps, "Then: `meetme busy --dates \"<MM/DD/YYYY> - <MM/DD/YYYY>\" --begin 9am --end 5pm`")
	}
	res.ReasonCodes = deriveDegradedReasonCodes(checks, derr)
	return res
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := strings.ToLower(args[0])
			switch shell {
			case "bash":
				return root.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return root.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return Wrap(2, fmt.Errorf("unsupported shell: %s", shell))
			}
		},
	}
}

func deriveDegradedReasonCodes(checks []contract.DoctorCheck, derr error) []string {
	codeSet := map[string]struct{}{}
	for _, c := range checks {
		status := strings.ToLower(strings.TrimSpace(c.Status))
		if status == "" || status == "ok" || status == "pass" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(c.Name))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		if name == "" {
			name = "unknown_check"
		}
		codeSet[name+"_"+status] = struct{}{}
	}
	if derr != nil {
		codeSet["doctor_error"] = struct{}{}
	}
	if len(codeSet) == 0 {
		return nil
	}
	out := make([]string, 0, len(codeSet))
	for code := range codeSet {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func printDoctorPlain(out io.Writer, res doctorResult) error {
	_, _ = fmt.Fprintf(out, "ready=%t degraded=%t backend=%s checks=%d\n", res.Ready, res.Degraded, res.Backend, len(res.Checks))
	if len(res.ReasonCodes) > 0 {
		_, _ = fmt.Fprintf(out, "reasons=%s\n", strings.Join(res.ReasonCodes, ","))
	}
	for _, c := range res.Checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Name, c.Message)
	}
	for _, n := range res.Notes {
		_, _ = fmt.Fprintf(out, "note: %s\n", n)
	}
	for _, step := range res.NextSteps {
		_, _ = fmt.Fprintf(out, "next: %s\n", step)
	}
	return nil
}
