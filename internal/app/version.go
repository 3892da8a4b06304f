package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agis/meetme/internal/output"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildVersionString() string {
	return fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !flagValueChanged(cmd, "json") && !flagValueChanged(cmd, "jsonl") {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "meetme %s\n", BuildVersionString())
				return nil
			}
			p := output.Printer{Mode: output.ModeJSON, Command: "version", Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
			if jsonl, _ := cmd.Flags().GetBool("jsonl"); jsonl {
				p.Mode = output.ModeJSONL
			}
			return p.Success(versionInfo{
				Version:   buildVersion,
				Commit:    buildCommit,
				Date:      buildDate,
				GoVersion: runtime.Version(),
			}, nil, nil)
		},
	}
}
