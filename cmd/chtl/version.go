package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"chtl/internal/version"
)

// versionReport is what `chtl version` prints. Optional fields are empty
// unless requested.
type versionReport struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

var (
	versionFormat string
	versionFull   bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include commit, build date and platform")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show chtl build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		report := buildVersionReport(version.Current(), versionFull)
		switch strings.ToLower(versionFormat) {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "pretty":
			printVersionReport(cmd.OutOrStdout(), report)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func buildVersionReport(info version.Info, full bool) versionReport {
	report := versionReport{Tool: "chtl", Version: info.Version}
	if full {
		report.GitCommit = valueOrUnknown(info.GitCommit)
		report.BuildDate = valueOrUnknown(info.BuildDate)
		report.Go = runtime.Version()
		report.Platform = runtime.GOOS + "/" + runtime.GOARCH
	}
	return report
}

func printVersionReport(out io.Writer, r versionReport) {
	fmt.Fprintf(out, "%s %s\n", r.Tool, version.Colored(r.Version))
	for _, row := range [][2]string{
		{"commit", r.GitCommit},
		{"built", r.BuildDate},
		{"go", r.Go},
		{"platform", r.Platform},
	} {
		if row[1] != "" {
			fmt.Fprintf(out, "  %-9s %s\n", row[0]+":", row[1])
		}
	}
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
