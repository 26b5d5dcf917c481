package cli

import (
	"errors"
	"fmt"

	"github.com/pkgindex/pkgindex/internal/differ"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/spf13/cobra"
)

// ErrChangesDetected is returned when a diff crosses the fail-on threshold.
var ErrChangesDetected = errors.New("changes detected")

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <old.json> <new.json>",
	Short: "Compare two collection documents",
	Long: `Diff compares two collection documents, plain or signed, and reports the
packages and versions that were added, removed or changed. Changed
versions are explained in human-readable terms, not just raw JSON patches.

The command fails when any change reaches the --fail-on severity.

Example:
  pkgindex diff old.json new.json
  pkgindex diff old.json new.json --fail-on moderate --json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var (
	diffFailOnFlag string
	diffJSONFlag   bool
)

func init() {
	diffCmd.Flags().StringVar(&diffFailOnFlag, "fail-on", string(FailOnCritical), "Fail on changes at or above: critical, moderate or info")
	diffCmd.Flags().BoolVar(&diffJSONFlag, "json", false, "Output JSON")
}

// GetDiffCmd returns the diff command
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	_, end := otelobs.StartSpan(cmd.Context(), "pkgindex.diff")
	defer func() { end(err) }()

	failOn, err := ParseFailOnLevel(diffFailOnFlag)
	if err != nil {
		return err
	}

	from, err := readCollection(args[0])
	if err != nil {
		return err
	}
	to, err := readCollection(args[1])
	if err != nil {
		return err
	}

	res, err := differ.Compare(from, to)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	report := BuildDiffReport(args[0], args[1], res, failOn)

	out := cmd.OutOrStdout()
	if diffJSONFlag {
		data, err := FormatJSONOutput(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, FormatTextOutput(report))
	}

	if report.Outcome == "FAIL" {
		return fmt.Errorf("%w at or above %s severity", ErrChangesDetected, failOn)
	}
	return nil
}
