package cli

import (
	"fmt"

	"github.com/pkgindex/pkgindex/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	// no config or logging needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pkgindex %s\n", version.BuildVersion())
		if rev := version.Revision(); rev != "" {
			fmt.Fprintf(out, "revision: %s\n", rev)
		}
		fmt.Fprintf(out, "user agent: %s\n", version.UserAgent())
		return nil
	},
}

func GetVersionCmd() *cobra.Command {
	return versionCmd
}
