package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/digest"
	"github.com/lupppig/dchunk/internal/manifest"
)

// Set with -ldflags "-X github.com/lupppig/dchunk/cmd.Commit=...".
var (
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dchunk version and record format",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dchunk %s (commit %s, built %s)\n", DCHUNK_VERSION, Commit, BuildDate)
		fmt.Fprintf(out, "  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "  record: %d-byte digest + %d-byte big-endian length, manifest v%s\n",
			cdc.DigestSize, cdc.LengthSize, manifest.FormatVersion)
		fmt.Fprintf(out, "  defaults: %s, digest %s\n", cdc.DefaultConfig(), digest.Default)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
