package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/storage"
)

var listPrefix string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List record streams in a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openTarget(from)
		if err != nil {
			return err
		}
		defer s.Close()

		l := logger.FromContext(cmd.Context())
		l.Debug("Scanning target for manifests...", "location", storage.Scrub(s.Location()))

		manifests, err := job.List(cmd.Context(), s, listPrefix)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s %-24s %-12s %-8s %-8s %-11s %s\n", "CREATED AT", "NAME", "DIGEST", "CHUNKS", "UNIQUE", "SIZE", "RECORDS")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, m := range manifests {
			fmt.Fprintf(out, "%-20s %-24s %-12s %-8d %-8d %-11s %s\n",
				m.CreatedAt.Format("2006-01-02 15:04:05"),
				m.Name,
				m.Digest,
				m.Chunks,
				m.Unique,
				humanSize(m.Size),
				m.Records,
			)
		}

		if len(manifests) == 0 {
			l.Info("No record streams found.")
		} else {
			l.Debug("Record streams listed", "count", len(manifests))
		}
		return nil
	},
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&from, "from", "f", "", "target URI to list (default current directory)")
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "only list streams whose name starts with prefix")
}
