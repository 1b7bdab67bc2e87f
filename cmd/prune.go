package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
)

var (
	keep      int
	retention string
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old record streams and their manifests",
	Long: `Delete record streams beyond the --keep newest, or older than --retention.
With both set, the newest --keep streams are always kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.FromContext(cmd.Context())

		var ret time.Duration
		if retention != "" {
			d, err := time.ParseDuration(retention)
			if err != nil {
				return fmt.Errorf("invalid --retention: %w", err)
			}
			ret = d
		}
		if keep == 0 && ret == 0 {
			return fmt.Errorf("--keep or --retention is required")
		}

		s, err := openTarget(from)
		if err != nil {
			return err
		}
		defer s.Close()

		pruned, err := job.NewPruneManager(s, job.PruneOptions{
			Retention: ret,
			Keep:      keep,
			Prefix:    listPrefix,
			DryRun:    dryRun,
			Logger:    l,
		}).Prune(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range pruned {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		l.Info("Prune finished", "count", len(pruned), "dry_run", dryRun)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().StringVarP(&from, "from", "f", "", "target URI holding the record streams (default current directory)")
	pruneCmd.Flags().IntVar(&keep, "keep", 0, "number of newest streams to keep")
	pruneCmd.Flags().StringVar(&retention, "retention", "", "delete streams older than this duration (e.g. 720h)")
	pruneCmd.Flags().StringVar(&listPrefix, "prefix", "", "only prune streams whose name starts with prefix")
	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted")
}
