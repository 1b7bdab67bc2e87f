package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/job"
)

var statsCmd = &cobra.Command{
	Use:   "stats [name...]",
	Short: "Report chunk size distribution and digest redundancy",
	Long: `Read one or more stored record streams and report the chunk count, the number of
distinct digests, logical and physical bytes and how far the mean chunk length is
from the configured average. Without names every stream in the target is read.
Repeated digests are counted only; nothing is deduplicated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openTarget(from)
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := loadKeys(false)
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			manifests, err := job.List(ctx, s, "")
			if err != nil {
				return err
			}
			for _, m := range manifests {
				names = append(names, m.Name)
			}
		}

		out := cmd.OutOrStdout()
		total := job.NewStats()
		for _, name := range names {
			st := job.NewStats()
			avg, err := st.AnalyzeStored(ctx, s, name, keys)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Fprintf(out, "%s: %s avg_error=%.2f%%\n", name, st, st.AverageError(avg))
			total.Merge(st)
		}
		if len(names) > 1 {
			fmt.Fprintf(out, "total: %s\n", total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&from, "from", "f", "", "target URI holding the record streams (default current directory)")
}
