package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/config"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity <source-size>",
	Short: "Print the record buffer size needed for a source region",
	Long: `Print the worst-case number of record bytes a single chunking call can produce for
a source region of the given size: ceil(size / minimum) * 36.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid source size %q: %w", args[0], err)
		}
		minSize := config.GetConfig().Chunking.Minimum
		if cmd.Flags().Changed("minimum") {
			minSize = minimum
		}
		n, err := cdc.RequiredCapacity(minSize, size)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capacityCmd)
	capacityCmd.Flags().IntVar(&minimum, "minimum", 0, "minimum chunk size (default from config)")
}
