package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/storage"
)

var (
	migrateFrom string
	migrateTo   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy record streams and manifests between targets",
	Long: `Copy every record stream and its manifest from one target to another.
Example: dchunk migrate --from ./records --to s3://my-bucket/records`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger.FromContext(ctx)

		if migrateFrom == "" || migrateTo == "" {
			return fmt.Errorf("--from and --to are required")
		}

		src, err := openTarget(migrateFrom)
		if err != nil {
			return fmt.Errorf("failed to open source target: %w", err)
		}
		defer src.Close()

		dst, err := openTarget(migrateTo)
		if err != nil {
			return fmt.Errorf("failed to open destination target: %w", err)
		}
		defer dst.Close()

		l.Info("Starting migration", "from", storage.Scrub(migrateFrom), "to", storage.Scrub(migrateTo))

		manifests, err := job.List(ctx, src, "")
		if err != nil {
			return err
		}

		migrated := 0
		for _, m := range manifests {
			l.Info("Migrating record stream", "name", m.Name)

			if _, err := storage.Copy(ctx, src, dst, m.Records); err != nil {
				return fmt.Errorf("failed to copy record stream %s: %w", m.Records, err)
			}

			// Manifest last: a copied stream without one is an interrupted migration.
			data, err := m.Serialize()
			if err != nil {
				return err
			}
			if err := dst.PutMetadata(ctx, manifest.FileName(m.Name), data); err != nil {
				return fmt.Errorf("failed to save manifest to destination: %w", err)
			}
			migrated++
		}

		l.Info("Migration finished", "count", migrated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source target URI")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination target URI")
}
