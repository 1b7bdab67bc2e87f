package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/config"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/notify"
	"github.com/lupppig/dchunk/internal/progress"
	"github.com/lupppig/dchunk/internal/storage"
)

var from string

func openTarget(uri string) (storage.Storage, error) {
	if uri == "" {
		uri = "."
	}
	return storage.FromURI(uri, storage.StorageOptions{AllowInsecure: AllowInsecure})
}

var verifyCmd = &cobra.Command{
	Use:   "verify <name> <source>",
	Short: "Verify a stored record stream against its source",
	Long: `Re-chunk the source with the parameters recorded in the manifest and compare every chunk
with the stored record stream. The stored blob checksum and the manifest totals are
checked too. Use "-" to read the source from standard input.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.FromContext(cmd.Context())
		name, source := args[0], args[1]

		s, err := openTarget(from)
		if err != nil {
			return err
		}
		defer s.Close()

		var (
			r    io.Reader = os.Stdin
			size int64
		)
		if source != "-" {
			f, err := os.Open(source)
			if err != nil {
				return apperrors.Wrap(err, apperrors.TypeResource, "cannot open source", "Check the path and its permissions.")
			}
			defer f.Close()
			if st, err := f.Stat(); err == nil {
				size = st.Size()
			}
			r = f
		}

		keys, err := loadKeys(false)
		if err != nil {
			return err
		}

		p := progress.NewContainer()
		if LogJSON {
			p = nil
		}

		l.Info("Verifying integrity...", "name", name, "target", storage.Scrub(s.Location()))
		start := time.Now()
		res, err := job.NewVerifyManager(s, job.VerifyOptions{
			BufferSize: config.GetConfig().Chunking.BufferSize,
			SourceSize: size,
			Keys:       keys,
			Logger:     l,
			Progress:   p,
		}).Run(cmd.Context(), name, r)
		if p != nil {
			p.Wait()
		}
		report(cmd.Context(), l, notify.BuildNotifier(config.GetConfig().Notifications), "Verify",
			chunkTask{name: name, source: source, to: from}, nil, start, err)
		if err != nil {
			l.Error("Integrity check failed!", "name", name, "error", err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d chunks, %d bytes)\n", res.Name, res.Chunks, res.Size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&from, "from", "f", "", "target URI holding the record stream (default current directory)")
}
