package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/compress"
	"github.com/lupppig/dchunk/internal/config"
	"github.com/lupppig/dchunk/internal/crypto"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/notify"
	"github.com/lupppig/dchunk/internal/progress"
	"github.com/lupppig/dchunk/internal/storage"
)

var (
	target      string
	streamName  string
	compression string
	digestName  string
	average     int
	minimum     int
	maximum     int
	bufferSize  int
	dryRun      bool
	printJSON   bool
	encrypt     bool
)

type chunkTask struct {
	id          string
	source      string
	to          string
	name        string
	compression string
	dryRun      bool
	encrypt     bool
}

var chunkCmd = &cobra.Command{
	Use:   "chunk [file...]",
	Short: "Chunk files and store their record streams",
	Long: `Split each file into content-defined chunks and store the resulting record stream
(one 32-byte digest and 4-byte big-endian length per chunk) together with a JSON manifest.

Use "-" to read standard input; --name is then required. Without arguments every job
defined in the configuration file is run. Files are processed in parallel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.FromContext(cmd.Context())
		conf := config.GetConfig()

		chunking := chunkingFromFlags(cmd, conf.Chunking)
		if err := chunking.Validate(); err != nil {
			return apperrors.Wrap(err, apperrors.TypeConfig, "invalid chunking parameters", "Run `dchunk doctor` to see the allowed bounds.")
		}

		tasks, err := chunkTasks(cmd, conf, args)
		if err != nil {
			return err
		}

		var p *mpb.Progress
		if !LogJSON && !printJSON {
			p = progress.NewContainer()
		}

		notifier := notify.BuildNotifier(conf.Notifications)

		var outMu sync.Mutex
		out := cmd.OutOrStdout()

		workers := conf.Parallelism
		if workers < 1 {
			workers = 1
		}
		// Tasks overlap reads and uploads; the hashing itself is bounded by
		// the dispatcher.
		d := cdc.NewDispatcher(runtime.GOMAXPROCS(0))
		defer d.Wait()
		wp := pool.New().WithMaxGoroutines(workers).WithContext(cmd.Context())
		for _, t := range tasks {
			wp.Go(func(ctx context.Context) error {
				start := time.Now()
				man, err := runChunkTask(ctx, l, chunking, t, p, d)
				report(ctx, l, notifier, "Chunk", t, man, start, err)
				if err != nil {
					l.Error("Chunking failed", "source", t.source, "error", err)
					return fmt.Errorf("%s: %w", t.source, err)
				}
				if printJSON {
					data, err := man.Serialize()
					if err != nil {
						return err
					}
					outMu.Lock()
					fmt.Fprintln(out, string(data))
					outMu.Unlock()
				}
				return nil
			})
		}
		err = wp.Wait()
		if p != nil {
			p.Wait()
		}
		return err
	},
}

func chunkingFromFlags(cmd *cobra.Command, c config.Chunking) config.Chunking {
	flags := cmd.Flags()
	if flags.Changed("average") {
		c.Average = average
	}
	if flags.Changed("minimum") {
		c.Minimum = minimum
	}
	if flags.Changed("maximum") {
		c.Maximum = maximum
	}
	if flags.Changed("digest") {
		c.Digest = digestName
	}
	if flags.Changed("buffer-size") {
		c.BufferSize = bufferSize
		return c
	}
	return c.FitBuffer()
}

func chunkTasks(cmd *cobra.Command, conf *config.Config, args []string) ([]chunkTask, error) {
	if len(args) == 0 {
		if len(conf.Jobs) == 0 {
			return nil, apperrors.New(apperrors.TypeConfig, "no input files and no jobs defined in config", "Pass files to chunk or define jobs in dchunk.yaml.")
		}
		tasks := make([]chunkTask, 0, len(conf.Jobs))
		for i, j := range conf.Jobs {
			if j.Source == "" {
				return nil, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("job %d has no source", i), "Every job needs a source path.")
			}
			t := chunkTask{id: j.ID, source: j.Source, to: j.To, name: j.Name, compression: j.Compression, dryRun: j.DryRun || dryRun, encrypt: j.Encrypt || conf.Encrypt || encrypt}
			if t.compression == "" {
				t.compression = conf.Compression
			}
			tasks = append(tasks, t)
		}
		return tasks, nil
	}

	if streamName != "" && len(args) > 1 {
		return nil, apperrors.New(apperrors.TypeConfig, "--name can only be used with a single input", "Drop --name to name each stream after its file.")
	}
	algo := compression
	if !cmd.Flags().Changed("compression") {
		algo = conf.Compression
	}
	enc := encrypt || conf.Encrypt
	tasks := make([]chunkTask, 0, len(args))
	for _, a := range args {
		if a == "-" && streamName == "" {
			return nil, apperrors.New(apperrors.TypeConfig, "--name is required when reading standard input", "")
		}
		tasks = append(tasks, chunkTask{source: a, to: target, name: streamName, compression: algo, dryRun: dryRun, encrypt: enc})
	}
	return tasks, nil
}

func runChunkTask(ctx context.Context, l *logger.Logger, c config.Chunking, t chunkTask, p *mpb.Progress, d *cdc.Dispatcher) (*manifest.Manifest, error) {
	algo, err := c.Algorithm()
	if err != nil {
		return nil, err
	}
	calgo, err := compress.Parse(t.compression)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "invalid compression", "Use none, gzip, zstd or lz4.")
	}

	var (
		r    io.Reader
		size int64
	)
	if t.source == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(t.source)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeResource, "cannot open source", "Check the path and its permissions.")
		}
		defer f.Close()
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		r = f
	}

	var keys *crypto.KeyManager
	if t.encrypt {
		if keys, err = loadKeys(true); err != nil {
			return nil, err
		}
	}

	name := t.name
	if name == "" {
		name = filepath.Base(t.source)
	}

	to := t.to
	if to == "" {
		to = "."
	}
	s, err := storage.FromURI(to, storage.StorageOptions{AllowInsecure: AllowInsecure})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	tl := l.With("source", t.source)
	if t.id != "" {
		tl = tl.With("job", t.id)
	}

	cm, err := job.NewChunkManager(s, job.ChunkOptions{
		Chunking:    c.Config(),
		Digest:      algo,
		BufferSize:  c.BufferSize,
		Compression: calgo,
		Source:      t.source,
		SourceSize:  size,
		DryRun:      t.dryRun,
		Keys:        keys,
		Dispatcher:  d,
		Logger:      tl,
		Progress:    p,
	})
	if err != nil {
		return nil, err
	}

	tl.Info("Chunking started", "target", storage.Scrub(to), "name", name)
	start := time.Now()
	man, err := cm.Run(ctx, name, r)
	if err != nil {
		return nil, err
	}
	tl.Info("Chunking finished", "chunks", man.Chunks, "unique", man.Unique, "duration", time.Since(start).String())
	return man, nil
}

func init() {
	rootCmd.AddCommand(chunkCmd)

	chunkCmd.Flags().StringVarP(&target, "to", "t", "", "target URI for record streams (path, s3://, sftp://, ftp://; default current directory)")
	chunkCmd.Flags().StringVar(&streamName, "name", "", "stream name (defaults to the file's base name)")
	chunkCmd.Flags().StringVar(&compression, "compression", "none", "record stream compression (none, gzip, zstd, lz4)")
	chunkCmd.Flags().StringVar(&digestName, "digest", "sha256", "chunk digest (sha256, blake2b-256, blake3)")
	chunkCmd.Flags().IntVar(&average, "average", 0, "target average chunk size in bytes")
	chunkCmd.Flags().IntVar(&minimum, "minimum", 0, "minimum chunk size in bytes")
	chunkCmd.Flags().IntVar(&maximum, "maximum", 0, "maximum chunk size in bytes")
	chunkCmd.Flags().IntVar(&bufferSize, "buffer-size", 0, "read buffer size in bytes (must exceed --maximum)")
	chunkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "chunk without storing anything")
	chunkCmd.Flags().BoolVar(&printJSON, "print", false, "print each manifest as JSON")
	chunkCmd.Flags().BoolVar(&encrypt, "encrypt", false, "encrypt record streams with AES-256-GCM (passphrase from DCHUNK_PASSPHRASE or --key-file)")
}
