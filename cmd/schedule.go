package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/config"
	apperrors "github.com/lupppig/dchunk/internal/errors"
	"github.com/lupppig/dchunk/internal/job"
	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/notify"
	"github.com/lupppig/dchunk/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled chunking jobs from the config file",
	Long: `Run every job in the configuration file that has a schedule, in the foreground,
until interrupted. Each run is stored as <name>-<timestamp>; older runs are pruned with
the job's keep and retention settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger.FromContext(ctx)
		conf := config.GetConfig()

		s, err := buildScheduler(conf, l)
		if err != nil {
			return err
		}
		tasks := s.ListTasks()
		if len(tasks) == 0 {
			return apperrors.New(apperrors.TypeConfig, "no scheduled jobs defined in config", "Add a schedule to a job in dchunk.yaml.")
		}
		for _, t := range tasks {
			l.Info("Task scheduled", "id", t.ID, "schedule", t.Schedule, "next_run", t.NextRun)
		}

		l.Info("Scheduler started. Press Ctrl+C to stop.")
		s.Run(ctx)
		l.Info("Scheduler stopped")
		return nil
	},
}

func buildScheduler(conf *config.Config, l *logger.Logger) (*scheduler.Scheduler, error) {
	chunking := conf.Chunking.FitBuffer()
	if err := chunking.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeConfig, "invalid chunking parameters", "Run `dchunk doctor` to see the allowed bounds.")
	}
	notifier := notify.BuildNotifier(conf.Notifications)
	s := scheduler.NewScheduler(l, conf.Parallelism)
	d := cdc.NewDispatcher(runtime.GOMAXPROCS(0))

	for i, j := range conf.Jobs {
		if j.Schedule == "" {
			continue
		}
		if j.Source == "" {
			return nil, apperrors.New(apperrors.TypeConfig, fmt.Sprintf("job %d has no source", i), "Every job needs a source path.")
		}
		id := j.ID
		if id == "" {
			id = fmt.Sprintf("job-%d", i)
		}
		delay, err := optionalDuration(j.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("job %s: invalid retry_delay: %w", id, err)
		}
		ret, err := optionalDuration(j.Retention)
		if err != nil {
			return nil, fmt.Errorf("job %s: invalid retention: %w", id, err)
		}

		compression := j.Compression
		if compression == "" {
			compression = conf.Compression
		}
		base := j.Name
		if base == "" {
			base = filepath.Base(j.Source)
		}

		task := &scheduler.Task{
			ID:         id,
			Schedule:   j.Schedule,
			Retries:    j.Retries,
			RetryDelay: delay,
			Run: func(ctx context.Context) error {
				t := chunkTask{
					id:          id,
					source:      j.Source,
					to:          j.To,
					name:        base + "-" + time.Now().UTC().Format("20060102-150405"),
					compression: compression,
					dryRun:      j.DryRun,
					encrypt:     j.Encrypt || conf.Encrypt,
				}
				start := time.Now()
				man, err := runChunkTask(ctx, l, chunking, t, nil, d)
				report(ctx, l, notifier, "Chunk", t, man, start, err)
				if err != nil || j.DryRun || (j.Keep == 0 && ret == 0) {
					return err
				}

				target, err := openTarget(j.To)
				if err != nil {
					return err
				}
				defer target.Close()
				_, err = job.NewPruneManager(target, job.PruneOptions{
					Keep:      j.Keep,
					Retention: ret,
					Prefix:    base + "-",
					Logger:    l.With("job", id),
				}).Prune(ctx)
				return err
			},
		}
		if err := s.AddTask(task); err != nil {
			return nil, fmt.Errorf("job %s: %w", id, err)
		}
	}
	return s, nil
}

func optionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
