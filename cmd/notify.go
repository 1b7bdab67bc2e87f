package cmd

import (
	"context"
	"time"

	"github.com/lupppig/dchunk/internal/logger"
	"github.com/lupppig/dchunk/internal/manifest"
	"github.com/lupppig/dchunk/internal/notify"
	"github.com/lupppig/dchunk/internal/storage"
)

// report sends the outcome of one run to n. A nil n is a no-op, and a
// failed notification is only logged.
func report(ctx context.Context, l *logger.Logger, n notify.Notifier, op string, t chunkTask, man *manifest.Manifest, start time.Time, err error) {
	if n == nil {
		return
	}
	stats := notify.Stats{
		Status:    notify.StatusSuccess,
		Operation: op,
		Name:      t.name,
		Source:    t.source,
		Target:    storage.Scrub(t.to),
		Duration:  time.Since(start),
		Error:     err,
	}
	if err != nil {
		stats.Status = notify.StatusError
	}
	if man != nil {
		stats.Name = man.Name
		stats.Chunks = man.Chunks
		stats.Unique = man.Unique
		stats.Size = man.Size
	}
	if nerr := n.Notify(ctx, stats); nerr != nil {
		l.Warn("Notification failed", "error", nerr)
	}
}
