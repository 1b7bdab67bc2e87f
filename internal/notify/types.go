// Package notify reports finished chunking, verification and prune runs to
// Slack and generic webhooks.
package notify

import (
	"bytes"
	"context"
	"errors"
	"text/template"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Stats struct {
	Status    Status        `json:"status"`
	Operation string        `json:"operation"` // "Chunk", "Verify" or "Prune"
	Name      string        `json:"name"`
	Source    string        `json:"source,omitempty"`
	Target    string        `json:"target,omitempty"`
	Chunks    int           `json:"chunks,omitempty"`
	Unique    int           `json:"unique,omitempty"`
	Size      int64         `json:"size,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     error         `json:"-"`
	Message   string        `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, stats Stats) error
}

type MultiNotifier struct {
	Notifiers []Notifier
}

// Notify sends to every notifier and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, stats Stats) error {
	var errs []error
	for _, n := range m.Notifiers {
		if err := n.Notify(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// render executes a user template with Stats plus FormattedDuration.
func render(name, tmpl string, stats Stats) ([]byte, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return nil, err
	}

	data := struct {
		Stats
		FormattedDuration string
	}{
		Stats:             stats,
		FormattedDuration: stats.Duration.Truncate(time.Second).String(),
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
