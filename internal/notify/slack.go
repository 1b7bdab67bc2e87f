package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	colorOK     = "#36a64f"
	colorFailed = "#ff0000"
)

type SlackNotifier struct {
	WebhookURL string
	Template   string
}

func NewSlackNotifier(url, tmpl string) *SlackNotifier {
	return &SlackNotifier{WebhookURL: url, Template: tmpl}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// slackMessage lays out one attachment per run. Counters that are zero are
// left out, so failed runs show only what is known.
func slackMessage(stats Stats, now time.Time) slackPayload {
	att := slackAttachment{
		Color:  colorOK,
		Title:  fmt.Sprintf("%s succeeded", stats.Operation),
		Footer: "dchunk",
		Ts:     now.Unix(),
		Fields: []slackField{
			{Title: "Name", Value: stats.Name, Short: true},
			{Title: "Duration", Value: stats.Duration.Truncate(time.Millisecond).String(), Short: true},
		},
	}
	if stats.Status == StatusError {
		att.Color = colorFailed
		att.Title = fmt.Sprintf("%s failed", stats.Operation)
	}
	if stats.Error != nil {
		att.Text = "*Error:* " + stats.Error.Error()
	}

	if stats.Source != "" {
		att.Fields = append(att.Fields, slackField{Title: "Source", Value: stats.Source})
	}
	if stats.Chunks > 0 {
		att.Fields = append(att.Fields, slackField{Title: "Chunks", Value: fmt.Sprintf("%d (%d unique)", stats.Chunks, stats.Unique), Short: true})
	}
	if stats.Size > 0 {
		att.Fields = append(att.Fields, slackField{Title: "Size", Value: formatSize(stats.Size), Short: true})
	}
	return slackPayload{Attachments: []slackAttachment{att}}
}

func (s *SlackNotifier) Notify(ctx context.Context, stats Stats) error {
	if s.WebhookURL == "" {
		return nil
	}

	var (
		body []byte
		err  error
	)
	if s.Template != "" {
		if body, err = render("slack", s.Template, stats); err != nil {
			return fmt.Errorf("failed to render slack template: %w", err)
		}
	} else if body, err = json.Marshal(slackMessage(stats, time.Now())); err != nil {
		return err
	}
	return send(ctx, "slack", http.MethodPost, s.WebhookURL, body, nil)
}

// formatSize renders b in binary units.
func formatSize(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b)
	for _, unit := range []string{"KB", "MB", "GB", "TB", "PB"} {
		v /= 1024
		if v < 1024 {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
	}
	return fmt.Sprintf("%.2f EB", v/1024)
}
