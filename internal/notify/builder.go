package notify

import (
	"github.com/lupppig/dchunk/internal/config"
)

// BuildNotifier returns nil when nothing is configured.
func BuildNotifier(cfg config.Notifications) Notifier {
	var notifiers []Notifier

	if cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Template))
	}

	for _, w := range cfg.Webhooks {
		if w.URL != "" {
			notifiers = append(notifiers, NewWebhookNotifier(w.URL, w.Method, w.Template, w.Headers))
		}
	}

	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	}
	return &MultiNotifier{Notifiers: notifiers}
}
