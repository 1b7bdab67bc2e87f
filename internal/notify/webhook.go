package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebhookNotifier posts Stats as JSON, or the rendered Template when set.
type WebhookNotifier struct {
	URL      string
	Method   string
	Template string
	Headers  map[string]string
}

func NewWebhookNotifier(url, method, tmpl string, headers map[string]string) *WebhookNotifier {
	if method == "" {
		method = http.MethodPost
	}
	return &WebhookNotifier{URL: url, Method: method, Template: tmpl, Headers: headers}
}

func (n *WebhookNotifier) body(stats Stats) ([]byte, error) {
	if n.Template != "" {
		b, err := render("webhook", n.Template, stats)
		if err != nil {
			return nil, fmt.Errorf("failed to render webhook template: %w", err)
		}
		return b, nil
	}
	if stats.Error != nil {
		stats.Message = stats.Error.Error()
	}
	return json.Marshal(stats)
}

func (n *WebhookNotifier) Notify(ctx context.Context, stats Stats) error {
	if n.URL == "" {
		return nil
	}
	b, err := n.body(stats)
	if err != nil {
		return err
	}
	return send(ctx, "webhook", n.Method, n.URL, b, n.Headers)
}
