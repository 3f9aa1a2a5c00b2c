package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xreach/acp/pkg/models"
)

// WebhookAlerter posts threshold events as JSON to a webhook URL. Events
// below the configured minimum severity are dropped.
type WebhookAlerter struct {
	url         string
	headers     map[string]string
	minSeverity string
	client      *http.Client
}

// WebhookOption configures a WebhookAlerter.
type WebhookOption func(*WebhookAlerter)

// WithMinSeverity only forwards events at or above severity ("warning" or
// "critical"). Empty forwards everything.
func WithMinSeverity(severity string) WebhookOption {
	return func(w *WebhookAlerter) { w.minSeverity = strings.ToLower(strings.TrimSpace(severity)) }
}

// NewWebhookAlerter creates a new webhook alerter.
func NewWebhookAlerter(url string, headers map[string]string, opts ...WebhookOption) *WebhookAlerter {
	w := &WebhookAlerter{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *WebhookAlerter) Name() string {
	return "webhook"
}

func severityRank(s string) int {
	switch s {
	case models.SeverityCritical:
		return 2
	case models.SeverityWarning:
		return 1
	}
	return 0
}

func (w *WebhookAlerter) Send(ctx context.Context, event Event) error {
	if severityRank(event.Severity) < severityRank(w.minSeverity) {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s alert: %w", event.Metric, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ACP-Severity", event.Severity)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s alert: %w", event.Metric, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort cleanup

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
