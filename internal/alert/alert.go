// Package alert delivers operator alerts (emergency escalations) to an
// out-of-band channel, separate from the member-facing sender.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Notifier sends one operator alert.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SlackWebhook posts alerts to a Slack channel via an incoming webhook.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // optional override
	Username   string // optional
	Client     *http.Client
}

func (s SlackWebhook) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not set")
	}
	payload := map[string]any{"text": message}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	if s.Username != "" {
		payload["username"] = s.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// Noop discards alerts. Used when no webhook is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }
