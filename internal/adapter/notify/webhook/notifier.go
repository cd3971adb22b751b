// Package webhook delivers lifecycle events to manifest-configured HTTP
// endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/port"
	"github.com/microfunc/microfunc/internal/manifest"
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

type notifier struct {
	webhooks []manifest.Webhook
	client   *http.Client
	log      *zap.Logger
}

// NewNotifier creates a webhook notifier for the manifest's webhook list.
func NewNotifier(webhooks []manifest.Webhook, log *zap.Logger) port.Notifier {
	return &notifier{
		webhooks: webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Notify posts the payload to every webhook subscribed to eventType.
// Delivery failures are logged and swallowed.
func (n *notifier) Notify(ctx context.Context, eventType string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("Failed to marshal notification payload", zap.String("event", eventType), zap.Error(err))
		return
	}

	for _, hook := range n.webhooks {
		if hook.URL == "" || !subscribed(hook.Events, eventType) {
			continue
		}
		n.deliver(ctx, hook, eventType, body)
	}
}

func (n *notifier) deliver(ctx context.Context, hook manifest.Webhook, eventType string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		n.log.Error("Failed to build webhook request", zap.String("url", hook.URL), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range hook.Headers {
		req.Header.Set(key, ExpandEnv(value))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Error("Failed to deliver notification", zap.String("url", hook.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		n.log.Warn("Webhook endpoint rejected notification",
			zap.String("url", hook.URL),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", text))
		return
	}

	n.log.Info("Notification delivered", zap.String("event", eventType), zap.String("url", hook.URL))
}

func subscribed(events []string, eventType string) bool {
	for _, e := range events {
		if e == eventType {
			return true
		}
	}
	return false
}

// ExpandEnv replaces ${VAR} references with environment values; unset
// variables expand to the empty string.
func ExpandEnv(value string) string {
	return envRef.ReplaceAllStringFunc(value, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}
