// Package notifier posts operator-facing progress messages to a chat webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type webhookPayload struct {
	Text string `json:"text"`
}

// WebhookNotifier sends Slack compatible {"text": ...} payloads.
type WebhookNotifier struct {
	httpClient *http.Client
	webhookUrl string
	logger     *zap.Logger
}

func DefaultHttpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

func NewWebhookNotifier(webhookUrl string, httpClient *http.Client, l *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: httpClient,
		webhookUrl: webhookUrl,
		logger:     l,
	}
}

// Send posts a single message. Failures are returned as
// *rewardsTypes.NotificationError.
func (n *WebhookNotifier) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(&webhookPayload{Text: text})
	if err != nil {
		return &rewardsTypes.NotificationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookUrl, bytes.NewReader(payload))
	if err != nil {
		return &rewardsTypes.NotificationError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &rewardsTypes.NotificationError{Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &rewardsTypes.NotificationError{
			Err: fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	n.logger.Sugar().Debugw("Sent notification", zap.Int("length", len(text)))
	return nil
}

// NoopNotifier is used when no webhook is configured; messages only go to the log.
type NoopNotifier struct {
	logger *zap.Logger
}

func NewNoopNotifier(l *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: l}
}

func (n *NoopNotifier) Send(ctx context.Context, text string) error {
	n.logger.Sugar().Debugw("Notification (noop)", zap.String("text", text))
	return nil
}
