package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/forum-rewards/rewarder/internal/logger"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookUrl = "https://hooks.example.com/services/T000/B000/XXXX"

func Test_WebhookNotifier(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockHttpClient := &http.Client{
		Transport: httpmock.DefaultTransport,
	}

	t.Run("Should post a text payload", func(t *testing.T) {
		httpmock.Reset()

		var received webhookPayload
		httpmock.RegisterResponder("POST", webhookUrl,
			func(req *http.Request) (*http.Response, error) {
				body, err := io.ReadAll(req.Body)
				if err != nil {
					return nil, err
				}
				if err := json.Unmarshal(body, &received); err != nil {
					return nil, err
				}
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
				return httpmock.NewStringResponse(200, "ok"), nil
			})

		n := NewWebhookNotifier(webhookUrl, mockHttpClient, l)
		err := n.Send(context.Background(), "hello operators")
		assert.Nil(t, err)
		assert.Equal(t, "hello operators", received.Text)
	})
	t.Run("Should return a NotificationError on a failed status", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", webhookUrl, httpmock.NewStringResponder(500, "boom"))

		n := NewWebhookNotifier(webhookUrl, mockHttpClient, l)
		err := n.Send(context.Background(), "hello")

		var notifyErr *rewardsTypes.NotificationError
		assert.True(t, errors.As(err, &notifyErr))
	})
	t.Run("Should return a NotificationError on a transport error", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", webhookUrl, httpmock.NewErrorResponder(errors.New("dns failure")))

		n := NewWebhookNotifier(webhookUrl, mockHttpClient, l)
		err := n.Send(context.Background(), "hello")

		var notifyErr *rewardsTypes.NotificationError
		assert.True(t, errors.As(err, &notifyErr))
	})
	t.Run("Noop notifier never fails", func(t *testing.T) {
		n := NewNoopNotifier(l)
		assert.Nil(t, n.Send(context.Background(), "anything"))
	})
}
