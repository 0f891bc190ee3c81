package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

const defaultNamespace = "forum_rewarder."

type DogStatsdMetricsClient struct {
	client statsd.ClientInterface
	logger *zap.Logger
}

// NewDogStatsdMetricsClient dials a statsd agent. An empty addr falls back to
// the DD_AGENT_HOST / DD_DOGSTATSD_URL environment, as statsd.New does.
func NewDogStatsdMetricsClient(addr string, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(addr, statsd.WithNamespace(defaultNamespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return NewDogStatsdMetricsClientWithClient(client, l), nil
}

func NewDogStatsdMetricsClientWithClient(client statsd.ClientInterface, l *zap.Logger) *DogStatsdMetricsClient {
	return &DogStatsdMetricsClient{
		client: client,
		logger: l,
	}
}

func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", label.Name, label.Value))
	}
	return tags
}

func (dsc *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return dsc.client.Count(name, int64(value), formatTags(labels), 1)
}

func (dsc *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return dsc.client.Gauge(name, value, formatTags(labels), 1)
}

func (dsc *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return dsc.client.Timing(name, value, formatTags(labels), 1)
}

func (dsc *DogStatsdMetricsClient) Flush() {
	if err := dsc.client.Flush(); err != nil {
		dsc.logger.Sugar().Errorw("Failed to flush statsd metrics", zap.Error(err))
	}
}
