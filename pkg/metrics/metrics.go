package metrics

import (
	"time"

	"github.com/forum-rewards/rewarder/internal/config"
	"github.com/forum-rewards/rewarder/pkg/metrics/dogstatsd"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"github.com/forum-rewards/rewarder/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct{}

// MetricsSink fans every metric out to all configured clients.
type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	return &MetricsSink{
		config:  cfg,
		clients: clients,
	}, nil
}

// InitMetricsSinksFromConfig builds one client per enabled backend. The
// prometheus client is always present so a Pushgateway push can be added
// with configuration alone.
func InitMetricsSinksFromConfig(cfg *config.Config, runId string, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	pc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
		Metrics:        metricsTypes.MetricTypes,
		PushgatewayUrl: cfg.PrometheusConfig.PushgatewayUrl,
		Grouping:       map[string]string{"run_id": runId},
	}, l)
	if err != nil {
		l.Sugar().Errorw("Failed to create prometheus metrics client", zap.Error(err))
		return nil, err
	}
	clients = append(clients, pc)

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		dd, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, l)
		if err != nil {
			l.Sugar().Errorw("Failed to create statsd metrics client", zap.Error(err))
			return nil, err
		}
		clients = append(clients, dd)
	}

	return clients, nil
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	for _, client := range ms.clients {
		if err := client.Incr(name, labels, value); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	for _, client := range ms.clients {
		if err := client.Timing(name, value, labels); err != nil {
			return err
		}
	}
	return nil
}

func (ms *MetricsSink) Flush() {
	for _, client := range ms.clients {
		client.Flush()
	}
}
