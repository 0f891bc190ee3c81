package dogstatsd

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/forum-rewards/rewarder/internal/logger"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStatsd struct {
	statsd.NoOpClient

	counts  map[string]int64
	gauges  map[string]float64
	timings map[string]time.Duration
	tags    map[string][]string
}

func newRecordingStatsd() *recordingStatsd {
	return &recordingStatsd{
		counts:  make(map[string]int64),
		gauges:  make(map[string]float64),
		timings: make(map[string]time.Duration),
		tags:    make(map[string][]string),
	}
}

func (r *recordingStatsd) Count(name string, value int64, tags []string, rate float64) error {
	r.counts[name] += value
	r.tags[name] = tags
	return nil
}

func (r *recordingStatsd) Gauge(name string, value float64, tags []string, rate float64) error {
	r.gauges[name] = value
	r.tags[name] = tags
	return nil
}

func (r *recordingStatsd) Timing(name string, value time.Duration, tags []string, rate float64) error {
	r.timings[name] = value
	r.tags[name] = tags
	return nil
}

func Test_DogStatsdMetricsClient(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	rec := newRecordingStatsd()
	client := NewDogStatsdMetricsClientWithClient(rec, l)

	t.Run("Should send counts with tags", func(t *testing.T) {
		err := client.Incr(metricsTypes.Metric_Incr_OperationFailed, []metricsTypes.MetricsLabel{
			{Name: "operation", Value: "setCount"},
			{Name: "stage", Value: "confirm"},
		}, 1)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), rec.counts[metricsTypes.Metric_Incr_OperationFailed])
		assert.Equal(t, []string{"operation:setCount", "stage:confirm"}, rec.tags[metricsTypes.Metric_Incr_OperationFailed])
	})
	t.Run("Should send gauges and timings", func(t *testing.T) {
		assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_RefillAmount, 70, nil))
		assert.Nil(t, client.Timing(metricsTypes.Metric_Timing_RunDuration, 2*time.Second, nil))

		assert.Equal(t, float64(70), rec.gauges[metricsTypes.Metric_Gauge_RefillAmount])
		assert.Equal(t, 2*time.Second, rec.timings[metricsTypes.Metric_Timing_RunDuration])
		assert.Len(t, rec.tags[metricsTypes.Metric_Gauge_RefillAmount], 0)
	})
	t.Run("Should flush without error on a no-op client", func(t *testing.T) {
		client.Flush()
	})
}
