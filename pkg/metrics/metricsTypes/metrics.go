package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_RunCompleted       = "run.completed"
	Metric_Incr_OperationSubmitted = "ledger.operation.submitted"
	Metric_Incr_OperationConfirmed = "ledger.operation.confirmed"
	Metric_Incr_OperationFailed    = "ledger.operation.failed"
	Metric_Incr_NotificationFailed = "notifier.failed"

	Metric_Gauge_SnapshotRecords     = "snapshot.records"
	Metric_Gauge_RegisteredEntries   = "ledger.registered"
	Metric_Gauge_QualifiedIdentities = "reconcile.qualified"
	Metric_Gauge_PlannedOperations   = "plan.operations"
	Metric_Gauge_RefillAmount        = "plan.refillAmount"

	Metric_Timing_StageDuration = "run.stage.duration"
	Metric_Timing_RunDuration   = "run.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_RunCompleted,
			Labels: []string{
				"status",
				"dry_run",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_OperationSubmitted,
			Labels: []string{
				"operation",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_OperationConfirmed,
			Labels: []string{
				"operation",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_OperationFailed,
			Labels: []string{
				"operation",
				"stage",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_NotificationFailed,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name: Metric_Gauge_SnapshotRecords,
			Labels: []string{
				"kind",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_RegisteredEntries,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_QualifiedIdentities,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Gauge_PlannedOperations,
			Labels: []string{
				"operation",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_RefillAmount,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_StageDuration,
			Labels: []string{
				"stage",
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_RunDuration,
			Labels: []string{
				"status",
			},
		},
	},
}
