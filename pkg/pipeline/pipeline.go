package pipeline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/forum-rewards/rewarder/internal/config"
	"github.com/forum-rewards/rewarder/pkg/allocationPlanner"
	"github.com/forum-rewards/rewarder/pkg/clients/forum"
	"github.com/forum-rewards/rewarder/pkg/executor"
	"github.com/forum-rewards/rewarder/pkg/ledgerReader"
	"github.com/forum-rewards/rewarder/pkg/metrics"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"github.com/forum-rewards/rewarder/pkg/reconciler"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/forum-rewards/rewarder/pkg/snapshotNormalizer"
	"github.com/google/uuid"
	"go.uber.org/zap"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// SnapshotSource produces the raw forum users a run starts from.
type SnapshotSource interface {
	FetchActiveUsers(ctx context.Context) ([]*forum.User, error)
}

// Pipeline runs the stages of a reconciliation in order, each consuming only
// the output of the stage before it. It owns the run id, stage timing,
// metrics and tracing; the stages themselves know nothing about one another.
type Pipeline struct {
	source       SnapshotSource
	normalizer   *snapshotNormalizer.SnapshotNormalizer
	reader       *ledgerReader.LedgerReader
	reconciler   *reconciler.Reconciler
	planner      *allocationPlanner.AllocationPlanner
	executor     *executor.Executor
	reporter     *executor.Reporter
	globalConfig *config.Config
	metricsSink  *metrics.MetricsSink
	Logger       *zap.Logger
}

// NewPipeline creates a Pipeline from its stages.
//
// Parameters:
//   - src: source of the forum snapshot
//   - sn: SnapshotNormalizer cleaning the raw snapshot
//   - lr: LedgerReader for registered identities and balances
//   - rec: Reconciler intersecting the snapshot with the ledger
//   - ap: AllocationPlanner producing the plan of ledger mutations
//   - ex: Executor applying the plan
//   - rep: Reporter shared with the executor, framing every notification
//   - gc: Global configuration
//   - ms: Metrics sink for reporting metrics
//   - l: Logger for logging
//
// Returns:
//   - *Pipeline: A fully initialized Pipeline instance
func NewPipeline(
	src SnapshotSource,
	sn *snapshotNormalizer.SnapshotNormalizer,
	lr *ledgerReader.LedgerReader,
	rec *reconciler.Reconciler,
	ap *allocationPlanner.AllocationPlanner,
	ex *executor.Executor,
	rep *executor.Reporter,
	gc *config.Config,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Pipeline {
	return &Pipeline{
		source:       src,
		normalizer:   sn,
		reader:       lr,
		reconciler:   rec,
		planner:      ap,
		executor:     ex,
		reporter:     rep,
		globalConfig: gc,
		metricsSink:  ms,
		Logger:       l,
	}
}

// runStage wraps a single stage in a span and records its duration.
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	span, stageCtx := ddTracer.StartSpanFromContext(ctx, "pipeline."+stage)
	defer span.Finish()

	start := time.Now()
	err := fn(stageCtx)

	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_StageDuration, time.Since(start), []metricsTypes.MetricsLabel{
		{Name: "stage", Value: stage},
		{Name: "hasError", Value: strconv.FormatBool(err != nil)},
	})
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		p.Logger.Sugar().Errorw("Pipeline stage failed",
			zap.String("stage", stage),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	p.Logger.Sugar().Debugw("Pipeline stage complete",
		zap.String("stage", stage),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Run performs one complete reconciliation. Every failure is reported in the
// returned RunResult; Run itself never fails. A failed fetch or ledger read
// ends the run before any ledger write is attempted.
//
// Parameters:
//   - ctx: Context carrying the run's cancellation and deadline
//   - runId: Identifier attached to logs, metrics and the report; generated when empty
//
// Returns:
//   - *rewardsTypes.RunResult: The outcome of the run
func (p *Pipeline) Run(ctx context.Context, runId string) *rewardsTypes.RunResult {
	if runId == "" {
		runId = uuid.New().String()
	}
	dryRun := p.globalConfig.AllocationConfig.DryRun

	span, ctx := ddTracer.StartSpanFromContext(ctx, "pipeline.Run")
	span.SetTag("run_id", runId)
	span.SetTag("dry_run", dryRun)
	defer span.Finish()

	result := &rewardsTypes.RunResult{
		RunId:     runId,
		Completed: make([]*rewardsTypes.ExecutedOperation, 0),
	}
	p.Logger.Sugar().Infow("Starting reconciliation run",
		zap.String("runId", runId),
		zap.Bool("dryRun", dryRun),
	)

	start := time.Now()
	defer func() {
		result.Messages = p.reporter.Messages()

		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_RunCompleted, []metricsTypes.MetricsLabel{
			{Name: "status", Value: string(result.Status)},
			{Name: "dry_run", Value: strconv.FormatBool(dryRun)},
		}, 1)
		_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_RunDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "status", Value: string(result.Status)},
		})
		span.SetTag("status", string(result.Status))
		span.SetTag("completed_operations", len(result.Completed))
		span.SetTag("total_duration_ms", time.Since(start).Milliseconds())

		p.Logger.Sugar().Infow("Finished reconciliation run",
			zap.String("runId", runId),
			zap.String("status", string(result.Status)),
			zap.Int("completed", len(result.Completed)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	var users []*forum.User
	err := p.runStage(ctx, "FetchSnapshot", func(ctx context.Context) error {
		var err error
		users, err = p.source.FetchActiveUsers(ctx)
		if err != nil {
			var sourceErr *rewardsTypes.SourceUnavailableError
			if !errors.As(err, &sourceErr) {
				err = &rewardsTypes.SourceUnavailableError{Err: err}
			}
		}
		return err
	})
	if err != nil {
		return p.abort(ctx, result, err)
	}

	_ = p.runStage(ctx, "NormalizeSnapshot", func(ctx context.Context) error {
		result.Snapshot = p.normalizer.Normalize(users)
		return nil
	})
	p.gaugeSnapshot(result.Snapshot)
	p.reporter.SnapshotComplete(ctx, result.Snapshot)

	var entries []*rewardsTypes.RegisteredEntry
	err = p.runStage(ctx, "ListRegisteredIdentities", func(ctx context.Context) error {
		var err error
		entries, err = p.reader.ListRegisteredIdentities(ctx)
		return err
	})
	if err != nil {
		return p.abort(ctx, result, err)
	}
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_RegisteredEntries, float64(len(entries)), nil)
	p.reporter.RegisteredComplete(ctx, entries)

	err = p.runStage(ctx, "Reconcile", func(ctx context.Context) error {
		var err error
		result.Qualified, err = p.reconciler.Reconcile(ctx, result.Snapshot, entries)
		return err
	})
	if err != nil {
		return p.abort(ctx, result, err)
	}
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_QualifiedIdentities, float64(len(result.Qualified)), nil)
	p.reporter.QualifiedComplete(ctx, result.Qualified)

	var plan *rewardsTypes.Plan
	err = p.runStage(ctx, "Plan", func(ctx context.Context) error {
		var err error
		plan, err = p.planner.Plan(ctx, result.Qualified)
		return err
	})
	if err != nil {
		return p.abort(ctx, result, err)
	}
	result.Plan = plan
	p.gaugePlan(plan)
	p.reporter.PlanComplete(ctx, plan, dryRun)

	var execution *executor.Execution
	_ = p.runStage(ctx, "Execute", func(ctx context.Context) error {
		execution = p.executor.Execute(ctx, plan)
		return execution.Error
	})

	result.Plan = &rewardsTypes.Plan{
		CountUpdates:    plan.CountUpdates,
		Deltas:          plan.Deltas,
		Refill:          execution.Refill,
		RefillOperation: execution.RefillOperation,
	}
	result.Status = execution.Status
	result.Completed = execution.Completed
	result.FailedOperation = execution.FailedOperation
	result.UnconfirmedOperation = execution.UnconfirmedOperation
	result.Error = execution.Error
	return result
}

// abort ends a run that failed before any ledger write.
func (p *Pipeline) abort(ctx context.Context, result *rewardsTypes.RunResult, err error) *rewardsTypes.RunResult {
	result.Status = rewardsTypes.RunStatus_Failed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		result.Status = rewardsTypes.RunStatus_Cancelled
	}
	result.Error = err
	p.reporter.RunFailed(ctx, err, result.Completed)
	return result
}

func (p *Pipeline) gaugeSnapshot(snapshot *rewardsTypes.Snapshot) {
	counts := map[string]int{
		"active":    len(snapshot.Records),
		"inactive":  snapshot.Inactive,
		"malformed": snapshot.Malformed,
		"duplicate": snapshot.Duplicates,
	}
	for kind, count := range counts {
		_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_SnapshotRecords, float64(count), []metricsTypes.MetricsLabel{
			{Name: "kind", Value: kind},
		})
	}
}

func (p *Pipeline) gaugePlan(plan *rewardsTypes.Plan) {
	refills := 0
	if plan.RefillOperation != nil {
		refills = 1
	}
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_PlannedOperations, float64(len(plan.CountUpdates)), []metricsTypes.MetricsLabel{
		{Name: "operation", Value: string(rewardsTypes.OperationType_SetCount)},
	})
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_PlannedOperations, float64(refills), []metricsTypes.MetricsLabel{
		{Name: "operation", Value: string(rewardsTypes.OperationType_Refill)},
	})
	if plan.Refill != nil {
		amount, _ := plan.Refill.RefillAmount.Float64()
		_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_RefillAmount, amount, nil)
	}
}
