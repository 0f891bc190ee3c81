// Package executor applies a plan to the ledger one operation at a time and
// reports every step. It never retries and never lets a failure escape as
// anything other than a result value.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/forum-rewards/rewarder/pkg/allocationPlanner"
	"github.com/forum-rewards/rewarder/pkg/clients/ledger"
	"github.com/forum-rewards/rewarder/pkg/metrics"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
)

type ExecutorConfig struct {
	// DryRun reports the plan without sending any transaction.
	DryRun bool
}

// Execution is the outcome of applying a plan.
type Execution struct {
	Status    rewardsTypes.RunStatus
	Completed []*rewardsTypes.ExecutedOperation

	FailedOperation      *rewardsTypes.Operation
	UnconfirmedOperation *rewardsTypes.ExecutedOperation

	// Refill and RefillOperation are the refill actually acted on, which is
	// re-read once count updates have been confirmed.
	Refill          *rewardsTypes.RefillDecision
	RefillOperation *rewardsTypes.Operation

	Error error
}

type Executor struct {
	ledger      ledger.LedgerClient
	planner     *allocationPlanner.AllocationPlanner
	reporter    *Reporter
	metricsSink *metrics.MetricsSink
	config      *ExecutorConfig
	logger      *zap.Logger
}

func NewExecutor(
	lc ledger.LedgerClient,
	planner *allocationPlanner.AllocationPlanner,
	reporter *Reporter,
	ms *metrics.MetricsSink,
	cfg *ExecutorConfig,
	l *zap.Logger,
) *Executor {
	return &Executor{
		ledger:      lc,
		planner:     planner,
		reporter:    reporter,
		metricsSink: ms,
		config:      cfg,
		logger:      l,
	}
}

func (e *Executor) incr(name string, labels []metricsTypes.MetricsLabel) {
	if e.metricsSink == nil {
		return
	}
	_ = e.metricsSink.Incr(name, labels, 1)
}

// Execute applies every count update, then the refill. The first failure
// halts the run; nothing after it is attempted.
func (e *Executor) Execute(ctx context.Context, plan *rewardsTypes.Plan) *Execution {
	execution := &Execution{
		Completed:       make([]*rewardsTypes.ExecutedOperation, 0),
		Refill:          plan.Refill,
		RefillOperation: plan.RefillOperation,
	}

	for _, op := range plan.CountUpdates {
		if done := e.applyOrHalt(ctx, execution, op); done {
			return execution
		}
	}

	if len(execution.Completed) > 0 {
		decision, refillOp, err := e.planner.PlanRefill(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.cancel(ctx, execution, nil, err)
				return execution
			}
			return e.fail(ctx, execution, nil, err)
		}
		execution.Refill = decision
		execution.RefillOperation = refillOp
	}

	e.reporter.RefillDecision(ctx, execution.Refill)

	if execution.RefillOperation != nil {
		if done := e.applyOrHalt(ctx, execution, execution.RefillOperation); done {
			return execution
		}
	}

	execution.Status = rewardsTypes.RunStatus_Succeeded
	e.reporter.RunCompleted(ctx, execution.Completed, e.config.DryRun)
	return execution
}

// applyOrHalt applies a single operation and records the outcome. It returns
// true when the run must stop.
func (e *Executor) applyOrHalt(ctx context.Context, execution *Execution, op *rewardsTypes.Operation) bool {
	if err := ctx.Err(); err != nil {
		e.cancel(ctx, execution, nil, err)
		return true
	}

	if e.config.DryRun {
		e.reporter.OperationSkipped(ctx, op)
		return false
	}

	executed, err := e.apply(ctx, op)
	if err != nil {
		if ctx.Err() != nil {
			e.cancel(ctx, execution, executed, err)
			return true
		}
		e.fail(ctx, execution, op, err)
		return true
	}

	execution.Completed = append(execution.Completed, executed)
	e.reporter.OperationSucceeded(ctx, executed)
	return false
}

func (e *Executor) apply(ctx context.Context, op *rewardsTypes.Operation) (*rewardsTypes.ExecutedOperation, error) {
	opLabel := []metricsTypes.MetricsLabel{{Name: "operation", Value: string(op.Type)}}

	var pending ledger.PendingTransaction
	var err error
	switch op.Type {
	case rewardsTypes.OperationType_SetCount:
		pending, err = e.ledger.SetCount(ctx, op.Identity, op.Value)
	case rewardsTypes.OperationType_Refill:
		pending, err = e.ledger.Transfer(ctx, op.To, op.Amount)
	default:
		err = fmt.Errorf("unknown operation type '%s'", op.Type)
	}
	if err != nil {
		e.logger.Sugar().Errorw("Failed to submit operation",
			zap.String("operation", op.String()),
			zap.Error(err),
		)
		return nil, &rewardsTypes.LedgerWriteError{Operation: op, Stage: rewardsTypes.WriteStage_Submit, Err: err}
	}
	e.incr(metricsTypes.Metric_Incr_OperationSubmitted, opLabel)

	executed := &rewardsTypes.ExecutedOperation{Operation: op, TxHash: pending.Hash()}
	e.logger.Sugar().Infow("Waiting for confirmation",
		zap.String("operation", op.String()),
		zap.String("txHash", executed.TxHash.Hex()),
	)

	if err := pending.Confirm(ctx); err != nil {
		e.logger.Sugar().Errorw("Failed to confirm operation",
			zap.String("operation", op.String()),
			zap.String("txHash", executed.TxHash.Hex()),
			zap.Error(err),
		)
		return executed, &rewardsTypes.LedgerWriteError{Operation: op, Stage: rewardsTypes.WriteStage_Confirm, Err: err}
	}
	e.incr(metricsTypes.Metric_Incr_OperationConfirmed, opLabel)
	return executed, nil
}

func (e *Executor) fail(ctx context.Context, execution *Execution, op *rewardsTypes.Operation, err error) *Execution {
	execution.Status = rewardsTypes.RunStatus_Failed
	execution.FailedOperation = op
	execution.Error = err

	var writeErr *rewardsTypes.LedgerWriteError
	if errors.As(err, &writeErr) {
		e.incr(metricsTypes.Metric_Incr_OperationFailed, []metricsTypes.MetricsLabel{
			{Name: "operation", Value: string(writeErr.Operation.Type)},
			{Name: "stage", Value: string(writeErr.Stage)},
		})
	}

	e.logger.Sugar().Errorw("Halting run",
		zap.Int("completed", len(execution.Completed)),
		zap.Error(err),
	)
	e.reporter.RunFailed(ctx, err, execution.Completed)
	return execution
}

// cancel records a cancellation. When the signal arrived while a submitted
// transaction was awaiting confirmation, that transaction is reported as
// unconfirmed rather than failed or completed.
func (e *Executor) cancel(ctx context.Context, execution *Execution, unconfirmed *rewardsTypes.ExecutedOperation, err error) {
	execution.Status = rewardsTypes.RunStatus_Cancelled
	execution.UnconfirmedOperation = unconfirmed
	if unconfirmed != nil {
		execution.FailedOperation = unconfirmed.Operation
		execution.Error = fmt.Errorf("run cancelled while confirming %s (tx %s): %w",
			unconfirmed.Operation.String(), unconfirmed.TxHash.Hex(), err)
	} else {
		execution.Error = fmt.Errorf("run cancelled after %d completed operations: %w", len(execution.Completed), err)
	}

	e.logger.Sugar().Warnw("Run cancelled",
		zap.Int("completed", len(execution.Completed)),
		zap.Bool("unconfirmed", unconfirmed != nil),
		zap.Error(err),
	)
	e.reporter.RunFailed(ctx, execution.Error, execution.Completed)
}
