package executor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/forum-rewards/rewarder/pkg/clients/notifier"
	"github.com/forum-rewards/rewarder/pkg/metrics"
	"github.com/forum-rewards/rewarder/pkg/metrics/metricsTypes"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	successPrefix = ":white_check_mark:"
	warningPrefix = ":warning:"

	// upper bound on identities listed in a single message
	maxListedIdentities = 20

	finalNotificationTimeout = 15 * time.Second
)

type ReporterConfig struct {
	TokenDecimals int32
	// TransactionUrl renders a transaction hash, typically as an explorer link.
	TransactionUrl func(txHash string) string
}

// Reporter frames operator-facing progress messages and sends them to the
// notifier. Sending is best effort: a failed notification is logged and the
// run continues.
type Reporter struct {
	notifier    notifier.Notifier
	config      *ReporterConfig
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	lock     sync.Mutex
	messages []string
}

func NewReporter(n notifier.Notifier, cfg *ReporterConfig, ms *metrics.MetricsSink, l *zap.Logger) *Reporter {
	if cfg.TransactionUrl == nil {
		cfg.TransactionUrl = func(txHash string) string { return txHash }
	}
	return &Reporter{
		notifier:    n,
		config:      cfg,
		metricsSink: ms,
		logger:      l,
		messages:    make([]string, 0),
	}
}

// Messages returns every message framed so far, sent or not.
func (r *Reporter) Messages() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Reporter) notify(ctx context.Context, text string) {
	r.lock.Lock()
	r.messages = append(r.messages, text)
	r.lock.Unlock()

	r.logger.Sugar().Infow("Notification", zap.String("text", text))
	if err := r.notifier.Send(ctx, text); err != nil {
		r.logger.Sugar().Errorw("Failed to send notification",
			zap.String("text", text),
			zap.Error(err),
		)
		if r.metricsSink != nil {
			_ = r.metricsSink.Incr(metricsTypes.Metric_Incr_NotificationFailed, nil, 1)
		}
	}
}

// FormatAmount renders a raw token amount in whole token units.
func (r *Reporter) FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -r.config.TokenDecimals).String()
}

func (r *Reporter) describeOperation(op *rewardsTypes.Operation) string {
	if op.Type == rewardsTypes.OperationType_Refill {
		return fmt.Sprintf("refill of %s tokens to %s", r.FormatAmount(op.Amount), op.To.Hex())
	}
	return fmt.Sprintf("count update %s", op.String())
}

func listIdentities(identities []string) string {
	if len(identities) == 0 {
		return "none"
	}
	if len(identities) <= maxListedIdentities {
		return strings.Join(identities, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(identities[:maxListedIdentities], ", "), len(identities)-maxListedIdentities)
}

func (r *Reporter) SnapshotComplete(ctx context.Context, snapshot *rewardsTypes.Snapshot) {
	r.notify(ctx, fmt.Sprintf("%s Forum snapshot complete: %d active users (%d inactive, %d malformed, %d duplicate records skipped)",
		successPrefix, len(snapshot.Records), snapshot.Inactive, snapshot.Malformed, snapshot.Duplicates))
}

func (r *Reporter) RegisteredComplete(ctx context.Context, entries []*rewardsTypes.RegisteredEntry) {
	r.notify(ctx, fmt.Sprintf("%s Ledger registrations read: %d registered identities", successPrefix, len(entries)))
}

func (r *Reporter) QualifiedComplete(ctx context.Context, qualified []*rewardsTypes.QualifiedIdentity) {
	identities := make([]string, 0, len(qualified))
	for _, q := range qualified {
		identities = append(identities, fmt.Sprintf("%s: %d/%d", q.Identity, q.ObservedCount, q.RecordedCount))
	}
	r.notify(ctx, fmt.Sprintf("%s Qualified identities (observed/recorded): %d [%s]",
		successPrefix, len(qualified), listIdentities(identities)))
}

func (r *Reporter) PlanComplete(ctx context.Context, plan *rewardsTypes.Plan, dryRun bool) {
	ops := make([]string, 0, len(plan.CountUpdates))
	for _, op := range plan.CountUpdates {
		ops = append(ops, op.String())
	}
	prefix := successPrefix
	if dryRun {
		prefix = fmt.Sprintf("%s [dry run]", successPrefix)
	}
	r.notify(ctx, fmt.Sprintf("%s Planned %d count updates [%s]", prefix, len(plan.CountUpdates), listIdentities(ops)))
}

func (r *Reporter) OperationSucceeded(ctx context.Context, executed *rewardsTypes.ExecutedOperation) {
	r.notify(ctx, fmt.Sprintf("%s Transaction sent for %s %s",
		successPrefix, r.describeOperation(executed.Operation), r.config.TransactionUrl(executed.TxHash.Hex())))
}

func (r *Reporter) OperationSkipped(ctx context.Context, op *rewardsTypes.Operation) {
	r.notify(ctx, fmt.Sprintf("%s [dry run] Would send %s", successPrefix, r.describeOperation(op)))
}

func (r *Reporter) RefillDecision(ctx context.Context, decision *rewardsTypes.RefillDecision) {
	if decision == nil {
		return
	}
	if !decision.NeedsRefill() {
		r.notify(ctx, fmt.Sprintf("%s No refill needed: ledger balance %s covers unclaimed %s",
			successPrefix, r.FormatAmount(decision.LedgerBalance), r.FormatAmount(decision.UnclaimedTotal)))
		return
	}
	r.notify(ctx, fmt.Sprintf("%s Refill needed: %s tokens (unclaimed %s, ledger balance %s)",
		successPrefix, r.FormatAmount(decision.RefillAmount), r.FormatAmount(decision.UnclaimedTotal), r.FormatAmount(decision.LedgerBalance)))
}

// RunFailed sends the failure notification exactly once. It detaches from
// ctx so the message still goes out when the run was cancelled.
func (r *Reporter) RunFailed(ctx context.Context, err error, completed []*rewardsTypes.ExecutedOperation) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalNotificationTimeout)
	defer cancel()

	r.notify(sendCtx, fmt.Sprintf("%s Transaction failed after %d completed operations: %s",
		warningPrefix, len(completed), err.Error()))
}

func (r *Reporter) RunCompleted(ctx context.Context, completed []*rewardsTypes.ExecutedOperation, dryRun bool) {
	if dryRun {
		r.notify(ctx, fmt.Sprintf("%s [dry run] Run completed, no transactions sent", successPrefix))
		return
	}
	r.notify(ctx, fmt.Sprintf("%s Run completed: %d transactions confirmed", successPrefix, len(completed)))
}
