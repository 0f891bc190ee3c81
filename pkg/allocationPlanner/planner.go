// Package allocationPlanner turns qualified identities into an ordered plan of
// ledger mutations: one count update per identity that is owed one, followed
// by at most one refill of the ledger's reward token balance.
package allocationPlanner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/forum-rewards/rewarder/internal/config"
	"github.com/forum-rewards/rewarder/pkg/ledgerReader"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
)

type AllocationPlannerConfig struct {
	CountMode config.CountMode
	// LedgerAddress receives refill transfers.
	LedgerAddress common.Address
}

type AllocationPlanner struct {
	reader *ledgerReader.LedgerReader
	config *AllocationPlannerConfig
	logger *zap.Logger
}

func NewAllocationPlanner(reader *ledgerReader.LedgerReader, cfg *AllocationPlannerConfig, l *zap.Logger) *AllocationPlanner {
	if cfg.CountMode == "" {
		cfg.CountMode = config.CountMode_Delta
	}
	return &AllocationPlanner{
		reader: reader,
		config: cfg,
		logger: l,
	}
}

// PlanCountUpdates returns one setCount operation for every qualified identity
// with a positive delta, in qualified order, along with every computed delta.
func (ap *AllocationPlanner) PlanCountUpdates(qualified []*rewardsTypes.QualifiedIdentity) ([]*rewardsTypes.Operation, []*rewardsTypes.AllocationDelta) {
	ops := make([]*rewardsTypes.Operation, 0)
	deltas := make([]*rewardsTypes.AllocationDelta, 0, len(qualified))

	for _, q := range qualified {
		delta := &rewardsTypes.AllocationDelta{
			Identity: q.Identity,
			Delta:    q.Delta(),
		}
		deltas = append(deltas, delta)

		if !delta.IsActionable() {
			ap.logger.Sugar().Debugw("No allocation owed",
				zap.String("identity", q.Identity),
				zap.String("delta", delta.Delta.String()),
			)
			continue
		}

		ops = append(ops, rewardsTypes.NewSetCountOperation(q.Identity, ap.countValue(q, delta)))
	}

	ap.logger.Sugar().Infow("Planned count updates",
		zap.Int("qualified", len(qualified)),
		zap.Int("updates", len(ops)),
		zap.String("countMode", string(ap.config.CountMode)),
	)
	return ops, deltas
}

func (ap *AllocationPlanner) countValue(q *rewardsTypes.QualifiedIdentity, delta *rewardsTypes.AllocationDelta) *big.Int {
	if ap.config.CountMode == config.CountMode_Absolute {
		return new(big.Int).SetUint64(q.ObservedCount)
	}
	return delta.Delta
}

// PlanRefill reads the ledger's current unclaimed total and balance and
// returns the decision, plus a transfer into the ledger when one is needed.
func (ap *AllocationPlanner) PlanRefill(ctx context.Context) (*rewardsTypes.RefillDecision, *rewardsTypes.Operation, error) {
	unclaimed, err := ap.reader.GetUnclaimedTotal(ctx)
	if err != nil {
		return nil, nil, err
	}
	balance, err := ap.reader.GetLedgerBalance(ctx)
	if err != nil {
		return nil, nil, err
	}

	decision := rewardsTypes.NewRefillDecision(unclaimed, balance)
	ap.logger.Sugar().Infow("Computed refill decision",
		zap.String("unclaimedTotal", decision.UnclaimedTotal.String()),
		zap.String("ledgerBalance", decision.LedgerBalance.String()),
		zap.String("refillAmount", decision.RefillAmount.String()),
	)

	if !decision.NeedsRefill() {
		return decision, nil, nil
	}
	return decision, rewardsTypes.NewRefillOperation(ap.config.LedgerAddress, decision.RefillAmount), nil
}

// Plan builds the full plan. The refill is read after count updates are
// planned so it reflects the latest ledger state.
func (ap *AllocationPlanner) Plan(ctx context.Context, qualified []*rewardsTypes.QualifiedIdentity) (*rewardsTypes.Plan, error) {
	ops, deltas := ap.PlanCountUpdates(qualified)

	decision, refillOp, err := ap.PlanRefill(ctx)
	if err != nil {
		return nil, err
	}

	return &rewardsTypes.Plan{
		CountUpdates:    ops,
		Deltas:          deltas,
		Refill:          decision,
		RefillOperation: refillOp,
	}, nil
}
