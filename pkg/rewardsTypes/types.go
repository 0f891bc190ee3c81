// Package rewardsTypes holds the value records passed between the stages of a
// reconciliation run. Every value is produced once per run and never mutated.
package rewardsTypes

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ActivityRecord is a normalized forum user with a non-zero activity count.
type ActivityRecord struct {
	Identity      string `csv:"identity" yaml:"identity"`
	ActivityCount uint64 `csv:"activity_count" yaml:"activityCount"`
}

// Snapshot is the output of the snapshot normalizer.
type Snapshot struct {
	Records []*ActivityRecord

	// Inactive is the number of source records dropped for having zero activity.
	Inactive int
	// Malformed is the number of source records dropped for missing an identity.
	Malformed int
	// Duplicates is the number of source records that repeated an identity.
	Duplicates int
}

// RegisteredEntry is an identity registered on the ledger, in ledger order.
type RegisteredEntry struct {
	Identity string
	Index    uint64
}

// QualifiedIdentity exists only for identities present in both the snapshot
// and the ledger's registered set.
type QualifiedIdentity struct {
	Identity      string         `yaml:"identity"`
	ObservedCount uint64         `yaml:"observedCount"`
	RecordedCount uint64         `yaml:"recordedCount"`
	WalletAddress common.Address `yaml:"walletAddress"`
}

// Delta returns ObservedCount - RecordedCount without wrapping.
func (q *QualifiedIdentity) Delta() *big.Int {
	observed := new(big.Int).SetUint64(q.ObservedCount)
	return observed.Sub(observed, new(big.Int).SetUint64(q.RecordedCount))
}

type AllocationDelta struct {
	Identity string
	Delta    *big.Int
}

// IsActionable reports whether the delta is owed an allocation.
func (d *AllocationDelta) IsActionable() bool {
	return d.Delta != nil && d.Delta.Sign() > 0
}

type RefillDecision struct {
	UnclaimedTotal *big.Int
	LedgerBalance  *big.Int
	RefillAmount   *big.Int
}

// NewRefillDecision computes max(0, unclaimedTotal - ledgerBalance).
func NewRefillDecision(unclaimedTotal *big.Int, ledgerBalance *big.Int) *RefillDecision {
	unclaimed := orZero(unclaimedTotal)
	balance := orZero(ledgerBalance)

	refill := new(big.Int).Sub(unclaimed, balance)
	if refill.Sign() < 0 {
		refill.SetUint64(0)
	}
	return &RefillDecision{
		UnclaimedTotal: new(big.Int).Set(unclaimed),
		LedgerBalance:  new(big.Int).Set(balance),
		RefillAmount:   refill,
	}
}

func (r *RefillDecision) NeedsRefill() bool {
	return r != nil && r.RefillAmount.Sign() > 0
}

func orZero(i *big.Int) *big.Int {
	if i == nil {
		return big.NewInt(0)
	}
	return i
}

type OperationType string

var (
	OperationType_SetCount OperationType = "setCount"
	OperationType_Refill   OperationType = "refill"
)

// Operation is a single ledger-mutating step of a Plan.
type Operation struct {
	Type OperationType

	// set when Type is OperationType_SetCount
	Identity string
	Value    *big.Int

	// set when Type is OperationType_Refill
	To     common.Address
	Amount *big.Int
}

func NewSetCountOperation(identity string, value *big.Int) *Operation {
	return &Operation{
		Type:     OperationType_SetCount,
		Identity: identity,
		Value:    new(big.Int).Set(value),
	}
}

func NewRefillOperation(to common.Address, amount *big.Int) *Operation {
	return &Operation{
		Type:   OperationType_Refill,
		To:     to,
		Amount: new(big.Int).Set(amount),
	}
}

func (o *Operation) String() string {
	switch o.Type {
	case OperationType_SetCount:
		return fmt.Sprintf("setCount(%s, %s)", o.Identity, o.Value.String())
	case OperationType_Refill:
		return fmt.Sprintf("transfer(%s, %s)", o.To.Hex(), o.Amount.String())
	}
	return string(o.Type)
}

// Plan is the ordered set of ledger mutations for a run. Count updates always
// execute before the refill.
type Plan struct {
	CountUpdates    []*Operation
	Deltas          []*AllocationDelta
	Refill          *RefillDecision
	RefillOperation *Operation
}

// Operations returns every planned operation in execution order.
func (p *Plan) Operations() []*Operation {
	ops := make([]*Operation, 0, len(p.CountUpdates)+1)
	ops = append(ops, p.CountUpdates...)
	if p.RefillOperation != nil {
		ops = append(ops, p.RefillOperation)
	}
	return ops
}

type ExecutedOperation struct {
	Operation *Operation
	TxHash    common.Hash
}

type RunStatus string

var (
	RunStatus_Succeeded RunStatus = "succeeded"
	RunStatus_Failed    RunStatus = "failed"
	RunStatus_Cancelled RunStatus = "cancelled"
)

// RunResult is what a run hands back to its caller. Failures are carried in
// Error rather than returned.
type RunResult struct {
	RunId  string
	Status RunStatus

	Snapshot  *Snapshot
	Qualified []*QualifiedIdentity
	Plan      *Plan

	Completed            []*ExecutedOperation
	FailedOperation      *Operation
	UnconfirmedOperation *ExecutedOperation

	Messages []string
	Error    error
}

func (r *RunResult) Succeeded() bool {
	return r.Status == RunStatus_Succeeded
}
