// Package ledger is the client for the on-chain reward ledger: a rewarder
// contract holding registrations, recorded counts and wallet bindings, and
// the ERC-20 token it pays rewards in.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSubmissionFailed wraps errors raised before a transaction was accepted by the node.
	ErrSubmissionFailed = errors.New("transaction submission failed")
	// ErrConfirmationFailed wraps errors raised while waiting for, or inspecting, the receipt.
	ErrConfirmationFailed = errors.New("transaction confirmation failed")
)

// PendingTransaction is the confirmable handle returned by mutating calls.
type PendingTransaction interface {
	Hash() common.Hash
	// Confirm blocks until the transaction is mined successfully, the
	// transaction reverts, or ctx is done.
	Confirm(ctx context.Context) error
}

// LedgerClient is the capability the reconciliation engine is given; it is
// never accessed as a package level singleton.
type LedgerClient interface {
	// Address is the ledger contract address, the destination of refills.
	Address() common.Address

	TotalRegistered(ctx context.Context) (uint64, error)
	RegisteredIdentityAt(ctx context.Context, index uint64) (string, error)
	RecordedCount(ctx context.Context, identity string) (uint64, error)
	WalletAddress(ctx context.Context, identity string) (common.Address, error)
	LedgerBalance(ctx context.Context) (*big.Int, error)
	UnclaimedTotal(ctx context.Context) (*big.Int, error)

	SetCount(ctx context.Context, identity string, value *big.Int) (PendingTransaction, error)
	Transfer(ctx context.Context, to common.Address, amount *big.Int) (PendingTransaction, error)
}
