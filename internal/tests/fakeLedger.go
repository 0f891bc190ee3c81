package tests

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/forum-rewards/rewarder/pkg/clients/ledger"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
)

var FakeLedgerAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")

var ErrFakeRpc = errors.New("fake rpc failure")

// WalletFor derives a stable fake wallet from an identity.
func WalletFor(identity string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(identity))[12:])
}

// FakeLedger is an in-memory LedgerClient. Mutations are applied to its state
// on confirmation, so reads after a confirmed write observe them.
type FakeLedger struct {
	lock sync.Mutex

	Registered []string
	Counts     map[string]uint64
	Wallets    map[string]common.Address
	Balance    *big.Int
	Unclaimed  *big.Int

	// UnclaimedPerCount is added to Unclaimed for every unit written by a
	// confirmed setCount, like a ledger that accrues rewards on update.
	UnclaimedPerCount *big.Int

	// ReadErrors fails the named read ("totalRegistered", "recordedCount", ...).
	ReadErrors map[string]error
	// SubmitErrors and ConfirmErrors fail the write for an identity, or for "transfer".
	SubmitErrors  map[string]error
	ConfirmErrors map[string]error
	// BeforeConfirm, when set, runs at the start of every Confirm.
	BeforeConfirm func(ctx context.Context) error

	SetCountCalls []*SetCountCall
	TransferCalls []*TransferCall
	ReadCalls     map[string]int
}

type SetCountCall struct {
	Identity string
	Value    *big.Int
}

type TransferCall struct {
	To     common.Address
	Amount *big.Int
}

func NewFakeLedger(registered []string, counts map[string]uint64) *FakeLedger {
	wallets := make(map[string]common.Address)
	for _, r := range registered {
		wallets[r] = WalletFor(r)
	}
	if counts == nil {
		counts = make(map[string]uint64)
	}
	return &FakeLedger{
		Registered:    registered,
		Counts:        counts,
		Wallets:       wallets,
		Balance:       big.NewInt(0),
		Unclaimed:     big.NewInt(0),
		ReadErrors:    make(map[string]error),
		SubmitErrors:  make(map[string]error),
		ConfirmErrors: make(map[string]error),
		ReadCalls:     make(map[string]int),
	}
}

func (f *FakeLedger) read(call string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ReadCalls[call]++
	return f.ReadErrors[call]
}

func (f *FakeLedger) GetReadCalls(call string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.ReadCalls[call]
}

func (f *FakeLedger) Address() common.Address {
	return FakeLedgerAddress
}

func (f *FakeLedger) TotalRegistered(ctx context.Context) (uint64, error) {
	if err := f.read("totalRegistered"); err != nil {
		return 0, err
	}
	return uint64(len(f.Registered)), nil
}

func (f *FakeLedger) RegisteredIdentityAt(ctx context.Context, index uint64) (string, error) {
	if err := f.read("registeredIdentityAt"); err != nil {
		return "", err
	}
	if index >= uint64(len(f.Registered)) {
		return "", fmt.Errorf("index %d out of bounds", index)
	}
	return f.Registered[index], nil
}

func (f *FakeLedger) RecordedCount(ctx context.Context, identity string) (uint64, error) {
	if err := f.read("recordedCount"); err != nil {
		return 0, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.Counts[identity], nil
}

func (f *FakeLedger) WalletAddress(ctx context.Context, identity string) (common.Address, error) {
	if err := f.read("walletAddress"); err != nil {
		return common.Address{}, err
	}
	wallet, ok := f.Wallets[identity]
	if !ok {
		return common.Address{}, rewardsTypes.ErrNotRegistered
	}
	return wallet, nil
}

func (f *FakeLedger) LedgerBalance(ctx context.Context) (*big.Int, error) {
	if err := f.read("ledgerBalance"); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return new(big.Int).Set(f.Balance), nil
}

func (f *FakeLedger) UnclaimedTotal(ctx context.Context) (*big.Int, error) {
	if err := f.read("unclaimedTotal"); err != nil {
		return nil, err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return new(big.Int).Set(f.Unclaimed), nil
}

func (f *FakeLedger) SetCount(ctx context.Context, identity string, value *big.Int) (ledger.PendingTransaction, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.SetCountCalls = append(f.SetCountCalls, &SetCountCall{Identity: identity, Value: new(big.Int).Set(value)})
	if err := f.SubmitErrors[identity]; err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrSubmissionFailed, err)
	}

	written := new(big.Int).Set(value)
	return &fakePendingTransaction{
		ledger:  f,
		hash:    common.BytesToHash(crypto.Keccak256([]byte(fmt.Sprintf("setCount:%s:%s", identity, value.String())))),
		confirm: f.ConfirmErrors[identity],
		apply: func() {
			f.Counts[identity] = written.Uint64()
			if f.UnclaimedPerCount != nil {
				f.Unclaimed.Add(f.Unclaimed, new(big.Int).Mul(written, f.UnclaimedPerCount))
			}
		},
	}, nil
}

func (f *FakeLedger) Transfer(ctx context.Context, to common.Address, amount *big.Int) (ledger.PendingTransaction, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.TransferCalls = append(f.TransferCalls, &TransferCall{To: to, Amount: new(big.Int).Set(amount)})
	if err := f.SubmitErrors["transfer"]; err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrSubmissionFailed, err)
	}

	transferred := new(big.Int).Set(amount)
	return &fakePendingTransaction{
		ledger:  f,
		hash:    common.BytesToHash(crypto.Keccak256([]byte(fmt.Sprintf("transfer:%s:%s", to.Hex(), amount.String())))),
		confirm: f.ConfirmErrors["transfer"],
		apply: func() {
			if to == FakeLedgerAddress {
				f.Balance.Add(f.Balance, transferred)
			}
		},
	}, nil
}

type fakePendingTransaction struct {
	ledger  *FakeLedger
	hash    common.Hash
	confirm error
	apply   func()
}

func (p *fakePendingTransaction) Hash() common.Hash {
	return p.hash
}

func (p *fakePendingTransaction) Confirm(ctx context.Context) error {
	if p.ledger.BeforeConfirm != nil {
		if err := p.ledger.BeforeConfirm(ctx); err != nil {
			return fmt.Errorf("%w: %w", ledger.ErrConfirmationFailed, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrConfirmationFailed, err)
	}
	if p.confirm != nil {
		return fmt.Errorf("%w: %w", ledger.ErrConfirmationFailed, p.confirm)
	}

	p.ledger.lock.Lock()
	defer p.ledger.lock.Unlock()
	p.apply()
	return nil
}
