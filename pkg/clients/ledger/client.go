package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ClientConfig struct {
	RpcUrl          string
	ChainId         uint64
	ContractAddress common.Address
	// TokenAddress may be left zero, in which case it is read from the
	// ledger's rewardToken() on first use.
	TokenAddress common.Address
	// PrivateKey is hex encoded, with or without 0x. Empty means read-only.
	PrivateKey string
}

// Client implements LedgerClient with go-ethereum bound contracts.
type Client struct {
	contractAddress common.Address
	ledgerAbi       abi.ABI
	tokenAbi        abi.ABI

	caller       bind.ContractCaller
	transactor   bind.ContractTransactor
	receipts     bind.DeployBackend
	transactOpts *bind.TransactOpts

	ledger *bind.BoundContract

	tokenLock    sync.Mutex
	tokenAddress common.Address
	token        *bind.BoundContract

	Logger *zap.Logger
}

// Dial connects to the configured RPC node and returns a Client signing with
// the configured private key, if any.
func Dial(ctx context.Context, cfg *ClientConfig, l *zap.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial ledger rpc")
	}

	var opts *bind.TransactOpts
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse ledger private key")
		}
		opts, err = NewTransactOpts(key, cfg.ChainId)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Loaded ledger signer", zap.String("address", opts.From.Hex()))
	} else {
		l.Sugar().Infow("No ledger private key configured, client is read-only")
	}

	return NewClient(cfg.ContractAddress, cfg.TokenAddress, ec, ec, ec, opts, l)
}

func NewTransactOpts(key *ecdsa.PrivateKey, chainId uint64) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainId))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}
	return opts, nil
}

// NewClient builds a Client over explicit backends. transactor and opts may be
// nil for a read-only client.
func NewClient(
	contractAddress common.Address,
	tokenAddress common.Address,
	caller bind.ContractCaller,
	transactor bind.ContractTransactor,
	receipts bind.DeployBackend,
	opts *bind.TransactOpts,
	l *zap.Logger,
) (*Client, error) {
	ledgerAbi, err := abi.JSON(strings.NewReader(LedgerAbi))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %v", err)
	}
	tokenAbi, err := abi.JSON(strings.NewReader(Erc20Abi))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %v", err)
	}

	c := &Client{
		contractAddress: contractAddress,
		ledgerAbi:       ledgerAbi,
		tokenAbi:        tokenAbi,
		caller:          caller,
		transactor:      transactor,
		receipts:        receipts,
		transactOpts:    opts,
		Logger:          l,
	}
	c.ledger = bind.NewBoundContract(contractAddress, ledgerAbi, caller, transactor, nil)

	if tokenAddress != (common.Address{}) {
		c.tokenAddress = tokenAddress
		c.token = bind.NewBoundContract(tokenAddress, tokenAbi, caller, transactor, nil)
	}
	return c, nil
}

func (c *Client) Address() common.Address {
	return c.contractAddress
}

func (c *Client) call(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (interface{}, error) {
	var result []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &result, method, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}
	if len(result) == 0 || result[0] == nil {
		return nil, fmt.Errorf("got nil or empty result from %s", method)
	}
	return result[0], nil
}

func (c *Client) callBigInt(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (*big.Int, error) {
	res, err := c.call(ctx, contract, method, params...)
	if err != nil {
		return nil, err
	}
	value, ok := res.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("got unexpected result type %T from %s", res, method)
	}
	return value, nil
}

func (c *Client) callUint64(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (uint64, error) {
	value, err := c.callBigInt(ctx, contract, method, params...)
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("result of %s overflows uint64: %s", method, value.String())
	}
	return value.Uint64(), nil
}

func (c *Client) callAddress(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (common.Address, error) {
	res, err := c.call(ctx, contract, method, params...)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := res.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("got unexpected result type %T from %s", res, method)
	}
	return addr, nil
}

func (c *Client) TotalRegistered(ctx context.Context) (uint64, error) {
	return c.callUint64(ctx, c.ledger, "totalRegistered")
}

func (c *Client) RegisteredIdentityAt(ctx context.Context, index uint64) (string, error) {
	res, err := c.call(ctx, c.ledger, "registeredIdentityAt", new(big.Int).SetUint64(index))
	if err != nil {
		return "", err
	}
	identity, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("got unexpected result type %T from registeredIdentityAt", res)
	}
	return identity, nil
}

func (c *Client) RecordedCount(ctx context.Context, identity string) (uint64, error) {
	return c.callUint64(ctx, c.ledger, "recordedCount", identity)
}

// WalletAddress returns rewardsTypes.ErrNotRegistered when the ledger has no
// wallet bound to the identity.
func (c *Client) WalletAddress(ctx context.Context, identity string) (common.Address, error) {
	addr, err := c.callAddress(ctx, c.ledger, "walletOf", identity)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, rewardsTypes.ErrNotRegistered
	}
	return addr, nil
}

func (c *Client) UnclaimedTotal(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, c.ledger, "totalUnclaimed")
}

// LedgerBalance is the reward token balance held by the ledger contract.
func (c *Client) LedgerBalance(ctx context.Context) (*big.Int, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.callBigInt(ctx, token, "balanceOf", c.contractAddress)
}

func (c *Client) getToken(ctx context.Context) (*bind.BoundContract, error) {
	c.tokenLock.Lock()
	defer c.tokenLock.Unlock()

	if c.token != nil {
		return c.token, nil
	}

	addr, err := c.callAddress(ctx, c.ledger, "rewardToken")
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve reward token")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("ledger returned the zero address as reward token")
	}
	c.Logger.Sugar().Infow("Resolved reward token", zap.String("token", addr.Hex()))

	c.tokenAddress = addr
	c.token = bind.NewBoundContract(addr, c.tokenAbi, c.caller, c.transactor, nil)
	return c.token, nil
}

func (c *Client) SetCount(ctx context.Context, identity string, value *big.Int) (PendingTransaction, error) {
	return c.transact(ctx, c.ledger, "setCount", identity, value)
}

// Transfer sends reward tokens from the signer to the given address.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount *big.Int) (PendingTransaction, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return c.transact(ctx, token, "transfer", to, amount)
}

func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) (PendingTransaction, error) {
	if c.transactOpts == nil || c.transactor == nil {
		return nil, fmt.Errorf("%w: ledger client has no signer", ErrSubmissionFailed)
	}

	opts := *c.transactOpts
	opts.Context = ctx

	tx, err := contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSubmissionFailed, method, err)
	}

	c.Logger.Sugar().Infow("Submitted ledger transaction",
		zap.String("method", method),
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
	)
	return NewPendingTransaction(tx, c.receipts, c.Logger), nil
}

type pendingTransaction struct {
	tx      *types.Transaction
	backend bind.DeployBackend
	logger  *zap.Logger
}

func NewPendingTransaction(tx *types.Transaction, backend bind.DeployBackend, l *zap.Logger) PendingTransaction {
	return &pendingTransaction{
		tx:      tx,
		backend: backend,
		logger:  l,
	}
}

func (p *pendingTransaction) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *pendingTransaction) Confirm(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfirmationFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted in block %s",
			ErrConfirmationFailed, p.tx.Hash().Hex(), receipt.BlockNumber.String())
	}

	p.logger.Sugar().Infow("Confirmed ledger transaction",
		zap.String("txHash", p.tx.Hash().Hex()),
		zap.String("blockNumber", receipt.BlockNumber.String()),
		zap.Uint64("gasUsed", receipt.GasUsed),
	)
	return nil
}
