// Package ledgerReader performs the point-in-time reads a run needs from the
// ledger. Independent reads fan out with a small, fixed bound; no read is
// assumed to be consistent with any other.
package ledgerReader

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/forum-rewards/rewarder/pkg/clients/ledger"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const DefaultReadConcurrency = 4

// ProgressReporter receives one Add(1) per completed per-index or
// per-identity read. *progressbar.ProgressBar satisfies it.
type ProgressReporter interface {
	Add(num int) error
}

type LedgerReaderConfig struct {
	// ReadConcurrency bounds the number of in-flight reads.
	ReadConcurrency int
	// ReadsPerSecond limits the read rate; 0 disables the limiter.
	ReadsPerSecond float64
}

type LedgerReader struct {
	ledger   ledger.LedgerClient
	config   *LedgerReaderConfig
	limiter  *rate.Limiter
	progress ProgressReporter
	logger   *zap.Logger
}

func NewLedgerReader(lc ledger.LedgerClient, cfg *LedgerReaderConfig, l *zap.Logger) *LedgerReader {
	if cfg.ReadConcurrency <= 0 {
		cfg.ReadConcurrency = DefaultReadConcurrency
	}

	var limiter *rate.Limiter
	if cfg.ReadsPerSecond > 0 {
		burst := cfg.ReadConcurrency
		limiter = rate.NewLimiter(rate.Limit(cfg.ReadsPerSecond), burst)
	}

	return &LedgerReader{
		ledger:  lc,
		config:  cfg,
		limiter: limiter,
		logger:  l,
	}
}

// SetProgressReporter installs a progress hook. It must be called before any
// read is started.
func (lr *LedgerReader) SetProgressReporter(p ProgressReporter) {
	lr.progress = p
}

func (lr *LedgerReader) ReadConcurrency() int {
	return lr.config.ReadConcurrency
}

func (lr *LedgerReader) wait(ctx context.Context) error {
	if lr.limiter == nil {
		return ctx.Err()
	}
	return lr.limiter.Wait(ctx)
}

func (lr *LedgerReader) tick() {
	if lr.progress != nil {
		_ = lr.progress.Add(1)
	}
}

func readError(call string, err error) error {
	var readErr *rewardsTypes.LedgerReadError
	if errors.As(err, &readErr) {
		return err
	}
	return &rewardsTypes.LedgerReadError{Call: call, Err: err}
}

// ListRegisteredIdentities reads the ledger's registered total and then every
// entry by index, returning them in index order. A total of zero is an empty
// result, not an error.
func (lr *LedgerReader) ListRegisteredIdentities(ctx context.Context) ([]*rewardsTypes.RegisteredEntry, error) {
	if err := lr.wait(ctx); err != nil {
		return nil, readError("totalRegistered", err)
	}
	total, err := lr.ledger.TotalRegistered(ctx)
	if err != nil {
		return nil, readError("totalRegistered", err)
	}

	lr.logger.Sugar().Infow("Reading registered identities", zap.Uint64("total", total))

	entries := make([]*rewardsTypes.RegisteredEntry, total)
	if total == 0 {
		return entries, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(lr.config.ReadConcurrency)

	for i := uint64(0); i < total; i++ {
		index := i
		g.Go(func() error {
			if err := lr.wait(gCtx); err != nil {
				return readError("registeredIdentityAt", err)
			}
			identity, err := lr.ledger.RegisteredIdentityAt(gCtx, index)
			if err != nil {
				lr.logger.Sugar().Errorw("Failed to read registered identity",
					zap.Uint64("index", index),
					zap.Error(err),
				)
				return readError("registeredIdentityAt", err)
			}
			entries[index] = &rewardsTypes.RegisteredEntry{
				Identity: identity,
				Index:    index,
			}
			lr.tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// GetRecordedCount returns zero for identities that were never registered.
func (lr *LedgerReader) GetRecordedCount(ctx context.Context, identity string) (uint64, error) {
	if err := lr.wait(ctx); err != nil {
		return 0, readError("recordedCount", err)
	}
	count, err := lr.ledger.RecordedCount(ctx, identity)
	if err != nil {
		return 0, readError("recordedCount", err)
	}
	return count, nil
}

// GetWalletAddress returns rewardsTypes.ErrNotRegistered, unwrapped, when the
// identity has no registration.
func (lr *LedgerReader) GetWalletAddress(ctx context.Context, identity string) (common.Address, error) {
	if err := lr.wait(ctx); err != nil {
		return common.Address{}, readError("walletAddress", err)
	}
	addr, err := lr.ledger.WalletAddress(ctx, identity)
	if err != nil {
		if errors.Is(err, rewardsTypes.ErrNotRegistered) {
			return common.Address{}, err
		}
		return common.Address{}, readError("walletAddress", err)
	}
	return addr, nil
}

func (lr *LedgerReader) GetLedgerBalance(ctx context.Context) (*big.Int, error) {
	if err := lr.wait(ctx); err != nil {
		return nil, readError("ledgerBalance", err)
	}
	balance, err := lr.ledger.LedgerBalance(ctx)
	if err != nil {
		return nil, readError("ledgerBalance", err)
	}
	return balance, nil
}

func (lr *LedgerReader) GetUnclaimedTotal(ctx context.Context) (*big.Int, error) {
	if err := lr.wait(ctx); err != nil {
		return nil, readError("unclaimedTotal", err)
	}
	unclaimed, err := lr.ledger.UnclaimedTotal(ctx)
	if err != nil {
		return nil, readError("unclaimedTotal", err)
	}
	return unclaimed, nil
}

// ResolvedIdentity is the per-identity ledger state needed to qualify an identity.
type ResolvedIdentity struct {
	RecordedCount uint64
	WalletAddress common.Address
}

// ResolveIdentities reads the recorded count and wallet of every identity with
// bounded concurrency. The result is index aligned with identities.
func (lr *LedgerReader) ResolveIdentities(ctx context.Context, identities []string) ([]*ResolvedIdentity, error) {
	resolved := make([]*ResolvedIdentity, len(identities))
	if len(identities) == 0 {
		return resolved, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(lr.config.ReadConcurrency)

	for i, identity := range identities {
		i, identity := i, identity
		g.Go(func() error {
			count, err := lr.GetRecordedCount(gCtx, identity)
			if err != nil {
				return err
			}
			wallet, err := lr.GetWalletAddress(gCtx, identity)
			if err != nil {
				return err
			}
			resolved[i] = &ResolvedIdentity{
				RecordedCount: count,
				WalletAddress: wallet,
			}
			lr.tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}
