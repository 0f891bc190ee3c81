package ledgerReader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/forum-rewards/rewarder/internal/logger"
	"github.com/forum-rewards/rewarder/internal/tests"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProgress struct {
	count atomic.Int64
}

func (c *countingProgress) Add(num int) error {
	c.count.Add(int64(num))
	return nil
}

func setup(t *testing.T) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)
	return l
}

func Test_LedgerReader(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	t.Run("Should list registered identities in index order", func(t *testing.T) {
		registered := make([]string, 0, 50)
		for i := 0; i < 50; i++ {
			registered = append(registered, fmt.Sprintf("user%d@x.com", i))
		}
		fake := tests.NewFakeLedger(registered, nil)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{ReadConcurrency: 4}, l)

		progress := &countingProgress{}
		reader.SetProgressReporter(progress)

		entries, err := reader.ListRegisteredIdentities(ctx)
		require.Nil(t, err)
		require.Len(t, entries, 50)
		for i, entry := range entries {
			assert.Equal(t, uint64(i), entry.Index)
			assert.Equal(t, registered[i], entry.Identity)
		}
		assert.Equal(t, int64(50), progress.count.Load())
		assert.Equal(t, 1, fake.GetReadCalls("totalRegistered"))
		assert.Equal(t, 50, fake.GetReadCalls("registeredIdentityAt"))
	})
	t.Run("Should return an empty list when nothing is registered", func(t *testing.T) {
		fake := tests.NewFakeLedger(nil, nil)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		entries, err := reader.ListRegisteredIdentities(ctx)
		assert.Nil(t, err)
		assert.Len(t, entries, 0)
		assert.Equal(t, 0, fake.GetReadCalls("registeredIdentityAt"))
	})
	t.Run("Should default the read concurrency", func(t *testing.T) {
		reader := NewLedgerReader(tests.NewFakeLedger(nil, nil), &LedgerReaderConfig{}, l)
		assert.Equal(t, DefaultReadConcurrency, reader.ReadConcurrency())
	})
	t.Run("Should wrap a failed total read as a LedgerReadError", func(t *testing.T) {
		fake := tests.NewFakeLedger([]string{"a@x.com"}, nil)
		fake.ReadErrors["totalRegistered"] = tests.ErrFakeRpc
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		_, err := reader.ListRegisteredIdentities(ctx)
		var readErr *rewardsTypes.LedgerReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, "totalRegistered", readErr.Call)
		assert.True(t, errors.Is(err, tests.ErrFakeRpc))
	})
	t.Run("Should fail the whole listing if any index read fails", func(t *testing.T) {
		fake := tests.NewFakeLedger([]string{"a@x.com", "b@x.com", "c@x.com"}, nil)
		fake.ReadErrors["registeredIdentityAt"] = tests.ErrFakeRpc
		reader := NewLedgerReader(fake, &LedgerReaderConfig{ReadConcurrency: 2}, l)

		entries, err := reader.ListRegisteredIdentities(ctx)
		assert.Nil(t, entries)
		var readErr *rewardsTypes.LedgerReadError
		require.True(t, errors.As(err, &readErr))
		assert.Equal(t, "registeredIdentityAt", readErr.Call)
	})
	t.Run("Should read counts, zero for unknown identities", func(t *testing.T) {
		fake := tests.NewFakeLedger([]string{"a@x.com"}, map[string]uint64{"a@x.com": 2})
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		count, err := reader.GetRecordedCount(ctx, "a@x.com")
		assert.Nil(t, err)
		assert.Equal(t, uint64(2), count)

		count, err = reader.GetRecordedCount(ctx, "nobody@x.com")
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), count)
	})
	t.Run("Should pass ErrNotRegistered through unwrapped", func(t *testing.T) {
		fake := tests.NewFakeLedger([]string{"a@x.com"}, nil)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		wallet, err := reader.GetWalletAddress(ctx, "a@x.com")
		assert.Nil(t, err)
		assert.Equal(t, tests.WalletFor("a@x.com"), wallet)

		_, err = reader.GetWalletAddress(ctx, "nobody@x.com")
		assert.Equal(t, rewardsTypes.ErrNotRegistered, err)
	})
	t.Run("Should read balance and unclaimed total", func(t *testing.T) {
		fake := tests.NewFakeLedger(nil, nil)
		fake.Balance.SetInt64(100)
		fake.Unclaimed.SetInt64(80)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		balance, err := reader.GetLedgerBalance(ctx)
		assert.Nil(t, err)
		assert.Equal(t, "100", balance.String())

		unclaimed, err := reader.GetUnclaimedTotal(ctx)
		assert.Nil(t, err)
		assert.Equal(t, "80", unclaimed.String())

		fake.ReadErrors["ledgerBalance"] = tests.ErrFakeRpc
		_, err = reader.GetLedgerBalance(ctx)
		var readErr *rewardsTypes.LedgerReadError
		assert.True(t, errors.As(err, &readErr))
	})
	t.Run("Should resolve identities in input order", func(t *testing.T) {
		fake := tests.NewFakeLedger(
			[]string{"a@x.com", "b@x.com", "c@x.com"},
			map[string]uint64{"a@x.com": 2, "c@x.com": 3},
		)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{ReadConcurrency: 2, ReadsPerSecond: 1000}, l)

		resolved, err := reader.ResolveIdentities(ctx, []string{"c@x.com", "a@x.com", "b@x.com"})
		require.Nil(t, err)
		require.Len(t, resolved, 3)
		assert.Equal(t, uint64(3), resolved[0].RecordedCount)
		assert.Equal(t, tests.WalletFor("c@x.com"), resolved[0].WalletAddress)
		assert.Equal(t, uint64(2), resolved[1].RecordedCount)
		assert.Equal(t, uint64(0), resolved[2].RecordedCount)
	})
	t.Run("Should stop reading when the context is cancelled", func(t *testing.T) {
		fake := tests.NewFakeLedger([]string{"a@x.com"}, nil)
		reader := NewLedgerReader(fake, &LedgerReaderConfig{}, l)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := reader.ListRegisteredIdentities(cancelled)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 0, fake.GetReadCalls("totalRegistered"))
	})
}
