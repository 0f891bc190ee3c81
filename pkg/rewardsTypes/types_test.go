package rewardsTypes

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func Test_RewardsTypes(t *testing.T) {
	t.Run("Should compute the refill as unclaimed minus balance", func(t *testing.T) {
		d := NewRefillDecision(big.NewInt(120), big.NewInt(50))
		assert.Equal(t, "70", d.RefillAmount.String())
		assert.True(t, d.NeedsRefill())
	})
	t.Run("Should not refill when the balance covers unclaimed rewards", func(t *testing.T) {
		d := NewRefillDecision(big.NewInt(80), big.NewInt(100))
		assert.Equal(t, "0", d.RefillAmount.String())
		assert.False(t, d.NeedsRefill())

		d = NewRefillDecision(big.NewInt(100), big.NewInt(100))
		assert.False(t, d.NeedsRefill())
	})
	t.Run("Should treat nil amounts as zero", func(t *testing.T) {
		d := NewRefillDecision(nil, nil)
		assert.Equal(t, "0", d.UnclaimedTotal.String())
		assert.Equal(t, "0", d.LedgerBalance.String())
		assert.False(t, d.NeedsRefill())
	})
	t.Run("Should compute a negative delta without wrapping", func(t *testing.T) {
		q := &QualifiedIdentity{Identity: "a@x.com", ObservedCount: 2, RecordedCount: 5}
		assert.Equal(t, "-3", q.Delta().String())
		assert.False(t, (&AllocationDelta{Identity: q.Identity, Delta: q.Delta()}).IsActionable())

		q = &QualifiedIdentity{Identity: "a@x.com", ObservedCount: 5, RecordedCount: 2}
		assert.True(t, (&AllocationDelta{Identity: q.Identity, Delta: q.Delta()}).IsActionable())
	})
	t.Run("Should copy operation values", func(t *testing.T) {
		v := big.NewInt(3)
		op := NewSetCountOperation("a@x.com", v)
		v.SetInt64(10)
		assert.Equal(t, "setCount(a@x.com, 3)", op.String())

		to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		refill := NewRefillOperation(to, big.NewInt(70))
		assert.Equal(t, "transfer("+to.Hex()+", 70)", refill.String())
	})
	t.Run("Should list count updates before the refill", func(t *testing.T) {
		p := &Plan{
			CountUpdates: []*Operation{
				NewSetCountOperation("a@x.com", big.NewInt(1)),
				NewSetCountOperation("c@x.com", big.NewInt(2)),
			},
			RefillOperation: NewRefillOperation(common.Address{}, big.NewInt(5)),
		}
		ops := p.Operations()
		assert.Len(t, ops, 3)
		assert.Equal(t, OperationType_Refill, ops[2].Type)

		assert.Len(t, (&Plan{}).Operations(), 0)
	})
	t.Run("Should unwrap typed errors", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := error(&LedgerReadError{Call: "recordedCount", Err: cause})
		assert.True(t, errors.Is(err, cause))

		var readErr *LedgerReadError
		assert.True(t, errors.As(err, &readErr))
		assert.Equal(t, "recordedCount", readErr.Call)
	})
}
