package aave

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TheDonCipher/flashliq/ledger"
)

var (
	poolAddr     = common.HexToAddress("0x11")
	receiverAddr = common.HexToAddress("0xE1")
	asset        = common.HexToAddress("0x62")
)

// mockReceiver repays by granting the lender an allowance, the way a real
// borrower does.
type mockReceiver struct {
	ledger      *ledger.Ledger
	addr        common.Address
	failWith    error
	reject      bool
	skipApprove bool

	sender    common.Address
	initiator common.Address
	premiums  []*big.Int
}

func (m *mockReceiver) Address() common.Address {
	return m.addr
}

func (m *mockReceiver) ExecuteOperation(ctx context.Context, sender common.Address, assets []common.Address, amounts, premiums []*big.Int, initiator common.Address, params any) (bool, error) {
	m.sender = sender
	m.initiator = initiator
	m.premiums = premiums
	if m.failWith != nil {
		return false, m.failWith
	}
	if m.reject {
		return false, nil
	}
	if !m.skipApprove {
		for i, a := range assets {
			owed := new(big.Int).Add(amounts[i], premiums[i])
			if err := m.ledger.Approve(a, m.addr, sender, owed); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func TestPremium(t *testing.T) {
	l := ledger.New()
	p, err := NewPool(l, poolAddr, DefaultPremiumBps, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "9", p.Premium(big.NewInt(10000)).String())
	assert.Equal(t, "0", p.Premium(big.NewInt(100)).String())
	assert.Equal(t, "900000", p.Premium(big.NewInt(1000000000)).String())
}

func TestNewPoolValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	l := ledger.New()

	_, err := NewPool(nil, poolAddr, 9, logger)
	require.Error(t, err)
	_, err = NewPool(l, common.Address{}, 9, logger)
	require.Error(t, err)
	_, err = NewPool(l, poolAddr, -1, logger)
	require.Error(t, err)
	_, err = NewPool(l, poolAddr, 9, nil)
	require.Error(t, err)
}

func TestFlashLoan(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*ledger.Ledger, *Pool, *mockReceiver) {
		t.Helper()
		l := ledger.New()
		p, err := NewPool(l, poolAddr, DefaultPremiumBps, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, l.Mint(asset, poolAddr, big.NewInt(1000000)))
		r := &mockReceiver{ledger: l, addr: receiverAddr}
		// The premium comes out of the receiver's own funds.
		require.NoError(t, l.Mint(asset, receiverAddr, big.NewInt(100)))
		return l, p, r
	}

	t.Run("RepaidWithPremium", func(t *testing.T) {
		l, p, r := setup(t)
		err := p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(10000)}, nil)
		require.NoError(t, err)

		// Principal plus the 9 bps premium pulled back.
		assert.Equal(t, "1000009", l.BalanceOf(asset, poolAddr).String())
		assert.Equal(t, "91", l.BalanceOf(asset, receiverAddr).String())
		assert.Equal(t, poolAddr, r.sender)
		assert.Equal(t, receiverAddr, r.initiator)
		require.Len(t, r.premiums, 1)
		assert.Equal(t, "9", r.premiums[0].String())
	})

	t.Run("InsufficientLiquidity", func(t *testing.T) {
		_, p, r := setup(t)
		err := p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(1000001)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient pool liquidity")
	})

	t.Run("CallbackError", func(t *testing.T) {
		_, p, r := setup(t)
		r.failWith = errors.New("boom")
		err := p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(10000)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flash loan callback failed")
	})

	t.Run("CallbackRejected", func(t *testing.T) {
		_, p, r := setup(t)
		r.reject = true
		err := p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(10000)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected")
	})

	t.Run("NotRepaid", func(t *testing.T) {
		_, p, r := setup(t)
		r.skipApprove = true
		err := p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(10000)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flash loan not repaid")
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		_, p, r := setup(t)
		require.Error(t, p.FlashLoan(ctx, receiverAddr, nil, []common.Address{asset}, []*big.Int{big.NewInt(1)}, nil))
		require.Error(t, p.FlashLoan(ctx, receiverAddr, r, nil, nil, nil))
		require.Error(t, p.FlashLoan(ctx, receiverAddr, r, []common.Address{asset}, []*big.Int{big.NewInt(0)}, nil))
	})
}
