package balancer

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
	vaultAddr    = common.HexToAddress("0x12")
	receiverAddr = common.HexToAddress("0xE1")
	token        = common.HexToAddress("0x62")
)

// mockReceiver repays by transfer before returning, as the vault protocol
// requires. shortBy withholds part of the repayment.
type mockReceiver struct {
	ledger   *ledger.Ledger
	addr     common.Address
	failWith error
	shortBy  *big.Int

	sender common.Address
	fees   []*big.Int
}

func (m *mockReceiver) Address() common.Address {
	return m.addr
}

func (m *mockReceiver) ReceiveFlashLoan(ctx context.Context, sender common.Address, tokens []common.Address, amounts, feeAmounts []*big.Int, userData any) error {
	m.sender = sender
	m.fees = feeAmounts
	if m.failWith != nil {
		return m.failWith
	}
	for i, tok := range tokens {
		owed := new(big.Int).Add(amounts[i], feeAmounts[i])
		if m.shortBy != nil {
			owed.Sub(owed, m.shortBy)
		}
		if err := m.ledger.Transfer(tok, m.addr, sender, owed); err != nil {
			return err
		}
	}
	return nil
}

func TestFee(t *testing.T) {
	l := ledger.New()

	v, err := NewVault(l, vaultAddr, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "0", v.Fee(big.NewInt(10000)).String())

	v, err = NewVault(l, vaultAddr, 50, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "50", v.Fee(big.NewInt(10000)).String())
}

func TestNewVaultValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	l := ledger.New()

	_, err := NewVault(nil, vaultAddr, 0, logger)
	require.Error(t, err)
	_, err = NewVault(l, common.Address{}, 0, logger)
	require.Error(t, err)
	_, err = NewVault(l, vaultAddr, -1, logger)
	require.Error(t, err)
	_, err = NewVault(l, vaultAddr, 0, nil)
	require.Error(t, err)
}

func TestVaultFlashLoan(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, feeBps int64) (*ledger.Ledger, *Vault, *mockReceiver) {
		t.Helper()
		l := ledger.New()
		v, err := NewVault(l, vaultAddr, feeBps, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, l.Mint(token, vaultAddr, big.NewInt(1000000)))
		r := &mockReceiver{ledger: l, addr: receiverAddr}
		require.NoError(t, l.Mint(token, receiverAddr, big.NewInt(100)))
		return l, v, r
	}

	t.Run("RepaidFeeFree", func(t *testing.T) {
		l, v, r := setup(t, 0)
		err := v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{big.NewInt(10000)}, nil)
		require.NoError(t, err)
		assert.Equal(t, "1000000", l.BalanceOf(token, vaultAddr).String())
		assert.Equal(t, "100", l.BalanceOf(token, receiverAddr).String())
		assert.Equal(t, vaultAddr, r.sender)
		require.Len(t, r.fees, 1)
		assert.Equal(t, "0", r.fees[0].String())
	})

	t.Run("RepaidWithFee", func(t *testing.T) {
		l, v, r := setup(t, 50)
		err := v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{big.NewInt(10000)}, nil)
		require.NoError(t, err)
		// The 50 bps fee stays with the vault.
		assert.Equal(t, "1000050", l.BalanceOf(token, vaultAddr).String())
		assert.Equal(t, "50", l.BalanceOf(token, receiverAddr).String())
	})

	t.Run("UnderRepaymentRejected", func(t *testing.T) {
		_, v, r := setup(t, 50)
		r.shortBy = big.NewInt(1)
		err := v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{big.NewInt(10000)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flash loan not repaid")
	})

	t.Run("CallbackError", func(t *testing.T) {
		_, v, r := setup(t, 0)
		r.failWith = errors.New("boom")
		err := v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{big.NewInt(10000)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flash loan callback failed")
	})

	t.Run("InsufficientLiquidity", func(t *testing.T) {
		_, v, r := setup(t, 0)
		err := v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{big.NewInt(1000001)}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient vault liquidity")
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		_, v, r := setup(t, 0)
		require.Error(t, v.FlashLoan(ctx, nil, []common.Address{token}, []*big.Int{big.NewInt(1)}, nil))
		require.Error(t, v.FlashLoan(ctx, r, nil, nil, nil))
		require.Error(t, v.FlashLoan(ctx, r, []common.Address{token}, []*big.Int{nil}, nil))
	})
}
