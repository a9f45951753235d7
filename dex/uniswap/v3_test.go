package uniswap

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TheDonCipher/flashliq/ledger"
)

var (
	venueAddr = common.HexToAddress("0x21")
	trader    = common.HexToAddress("0xE1")
	tokenIn   = common.HexToAddress("0x61")
	tokenOut  = common.HexToAddress("0x62")
)

func newTestVenue(t *testing.T, feeTier int64) (*ledger.Ledger, *Venue) {
	t.Helper()
	l := ledger.New()
	v, err := NewVenue(l, venueAddr, feeTier, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, l.Mint(tokenIn, venueAddr, big.NewInt(1000000)))
	require.NoError(t, l.Mint(tokenOut, venueAddr, big.NewInt(1000000)))
	return l, v
}

func TestNewVenueValidation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	l := ledger.New()

	_, err := NewVenue(nil, venueAddr, FeeTierMedium, logger)
	require.Error(t, err)
	_, err = NewVenue(l, common.Address{}, FeeTierMedium, logger)
	require.Error(t, err)
	_, err = NewVenue(l, venueAddr, 0, logger)
	require.Error(t, err)
	_, err = NewVenue(l, venueAddr, ppmDenominator, logger)
	require.Error(t, err)
	_, err = NewVenue(l, venueAddr, FeeTierMedium, nil)
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	_, v := newTestVenue(t, FeeTierMedium)

	// 1000 in against 1e6/1e6 reserves at 0.30%: floor formula gives 996.
	out, err := v.Quote(tokenIn, tokenOut, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "996", out.String())

	t.Run("LowerFeeTierPaysMore", func(t *testing.T) {
		_, low := newTestVenue(t, FeeTierLow)
		lowOut, err := low.Quote(tokenIn, tokenOut, big.NewInt(1000))
		require.NoError(t, err)
		assert.True(t, lowOut.Cmp(out) > 0)
	})

	t.Run("EmptyReserves", func(t *testing.T) {
		l := ledger.New()
		empty, err := NewVenue(l, venueAddr, FeeTierMedium, zaptest.NewLogger(t))
		require.NoError(t, err)
		_, err = empty.Quote(tokenIn, tokenOut, big.NewInt(1000))
		require.Error(t, err)
	})
}

func TestSwapExactInput(t *testing.T) {
	ctx := context.Background()

	t.Run("MovesBalances", func(t *testing.T) {
		l, v := newTestVenue(t, FeeTierMedium)
		require.NoError(t, l.Mint(tokenIn, trader, big.NewInt(1000)))
		require.NoError(t, l.Approve(tokenIn, trader, venueAddr, big.NewInt(1000)))

		out, err := v.SwapExactInput(ctx, trader, tokenIn, tokenOut, big.NewInt(1000), big.NewInt(990))
		require.NoError(t, err)
		assert.Equal(t, "996", out.String())
		assert.Equal(t, "0", l.BalanceOf(tokenIn, trader).String())
		assert.Equal(t, "996", l.BalanceOf(tokenOut, trader).String())
		assert.Equal(t, "1001000", l.BalanceOf(tokenIn, venueAddr).String())
		assert.Equal(t, "999004", l.BalanceOf(tokenOut, venueAddr).String())
	})

	t.Run("MinOutRejectionIsEffectFree", func(t *testing.T) {
		l, v := newTestVenue(t, FeeTierMedium)
		require.NoError(t, l.Mint(tokenIn, trader, big.NewInt(1000)))
		require.NoError(t, l.Approve(tokenIn, trader, venueAddr, big.NewInt(1000)))

		_, err := v.SwapExactInput(ctx, trader, tokenIn, tokenOut, big.NewInt(1000), big.NewInt(997))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient output")
		assert.Equal(t, "1000", l.BalanceOf(tokenIn, trader).String())
		assert.Equal(t, "0", l.BalanceOf(tokenOut, trader).String())
		assert.Equal(t, "1000", l.Allowance(tokenIn, trader, venueAddr).String())
	})

	t.Run("RequiresAllowance", func(t *testing.T) {
		l, v := newTestVenue(t, FeeTierMedium)
		require.NoError(t, l.Mint(tokenIn, trader, big.NewInt(1000)))
		_, err := v.SwapExactInput(ctx, trader, tokenIn, tokenOut, big.NewInt(1000), nil)
		require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	})

	t.Run("RejectsBadAmount", func(t *testing.T) {
		_, v := newTestVenue(t, FeeTierMedium)
		_, err := v.SwapExactInput(ctx, trader, tokenIn, tokenOut, big.NewInt(0), nil)
		require.Error(t, err)
		_, err = v.SwapExactInput(ctx, trader, tokenIn, tokenOut, nil, nil)
		require.Error(t, err)
	})

	t.Run("HonorsContext", func(t *testing.T) {
		_, v := newTestVenue(t, FeeTierMedium)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := v.SwapExactInput(cancelled, trader, tokenIn, tokenOut, big.NewInt(1000), nil)
		require.ErrorIs(t, err, context.Canceled)
	})
}
