package sushiswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/dex"
	"github.com/TheDonCipher/flashliq/ledger"
)

// Venue is a volatile (non-stable) constant-product pair with the classic
// 0.30% fee, used as the fallback swap venue. Reserves are the venue's own
// ledger balances.
type Venue struct {
	ledger *ledger.Ledger
	addr   common.Address
	logger *zap.Logger
}

var _ dex.Venue = (*Venue)(nil)

// NewVenue creates the fallback venue.
func NewVenue(l *ledger.Ledger, addr common.Address, logger *zap.Logger) (*Venue, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("venue address cannot be zero")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Venue{ledger: l, addr: addr, logger: logger}, nil
}

// Address returns the venue's ledger address.
func (v *Venue) Address() common.Address {
	return v.addr
}

// Name returns the venue name.
func (v *Venue) Name() string {
	return "SushiSwapV2"
}

// SwapExactInput swaps amountIn of tokenIn for at least minAmountOut of
// tokenOut. The output is computed before any balance moves.
func (v *Venue) SwapExactInput(ctx context.Context, caller common.Address, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}

	reserveIn := v.ledger.BalanceOf(tokenIn, v.addr)
	reserveOut := v.ledger.BalanceOf(tokenOut, v.addr)
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("insufficient liquidity")
	}
	out := getAmountOut(amountIn, reserveIn, reserveOut)
	if minAmountOut != nil && out.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("insufficient output: %s below minimum %s", out, minAmountOut)
	}

	if err := v.ledger.TransferFrom(tokenIn, v.addr, caller, v.addr, amountIn); err != nil {
		return nil, fmt.Errorf("failed to pull input: %w", err)
	}
	if err := v.ledger.Transfer(tokenOut, v.addr, caller, out); err != nil {
		return nil, fmt.Errorf("failed to deliver output: %w", err)
	}

	v.logger.Debug("swap executed",
		zap.String("venue", v.Name()),
		zap.String("token_in", tokenIn.Hex()),
		zap.String("token_out", tokenOut.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()))
	return out, nil
}

// getAmountOut is the 997/1000 constant-product output formula.
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, big.NewInt(1000)),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}
