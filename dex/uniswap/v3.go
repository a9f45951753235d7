package uniswap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/dex"
	"github.com/TheDonCipher/flashliq/ledger"
)

// Fee tiers in parts per million, matching the v3 convention where 3000 is
// 0.30%.
const (
	FeeTierLow    = 500
	FeeTierMedium = 3000
	FeeTierHigh   = 10000
)

const ppmDenominator = 1_000_000

// Venue is a fee-tier constant-product venue modelled on the v3 single-hop
// exact-input path. Reserves are the venue's own ledger balances of the two
// tokens, so every swap moves real balances.
type Venue struct {
	ledger  *ledger.Ledger
	addr    common.Address
	feeTier int64
	logger  *zap.Logger
}

var _ dex.Venue = (*Venue)(nil)

// NewVenue creates a venue trading at the given fee tier.
func NewVenue(l *ledger.Ledger, addr common.Address, feeTier int64, logger *zap.Logger) (*Venue, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("venue address cannot be zero")
	}
	if feeTier <= 0 || feeTier >= ppmDenominator {
		return nil, fmt.Errorf("fee tier %d out of range", feeTier)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Venue{ledger: l, addr: addr, feeTier: feeTier, logger: logger}, nil
}

// Address returns the venue's ledger address.
func (v *Venue) Address() common.Address {
	return v.addr
}

// Name returns the venue name.
func (v *Venue) Name() string {
	return "UniswapV3"
}

// Quote returns the output of an exact-input swap against current reserves
// without executing it.
func (v *Venue) Quote(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	reserveIn := v.ledger.BalanceOf(tokenIn, v.addr)
	reserveOut := v.ledger.BalanceOf(tokenOut, v.addr)
	return v.amountOut(amountIn, reserveIn, reserveOut)
}

// SwapExactInput swaps amountIn of tokenIn for at least minAmountOut of
// tokenOut. The output is computed before any balance moves, so a rejected
// swap leaves no side effects.
func (v *Venue) SwapExactInput(ctx context.Context, caller common.Address, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("invalid input amount")
	}

	out, err := v.Quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
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

// amountOut applies the fee tier, then the constant-product formula.
func (v *Venue) amountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("insufficient liquidity")
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(ppmDenominator-v.feeTier))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(ppmDenominator))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}
