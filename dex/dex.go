package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Venue is a single-hop exact-input swap venue. SwapExactInput pulls
// amountIn of tokenIn from the caller through an allowance, pushes the output
// back, and fails without side effects if the output would fall below
// minAmountOut.
type Venue interface {
	Address() common.Address
	Name() string
	SwapExactInput(ctx context.Context, caller common.Address, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int) (*big.Int, error)
}
