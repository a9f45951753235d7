package aave

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/flashloan"
	"github.com/TheDonCipher/flashliq/ledger"
)

// DefaultPremiumBps is the flash loan premium charged by the pool, in basis
// points.
const DefaultPremiumBps = 9

// Pool is a pool-style flash loan source: it transfers the requested assets
// to the receiver, invokes the receiver's callback with an explicit
// initiator, and pulls principal plus premium back through the allowance the
// receiver granted. If the pull fails, the loan was not repaid and the whole
// request fails.
type Pool struct {
	ledger     *ledger.Ledger
	addr       common.Address
	premiumBps int64
	logger     *zap.Logger
}

// NewPool creates a pool-style lender holding liquidity at addr.
func NewPool(l *ledger.Ledger, addr common.Address, premiumBps int64, logger *zap.Logger) (*Pool, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("pool address cannot be zero")
	}
	if premiumBps < 0 {
		return nil, fmt.Errorf("premium cannot be negative")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Pool{ledger: l, addr: addr, premiumBps: premiumBps, logger: logger}, nil
}

// Address returns the pool's ledger address.
func (p *Pool) Address() common.Address {
	return p.addr
}

// Premium returns the flash loan premium for a given amount.
func (p *Pool) Premium(amount *big.Int) *big.Int {
	premium := new(big.Int).Mul(amount, big.NewInt(p.premiumBps))
	return premium.Div(premium, big.NewInt(10000))
}

// FlashLoan lends the requested assets to the receiver for the duration of
// one callback.
func (p *Pool) FlashLoan(ctx context.Context, initiator common.Address, receiver flashloan.PoolReceiver, assets []common.Address, amounts []*big.Int, params any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if receiver == nil {
		return fmt.Errorf("receiver cannot be nil")
	}
	if len(assets) == 0 || len(assets) != len(amounts) {
		return fmt.Errorf("asset and amount lists must be non-empty and equal length")
	}

	premiums := make([]*big.Int, len(assets))
	for i, asset := range assets {
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return fmt.Errorf("invalid loan amount for asset %s", asset.Hex())
		}
		if liquidity := p.ledger.BalanceOf(asset, p.addr); liquidity.Cmp(amounts[i]) < 0 {
			return fmt.Errorf("insufficient pool liquidity for asset %s: have %s, need %s",
				asset.Hex(), liquidity, amounts[i])
		}
		premiums[i] = p.Premium(amounts[i])
	}

	for i, asset := range assets {
		if err := p.ledger.Transfer(asset, p.addr, receiver.Address(), amounts[i]); err != nil {
			return fmt.Errorf("failed to fund flash loan: %w", err)
		}
	}

	ok, err := receiver.ExecuteOperation(ctx, p.addr, assets, amounts, premiums, initiator, params)
	if err != nil {
		return fmt.Errorf("flash loan callback failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("flash loan callback rejected the operation")
	}

	for i, asset := range assets {
		owed := new(big.Int).Add(amounts[i], premiums[i])
		if err := p.ledger.TransferFrom(asset, p.addr, receiver.Address(), p.addr, owed); err != nil {
			return fmt.Errorf("flash loan not repaid: %w", err)
		}
		p.logger.Debug("flash loan repaid",
			zap.String("asset", asset.Hex()),
			zap.String("amount", amounts[i].String()),
			zap.String("premium", premiums[i].String()))
	}
	return nil
}
