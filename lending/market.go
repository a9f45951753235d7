package lending

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/ledger"
)

// Position is one borrower's account in a Market: posted collateral held by
// the market and outstanding debt.
type Position struct {
	Borrower        common.Address
	CollateralAsset common.Address
	DebtAsset       common.Address
	Collateral      *big.Int
	Debt            *big.Int
}

// MarketConfig parameterizes a simulated lending market.
type MarketConfig struct {
	Address  common.Address
	BonusBps int64 // liquidation bonus paid to the liquidator
	// Collateral units received per debt unit repaid, before the bonus.
	PriceNum *big.Int
	PriceDen *big.Int
}

// Market is a ledger-backed lending market. It holds borrowers' posted
// collateral at its own address and exposes both liquidation conventions;
// either one pulls the repaid debt from the caller through an allowance and
// pushes seized collateral back, bonus included.
type Market struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	cfg       MarketConfig
	positions map[common.Address]*Position
	logger    *zap.Logger
}

var (
	_ DebtCoveringProtocol = (*Market)(nil)
	_ RepayBorrowProtocol  = (*Market)(nil)
)

// NewMarket creates an empty market.
func NewMarket(l *ledger.Ledger, cfg MarketConfig, logger *zap.Logger) (*Market, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("market address cannot be zero")
	}
	if cfg.BonusBps < 0 {
		return nil, fmt.Errorf("bonus cannot be negative")
	}
	if cfg.PriceNum == nil || cfg.PriceNum.Sign() <= 0 || cfg.PriceDen == nil || cfg.PriceDen.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	m := &Market{
		ledger:    l,
		cfg:       cfg,
		positions: make(map[common.Address]*Position),
		logger:    logger,
	}
	l.RegisterState(m)
	return m, nil
}

// StateSnapshot implements ledger.StateHolder so position changes roll back
// together with balances.
func (m *Market) StateSnapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[common.Address]*Position, len(m.positions))
	for borrower, p := range m.positions {
		dup := *p
		dup.Collateral = new(big.Int).Set(p.Collateral)
		dup.Debt = new(big.Int).Set(p.Debt)
		copied[borrower] = &dup
	}
	return copied
}

// StateRevert implements ledger.StateHolder.
func (m *Market) StateRevert(state any) {
	saved, ok := state.(map[common.Address]*Position)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	restored := make(map[common.Address]*Position, len(saved))
	for borrower, p := range saved {
		dup := *p
		dup.Collateral = new(big.Int).Set(p.Collateral)
		dup.Debt = new(big.Int).Set(p.Debt)
		restored[borrower] = &dup
	}
	m.positions = restored
}

// Address returns the market's ledger address.
func (m *Market) Address() common.Address {
	return m.cfg.Address
}

// OpenPosition registers a borrower's position. The collateral backing it
// must already sit at the market's address; callers typically mint it there
// during world setup.
func (m *Market) OpenPosition(p Position) error {
	if p.Borrower == (common.Address{}) {
		return fmt.Errorf("borrower address cannot be zero")
	}
	if p.Collateral == nil || p.Collateral.Sign() < 0 || p.Debt == nil || p.Debt.Sign() < 0 {
		return fmt.Errorf("invalid position amounts")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.positions[p.Borrower]; exists {
		return fmt.Errorf("borrower %s already has a position", p.Borrower.Hex())
	}
	stored := p
	stored.Collateral = new(big.Int).Set(p.Collateral)
	stored.Debt = new(big.Int).Set(p.Debt)
	m.positions[p.Borrower] = &stored
	return nil
}

// PositionOf returns a copy of a borrower's position.
func (m *Market) PositionOf(borrower common.Address) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[borrower]
	if !ok {
		return Position{}, false
	}
	out := *p
	out.Collateral = new(big.Int).Set(p.Collateral)
	out.Debt = new(big.Int).Set(p.Debt)
	return out, true
}

// LiquidationCall implements DebtCoveringProtocol.
func (m *Market) LiquidationCall(ctx context.Context, caller common.Address, collateralAsset, debtAsset, borrower common.Address, debtToCover *big.Int, receiveUnderlying bool) error {
	if !receiveUnderlying {
		return fmt.Errorf("market only delivers underlying collateral")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[borrower]
	if !ok {
		return fmt.Errorf("no position for borrower %s", borrower.Hex())
	}
	if pos.CollateralAsset != collateralAsset || pos.DebtAsset != debtAsset {
		return fmt.Errorf("asset pair does not match borrower position")
	}
	return m.liquidate(ctx, caller, pos, debtToCover)
}

// LiquidateBorrow implements RepayBorrowProtocol. collateralMarket names the
// collateral asset of the position being seized.
func (m *Market) LiquidateBorrow(ctx context.Context, caller common.Address, borrower common.Address, repayAmount *big.Int, collateralMarket common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[borrower]
	if !ok {
		return fmt.Errorf("no position for borrower %s", borrower.Hex())
	}
	if pos.CollateralAsset != collateralMarket {
		return fmt.Errorf("collateral market does not match borrower position")
	}
	return m.liquidate(ctx, caller, pos, repayAmount)
}

// liquidate pulls the repaid debt from the liquidator and pushes seized
// collateral. Callers hold m.mu.
func (m *Market) liquidate(ctx context.Context, caller common.Address, pos *Position, repay *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if repay == nil || repay.Sign() <= 0 {
		return fmt.Errorf("repay amount must be positive")
	}
	if repay.Cmp(pos.Debt) > 0 {
		repay = new(big.Int).Set(pos.Debt)
	}

	seized := m.seizure(repay)
	if seized.Cmp(pos.Collateral) > 0 {
		seized = new(big.Int).Set(pos.Collateral)
	}

	if err := m.ledger.TransferFrom(pos.DebtAsset, m.cfg.Address, caller, m.cfg.Address, repay); err != nil {
		return fmt.Errorf("failed to pull repayment: %w", err)
	}
	if err := m.ledger.Transfer(pos.CollateralAsset, m.cfg.Address, caller, seized); err != nil {
		return fmt.Errorf("failed to deliver seized collateral: %w", err)
	}

	pos.Debt.Sub(pos.Debt, repay)
	pos.Collateral.Sub(pos.Collateral, seized)

	m.logger.Info("position liquidated",
		zap.String("borrower", pos.Borrower.Hex()),
		zap.String("liquidator", caller.Hex()),
		zap.String("repaid", repay.String()),
		zap.String("seized", seized.String()))
	return nil
}

// seizure converts a repaid debt amount into collateral units including the
// liquidation bonus.
func (m *Market) seizure(repay *big.Int) *big.Int {
	seized := new(big.Int).Mul(repay, m.cfg.PriceNum)
	seized.Div(seized, m.cfg.PriceDen)
	seized.Mul(seized, big.NewInt(10000+m.cfg.BonusBps))
	return seized.Div(seized, big.NewInt(10000))
}
