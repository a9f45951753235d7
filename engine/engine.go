package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/dex"
	"github.com/TheDonCipher/flashliq/flashloan"
	"github.com/TheDonCipher/flashliq/ledger"
	"github.com/TheDonCipher/flashliq/lending"
	"github.com/TheDonCipher/flashliq/types"
)

// phase tracks where one execution stands. Every phase has a fail-closed
// edge straight back to phaseIdle through the snapshot revert.
type phase int

const (
	phaseIdle phase = iota
	phaseLoanRequested
	phaseCallbackAuthorized
	phaseLiquidated
	phaseSwapped
	phaseProfitVerified
	phaseRepaid
)

// EventSink receives audit events emitted on successful state changes.
type EventSink interface {
	Emit(event any)
}

// Params are the caller-supplied arguments of one liquidation attempt.
type Params struct {
	LendingProtocol common.Address
	Borrower        common.Address
	CollateralAsset common.Address
	DebtAsset       common.Address
	DebtAmount      *big.Int
	MinProfit       *big.Int
	Convention      types.LendingConvention
}

// Config wires an Engine to its collaborators.
type Config struct {
	Ledger *ledger.Ledger
	Logger *zap.Logger

	// Self is the engine's own ledger address; Owner the account allowed to
	// call privileged entry points; Treasury the profit destination.
	Self     common.Address
	Owner    common.Address
	Treasury common.Address

	PoolSource  flashloan.PoolLender
	VaultSource flashloan.VaultLender

	PrimaryVenue  dex.Venue
	FallbackVenue dex.Venue

	Protocols *lending.Registry

	// Events is optional; nil means events are only logged.
	Events EventSink
	// HistorySize bounds the execution history; zero means
	// DefaultHistorySize.
	HistorySize int
}

// Engine executes flash-loan liquidations atomically: within one ledger
// transaction it borrows the debt asset, liquidates the borrower, swaps the
// seized collateral back, verifies the minimum profit, forwards the surplus
// to the treasury and repays the loan. Any failure anywhere in that chain
// reverts the whole transaction.
type Engine struct {
	mu sync.Mutex

	ledger *ledger.Ledger
	log    *zap.Logger

	self     common.Address
	owner    common.Address
	pending  common.Address
	treasury common.Address
	paused   bool

	poolSource  flashloan.PoolLender
	vaultSource flashloan.VaultLender
	primary     dex.Venue
	fallback    dex.Venue
	protocols   *lending.Registry

	// Transaction-scoped state. entered is the single-flight lock; inFlight
	// is true only between requesting a loan and that request returning.
	entered  bool
	inFlight bool
	phase    phase
	result   *callResult

	sink    EventSink
	metrics *engineMetrics
	history *History
}

// callResult is set by the callback body and read back by the outer call
// once the loan source returns.
type callResult struct {
	profit  *big.Int
	gasUsed uint64
}

var (
	_ flashloan.PoolReceiver  = (*Engine)(nil)
	_ flashloan.VaultReceiver = (*Engine)(nil)
)

// New validates the wiring and creates an engine. All five collaborator
// addresses must be non-zero, mirroring the constructor contract.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Protocols == nil {
		return nil, fmt.Errorf("protocol registry cannot be nil")
	}
	if cfg.Self == (common.Address{}) {
		return nil, fmt.Errorf("%w: engine address", ErrInvalidAddress)
	}
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner", ErrInvalidAddress)
	}
	if cfg.Treasury == (common.Address{}) {
		return nil, fmt.Errorf("%w: treasury", ErrInvalidAddress)
	}
	if cfg.PoolSource == nil || cfg.PoolSource.Address() == (common.Address{}) {
		return nil, fmt.Errorf("%w: pool loan source", ErrInvalidAddress)
	}
	if cfg.VaultSource == nil || cfg.VaultSource.Address() == (common.Address{}) {
		return nil, fmt.Errorf("%w: vault loan source", ErrInvalidAddress)
	}
	if cfg.PrimaryVenue == nil || cfg.PrimaryVenue.Address() == (common.Address{}) {
		return nil, fmt.Errorf("%w: primary swap venue", ErrInvalidAddress)
	}
	if cfg.FallbackVenue == nil || cfg.FallbackVenue.Address() == (common.Address{}) {
		return nil, fmt.Errorf("%w: fallback swap venue", ErrInvalidAddress)
	}

	history, err := newHistory(cfg.HistorySize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		ledger:      cfg.Ledger,
		log:         cfg.Logger,
		self:        cfg.Self,
		owner:       cfg.Owner,
		treasury:    cfg.Treasury,
		poolSource:  cfg.PoolSource,
		vaultSource: cfg.VaultSource,
		primary:     cfg.PrimaryVenue,
		fallback:    cfg.FallbackVenue,
		protocols:   cfg.Protocols,
		sink:        cfg.Events,
		metrics:     newEngineMetrics(),
		history:     history,
	}, nil
}

// Execute runs a liquidation funded by the pool-style loan source.
func (e *Engine) Execute(ctx context.Context, caller common.Address, p Params) error {
	return e.execute(ctx, caller, p, false)
}

// ExecuteWithVaultLoan runs a liquidation funded by the vault-style loan
// source.
func (e *Engine) ExecuteWithVaultLoan(ctx context.Context, caller common.Address, p Params) error {
	return e.execute(ctx, caller, p, true)
}

func (e *Engine) execute(ctx context.Context, caller common.Address, p Params, useVault bool) (err error) {
	source := "pool"
	if useVault {
		source = "vault"
	}
	start := time.Now()

	e.mu.Lock()
	if caller != e.owner {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOwner, caller.Hex())
	}
	if e.paused {
		e.mu.Unlock()
		return ErrPaused
	}
	if e.entered {
		e.mu.Unlock()
		return ErrReentrantCall
	}
	if verr := validateParams(p); verr != nil {
		e.mu.Unlock()
		return verr
	}
	e.entered = true
	e.mu.Unlock()

	e.metrics.inFlight.Inc()
	var profit *big.Int
	defer func() {
		e.metrics.inFlight.Dec()
		e.metrics.observe(source, start, profit, err)
		e.mu.Lock()
		e.entered = false
		e.phase = phaseIdle
		e.result = nil
		e.mu.Unlock()
	}()

	desc := &types.LiquidationCall{
		LendingProtocol: p.LendingProtocol,
		Borrower:        p.Borrower,
		CollateralAsset: p.CollateralAsset,
		DebtAsset:       p.DebtAsset,
		DebtAmount:      new(big.Int).Set(p.DebtAmount),
		MinProfit:       new(big.Int).Set(p.MinProfit),
		UseVaultLoan:    useVault,
		Convention:      p.Convention,
	}

	snap := e.ledger.Snapshot()

	e.mu.Lock()
	e.inFlight = true
	e.phase = phaseLoanRequested
	e.result = nil
	e.mu.Unlock()

	assets := []common.Address{desc.DebtAsset}
	amounts := []*big.Int{desc.DebtAmount}
	if useVault {
		err = e.vaultSource.FlashLoan(ctx, e, assets, amounts, desc)
	} else {
		err = e.poolSource.FlashLoan(ctx, e.self, e, assets, amounts, desc)
	}

	// Cleared unconditionally once the loan request returns, on every path.
	e.mu.Lock()
	e.inFlight = false
	res := e.result
	e.mu.Unlock()

	if err != nil {
		e.ledger.Revert(snap)
		e.log.Warn("liquidation aborted",
			zap.String("source", source),
			zap.String("protocol", desc.LendingProtocol.Hex()),
			zap.String("borrower", desc.Borrower.Hex()),
			zap.Error(err))
		return err
	}
	if res == nil {
		e.ledger.Revert(snap)
		err = fmt.Errorf("loan source returned without running the liquidation callback")
		return err
	}
	profit = res.profit

	event := types.LiquidationExecuted{
		Protocol: desc.LendingProtocol,
		Borrower: desc.Borrower,
		Profit:   new(big.Int).Set(res.profit),
		GasUsed:  res.gasUsed,
	}
	e.history.add(&Record{
		Fingerprint: Fingerprint(desc),
		Protocol:    desc.LendingProtocol,
		Borrower:    desc.Borrower,
		Source:      source,
		Profit:      new(big.Int).Set(res.profit),
		GasUsed:     res.gasUsed,
		ExecutedAt:  time.Now(),
	})
	e.log.Info("liquidation executed",
		zap.String("source", source),
		zap.String("protocol", desc.LendingProtocol.Hex()),
		zap.String("borrower", desc.Borrower.Hex()),
		zap.String("profit", res.profit.String()),
		zap.Uint64("gas_used", res.gasUsed))
	e.emit(event)
	return nil
}

// runLiquidation is the callback body shared by both loan styles: liquidate,
// swap, verify profit, forward the surplus. owed is principal plus the loan
// cost.
func (e *Engine) runLiquidation(ctx context.Context, desc *types.LiquidationCall, owed *big.Int) error {
	gasStart := e.ledger.GasUsed()
	if err := e.dispatchLiquidation(ctx, desc); err != nil {
		return err
	}
	gasUsed := e.ledger.GasUsed() - gasStart
	e.setPhase(phaseLiquidated)

	collateral := e.ledger.BalanceOf(desc.CollateralAsset, e.self)
	if collateral.Sign() == 0 {
		// Also the escape hatch for a hostile protocol address: taking the
		// debt asset without delivering collateral reads as a worthless
		// execution and reverts.
		return fmt.Errorf("%w: liquidation yielded no collateral", ErrInsufficientProfit)
	}

	debtBefore := e.ledger.BalanceOf(desc.DebtAsset, e.self)
	if err := e.swapCollateral(ctx, desc, collateral, owed); err != nil {
		return err
	}
	e.setPhase(phaseSwapped)
	debtAfter := e.ledger.BalanceOf(desc.DebtAsset, e.self)

	// Net conversion gain over the cost of closing the loan, not gross
	// revenue.
	profit := new(big.Int).Sub(debtAfter, debtBefore)
	profit.Sub(profit, owed)
	if profit.Cmp(desc.MinProfit) < 0 {
		return fmt.Errorf("%w: profit %s below minimum %s", ErrInsufficientProfit, profit, desc.MinProfit)
	}
	e.setPhase(phaseProfitVerified)

	if err := e.ledger.Transfer(desc.DebtAsset, e.self, e.Treasury(), profit); err != nil {
		return fmt.Errorf("failed to forward profit: %w", err)
	}

	e.mu.Lock()
	e.result = &callResult{profit: profit, gasUsed: gasUsed}
	e.mu.Unlock()
	return nil
}

// dispatchLiquidation grants the protocol an exact allowance, invokes the
// convention the descriptor selects, and clears the allowance whatever the
// outcome.
func (e *Engine) dispatchLiquidation(ctx context.Context, desc *types.LiquidationCall) error {
	proto, ok := e.protocols.Resolve(desc.LendingProtocol)
	if !ok {
		return fmt.Errorf("%w: unknown lending protocol %s", ErrInvalidAddress, desc.LendingProtocol.Hex())
	}

	if err := e.ledger.Approve(desc.DebtAsset, e.self, desc.LendingProtocol, desc.DebtAmount); err != nil {
		return err
	}

	var callErr error
	switch desc.Convention {
	case types.ConventionDebtCovering:
		p, ok := proto.(lending.DebtCoveringProtocol)
		if !ok {
			callErr = fmt.Errorf("protocol %s does not speak the debt-covering convention", desc.LendingProtocol.Hex())
		} else {
			callErr = p.LiquidationCall(ctx, e.self, desc.CollateralAsset, desc.DebtAsset, desc.Borrower, desc.DebtAmount, true)
		}
	case types.ConventionRepayBorrow:
		p, ok := proto.(lending.RepayBorrowProtocol)
		if !ok {
			callErr = fmt.Errorf("protocol %s does not speak the repay-borrow convention", desc.LendingProtocol.Hex())
		} else {
			callErr = p.LiquidateBorrow(ctx, e.self, desc.Borrower, desc.DebtAmount, desc.CollateralAsset)
		}
	default:
		callErr = fmt.Errorf("unknown liquidation convention %d", desc.Convention)
	}

	if aerr := e.ledger.Approve(desc.DebtAsset, e.self, desc.LendingProtocol, big.NewInt(0)); aerr != nil && callErr == nil {
		callErr = aerr
	}
	if callErr != nil {
		return fmt.Errorf("liquidation call failed: %w", callErr)
	}
	return nil
}

// swapCollateral converts the full seized collateral balance back into the
// debt asset. The minimum acceptable output on both venues is the amount
// owed on the loan: the swap must at least make the engine whole before
// profit is even evaluated.
func (e *Engine) swapCollateral(ctx context.Context, desc *types.LiquidationCall, amountIn, minOut *big.Int) error {
	if _, err := e.trySwap(ctx, e.primary, desc, amountIn, minOut); err != nil {
		e.log.Warn("primary swap venue failed, attempting fallback",
			zap.String("venue", e.primary.Name()),
			zap.Error(err))
		if _, ferr := e.trySwap(ctx, e.fallback, desc, amountIn, minOut); ferr != nil {
			return fmt.Errorf("%w: %s: %v; %s: %v",
				ErrSwapFailed, e.primary.Name(), err, e.fallback.Name(), ferr)
		}
	}
	return nil
}

// trySwap runs one venue attempt inside its own snapshot so a failed attempt
// leaves nothing behind for the next one.
func (e *Engine) trySwap(ctx context.Context, venue dex.Venue, desc *types.LiquidationCall, amountIn, minOut *big.Int) (*big.Int, error) {
	snap := e.ledger.Snapshot()
	if err := e.ledger.Approve(desc.CollateralAsset, e.self, venue.Address(), amountIn); err != nil {
		return nil, err
	}
	out, err := venue.SwapExactInput(ctx, e.self, desc.CollateralAsset, desc.DebtAsset, amountIn, minOut)
	if aerr := e.ledger.Approve(desc.CollateralAsset, e.self, venue.Address(), big.NewInt(0)); aerr != nil && err == nil {
		err = aerr
	}
	if err != nil {
		e.ledger.Revert(snap)
		return nil, err
	}
	return out, nil
}

func (e *Engine) setPhase(p phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

func (e *Engine) emit(event any) {
	if e.sink != nil {
		e.sink.Emit(event)
	}
}

// History returns the execution history.
func (e *Engine) History() *History {
	return e.history
}

// Metrics returns the engine's prometheus collectors for registration.
func (e *Engine) Metrics() []prometheus.Collector {
	return e.metrics.Collectors()
}

func validateParams(p Params) error {
	switch {
	case p.LendingProtocol == (common.Address{}):
		return fmt.Errorf("%w: lending protocol", ErrInvalidAddress)
	case p.Borrower == (common.Address{}):
		return fmt.Errorf("%w: borrower", ErrInvalidAddress)
	case p.CollateralAsset == (common.Address{}):
		return fmt.Errorf("%w: collateral asset", ErrInvalidAddress)
	case p.DebtAsset == (common.Address{}):
		return fmt.Errorf("%w: debt asset", ErrInvalidAddress)
	case p.DebtAmount == nil || p.DebtAmount.Sign() <= 0:
		return fmt.Errorf("%w: debt amount", ErrInvalidAmount)
	case p.MinProfit == nil || p.MinProfit.Sign() <= 0:
		return fmt.Errorf("%w: minimum profit", ErrInvalidAmount)
	}
	return nil
}
