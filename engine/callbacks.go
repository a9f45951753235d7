package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/TheDonCipher/flashliq/types"
)

// Address returns the engine's own ledger address.
func (e *Engine) Address() common.Address {
	return e.self
}

// ExecuteOperation is the pool-style flash loan callback. It is authorized
// only when the sender is the configured pool source, the initiator is the
// engine itself, and a loan is actually in flight; each violation fails with
// its own condition. Repayment is passive: the engine leaves the lender an
// allowance of principal plus premium to pull once this returns true.
func (e *Engine) ExecuteOperation(ctx context.Context, sender common.Address, assets []common.Address, amounts, premiums []*big.Int, initiator common.Address, params any) (bool, error) {
	e.mu.Lock()
	if sender != e.poolSource.Address() {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: unexpected caller %s", ErrUnauthorizedFlashLoan, sender.Hex())
	}
	if initiator != e.self {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: unexpected initiator %s", ErrUnauthorizedFlashLoan, initiator.Hex())
	}
	if !e.inFlight {
		e.mu.Unlock()
		return false, ErrNotInFlashLoan
	}
	e.phase = phaseCallbackAuthorized
	e.mu.Unlock()

	desc, ok := params.(*types.LiquidationCall)
	if !ok {
		return false, fmt.Errorf("%w: unexpected callback payload", ErrUnauthorizedFlashLoan)
	}
	if len(assets) != 1 || len(amounts) != 1 || len(premiums) != 1 || assets[0] != desc.DebtAsset {
		return false, fmt.Errorf("%w: callback assets do not match the requested loan", ErrUnauthorizedFlashLoan)
	}

	owed := new(big.Int).Add(amounts[0], premiums[0])
	if err := e.runLiquidation(ctx, desc, owed); err != nil {
		return false, err
	}

	if err := e.ledger.Approve(desc.DebtAsset, e.self, sender, owed); err != nil {
		return false, fmt.Errorf("failed to grant repayment allowance: %w", err)
	}
	e.setPhase(phaseRepaid)
	return true, nil
}

// ReceiveFlashLoan is the vault-style flash loan callback. There is no
// initiator to check; repayment is active, by transfer before returning. The
// vault verifies receipt independently.
func (e *Engine) ReceiveFlashLoan(ctx context.Context, sender common.Address, tokens []common.Address, amounts, feeAmounts []*big.Int, userData any) error {
	e.mu.Lock()
	if sender != e.vaultSource.Address() {
		e.mu.Unlock()
		return fmt.Errorf("%w: unexpected caller %s", ErrUnauthorizedFlashLoan, sender.Hex())
	}
	if !e.inFlight {
		e.mu.Unlock()
		return ErrNotInFlashLoan
	}
	e.phase = phaseCallbackAuthorized
	e.mu.Unlock()

	desc, ok := userData.(*types.LiquidationCall)
	if !ok {
		return fmt.Errorf("%w: unexpected callback payload", ErrUnauthorizedFlashLoan)
	}
	if len(tokens) != 1 || len(amounts) != 1 || len(feeAmounts) != 1 || tokens[0] != desc.DebtAsset {
		return fmt.Errorf("%w: callback tokens do not match the requested loan", ErrUnauthorizedFlashLoan)
	}

	owed := new(big.Int).Add(amounts[0], feeAmounts[0])
	if err := e.runLiquidation(ctx, desc, owed); err != nil {
		return err
	}

	if err := e.ledger.Transfer(desc.DebtAsset, e.self, sender, owed); err != nil {
		return fmt.Errorf("failed to repay flash loan: %w", err)
	}
	e.setPhase(phaseRepaid)
	return nil
}
