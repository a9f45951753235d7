package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/types"
)

// Administrative entry points. All are owner-only and deliberately ignore
// the pause flag, so a paused engine can still be reconfigured or drained.

// Pause stops the execute entry points. Idempotent.
func (e *Engine) Pause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = true
	e.log.Info("engine paused", zap.String("by", caller.Hex()))
	return nil
}

// Unpause re-enables the execute entry points.
func (e *Engine) Unpause(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.paused = false
	e.log.Info("engine unpaused", zap.String("by", caller.Hex()))
	return nil
}

// SetTreasury rotates the profit destination. All subsequent profit and
// rescued tokens flow to the new address immediately.
func (e *Engine) SetTreasury(caller, newTreasury common.Address) error {
	e.mu.Lock()
	if err := e.requireOwner(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	if newTreasury == (common.Address{}) {
		e.mu.Unlock()
		return fmt.Errorf("%w: treasury", ErrInvalidAddress)
	}
	old := e.treasury
	e.treasury = newTreasury
	e.mu.Unlock()

	e.log.Info("treasury updated",
		zap.String("old", old.Hex()),
		zap.String("new", newTreasury.Hex()))
	e.emit(types.TreasuryUpdated{OldTreasury: old, NewTreasury: newTreasury})
	return nil
}

// RescueTokens sweeps a stray token balance held by the engine to the
// treasury. The normal execution flow nets to zero balance, so this only
// matters for off-path accidents.
func (e *Engine) RescueTokens(caller, token common.Address, amount *big.Int) error {
	e.mu.Lock()
	if err := e.requireOwner(caller); err != nil {
		e.mu.Unlock()
		return err
	}
	if token == (common.Address{}) {
		e.mu.Unlock()
		return fmt.Errorf("%w: token", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() <= 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: rescue amount", ErrInvalidAmount)
	}
	treasury := e.treasury
	e.mu.Unlock()

	if err := e.ledger.Transfer(token, e.self, treasury, amount); err != nil {
		return fmt.Errorf("failed to rescue tokens: %w", err)
	}
	e.log.Info("tokens rescued",
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.String("treasury", treasury.Hex()))
	return nil
}

// TransferOwnership nominates a successor. The handshake completes only when
// the nominee calls AcceptOwnership, so a typo here is recoverable.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner", ErrInvalidAddress)
	}
	e.pending = newOwner
	e.log.Info("ownership transfer initiated",
		zap.String("owner", e.owner.Hex()),
		zap.String("nominee", newOwner.Hex()))
	return nil
}

// AcceptOwnership completes the two-phase transfer. Only the nominated
// successor may call it.
func (e *Engine) AcceptOwnership(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == (common.Address{}) || caller != e.pending {
		return fmt.Errorf("%w: caller is not the nominated owner", ErrNotOwner)
	}
	old := e.owner
	e.owner = e.pending
	e.pending = common.Address{}
	e.log.Info("ownership transferred",
		zap.String("old", old.Hex()),
		zap.String("new", e.owner.Hex()))
	return nil
}

// Owner returns the current owner.
func (e *Engine) Owner() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// PendingOwner returns the nominated successor, if any.
func (e *Engine) PendingOwner() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Treasury returns the current profit destination.
func (e *Engine) Treasury() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasury
}

// Paused reports whether the execute entry points are disabled.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// PoolSource returns the pool-style loan source address.
func (e *Engine) PoolSource() common.Address {
	return e.poolSource.Address()
}

// VaultSource returns the vault-style loan source address.
func (e *Engine) VaultSource() common.Address {
	return e.vaultSource.Address()
}

// PrimaryVenue returns the primary swap venue address.
func (e *Engine) PrimaryVenue() common.Address {
	return e.primary.Address()
}

// FallbackVenue returns the fallback swap venue address.
func (e *Engine) FallbackVenue() common.Address {
	return e.fallback.Address()
}

// requireOwner must be called with e.mu held.
func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller.Hex())
	}
	return nil
}
