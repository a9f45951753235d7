package engine

import "errors"

var (
	// ErrInvalidAddress rejects a zero address where a real one is required.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidAmount rejects a zero or missing amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientProfit covers both a liquidation that yields no
	// collateral and a swap that clears the loan but misses the caller's
	// minimum profit; either way the execution was not worth doing.
	ErrInsufficientProfit = errors.New("insufficient profit")
	// ErrUnauthorizedFlashLoan rejects a callback from an unexpected caller
	// or on behalf of an unexpected initiator.
	ErrUnauthorizedFlashLoan = errors.New("unauthorized flash loan callback")
	// ErrNotInFlashLoan rejects a callback arriving while no loan is
	// outstanding.
	ErrNotInFlashLoan = errors.New("no flash loan in progress")
	// ErrSwapFailed means both swap venues declined the conversion.
	ErrSwapFailed = errors.New("swap failed on all venues")
	// ErrNotOwner rejects a privileged call from a non-owner.
	ErrNotOwner = errors.New("caller is not the owner")
	// ErrPaused rejects value-moving entry points while the engine is paused.
	ErrPaused = errors.New("engine is paused")
	// ErrReentrantCall rejects a nested privileged call issued during an
	// in-progress execution.
	ErrReentrantCall = errors.New("reentrant call")
)
