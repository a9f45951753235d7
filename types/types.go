package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LendingConvention selects which liquidation call shape a lending protocol
// speaks. The two conventions are mutually exclusive; a protocol implements
// exactly one of them.
type LendingConvention int

const (
	// ConventionDebtCovering is the (collateral, debt, borrower, debtToCover,
	// receiveUnderlying) shape: the protocol pulls the debt asset and pushes
	// seized underlying collateral to the caller.
	ConventionDebtCovering LendingConvention = iota
	// ConventionRepayBorrow is the (borrower, repayAmount, collateralMarket)
	// shape.
	ConventionRepayBorrow
)

func (c LendingConvention) String() string {
	switch c {
	case ConventionDebtCovering:
		return "debt_covering"
	case ConventionRepayBorrow:
		return "repay_borrow"
	default:
		return "unknown"
	}
}

// LiquidationCall describes one liquidation the engine should execute. It is
// built from caller-supplied parameters when an execute entry point is
// invoked, threaded through the flash loan request as the opaque callback
// payload, and discarded when the call returns. It is never persisted.
type LiquidationCall struct {
	LendingProtocol common.Address
	Borrower        common.Address
	CollateralAsset common.Address
	DebtAsset       common.Address
	DebtAmount      *big.Int
	MinProfit       *big.Int
	UseVaultLoan    bool
	Convention      LendingConvention
}

// LiquidationExecuted is the audit event emitted after a successful
// execution. GasUsed covers the liquidation dispatch only, not the swap.
type LiquidationExecuted struct {
	Protocol common.Address
	Borrower common.Address
	Profit   *big.Int
	GasUsed  uint64
}

// TreasuryUpdated is emitted when the owner rotates the treasury address.
type TreasuryUpdated struct {
	OldTreasury common.Address
	NewTreasury common.Address
}
