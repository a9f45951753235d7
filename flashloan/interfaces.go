package flashloan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolReceiver is implemented by contracts that take pool-style flash loans.
// The lender credits the borrowed assets, then invokes ExecuteOperation with
// itself as sender and the account that requested the loan as initiator. The
// receiver signals acceptance by returning true and must leave the lender an
// allowance of amount+premium per asset; the lender pulls repayment after the
// callback returns.
type PoolReceiver interface {
	Address() common.Address
	ExecuteOperation(ctx context.Context, sender common.Address, assets []common.Address, amounts, premiums []*big.Int, initiator common.Address, params any) (bool, error)
}

// VaultReceiver is implemented by contracts that take vault-style flash
// loans. Repayment is active: the receiver must transfer amount+fee per token
// back to the vault before ReceiveFlashLoan returns. The vault verifies
// receipt independently.
type VaultReceiver interface {
	Address() common.Address
	ReceiveFlashLoan(ctx context.Context, sender common.Address, tokens []common.Address, amounts, feeAmounts []*big.Int, userData any) error
}

// PoolLender is a pool-style flash loan source.
type PoolLender interface {
	Address() common.Address
	FlashLoan(ctx context.Context, initiator common.Address, receiver PoolReceiver, assets []common.Address, amounts []*big.Int, params any) error
}

// VaultLender is a vault-style flash loan source. It has no initiator
// concept and charges an explicit per-token fee.
type VaultLender interface {
	Address() common.Address
	FlashLoan(ctx context.Context, receiver VaultReceiver, tokens []common.Address, amounts []*big.Int, userData any) error
}
