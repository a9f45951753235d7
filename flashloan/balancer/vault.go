package balancer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/TheDonCipher/flashliq/flashloan"
	"github.com/TheDonCipher/flashliq/ledger"
)

// Vault is a vault-style flash loan source. There is no initiator concept
// and no rate modes: the vault transfers the tokens out, passes an explicit
// fee array to the callback, and checks its own balances afterwards to verify
// the receiver transferred principal plus fee back before returning.
type Vault struct {
	ledger *ledger.Ledger
	addr   common.Address
	feeBps int64
	logger *zap.Logger
}

// NewVault creates a vault-style lender holding liquidity at addr. feeBps may
// be zero; many vault deployments charge no flash loan fee.
func NewVault(l *ledger.Ledger, addr common.Address, feeBps int64, logger *zap.Logger) (*Vault, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("vault address cannot be zero")
	}
	if feeBps < 0 {
		return nil, fmt.Errorf("fee cannot be negative")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Vault{ledger: l, addr: addr, feeBps: feeBps, logger: logger}, nil
}

// Address returns the vault's ledger address.
func (v *Vault) Address() common.Address {
	return v.addr
}

// Fee returns the flash loan fee for a given amount.
func (v *Vault) Fee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(v.feeBps))
	return fee.Div(fee, big.NewInt(10000))
}

// FlashLoan lends the requested tokens and verifies repayment by balance
// comparison once the callback returns.
func (v *Vault) FlashLoan(ctx context.Context, receiver flashloan.VaultReceiver, tokens []common.Address, amounts []*big.Int, userData any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if receiver == nil {
		return fmt.Errorf("receiver cannot be nil")
	}
	if len(tokens) == 0 || len(tokens) != len(amounts) {
		return fmt.Errorf("token and amount lists must be non-empty and equal length")
	}

	fees := make([]*big.Int, len(tokens))
	required := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return fmt.Errorf("invalid loan amount for token %s", token.Hex())
		}
		before := v.ledger.BalanceOf(token, v.addr)
		if before.Cmp(amounts[i]) < 0 {
			return fmt.Errorf("insufficient vault liquidity for token %s: have %s, need %s",
				token.Hex(), before, amounts[i])
		}
		fees[i] = v.Fee(amounts[i])
		// Post-callback floor: the pre-loan balance plus the fee.
		required[i] = new(big.Int).Add(before, fees[i])
	}

	for i, token := range tokens {
		if err := v.ledger.Transfer(token, v.addr, receiver.Address(), amounts[i]); err != nil {
			return fmt.Errorf("failed to fund flash loan: %w", err)
		}
	}

	if err := receiver.ReceiveFlashLoan(ctx, v.addr, tokens, amounts, fees, userData); err != nil {
		return fmt.Errorf("flash loan callback failed: %w", err)
	}

	for i, token := range tokens {
		after := v.ledger.BalanceOf(token, v.addr)
		if after.Cmp(required[i]) < 0 {
			return fmt.Errorf("flash loan not repaid: vault holds %s of token %s, requires %s",
				after, token.Hex(), required[i])
		}
		v.logger.Debug("flash loan repaid",
			zap.String("token", token.Hex()),
			zap.String("amount", amounts[i].String()),
			zap.String("fee", fees[i].String()))
	}
	return nil
}
