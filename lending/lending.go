package lending

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol is any lending protocol addressable on the ledger. A protocol
// speaks exactly one of the two liquidation conventions below; callers
// discover which by type assertion.
type Protocol interface {
	Address() common.Address
}

// DebtCoveringProtocol liquidates via (collateral, debt, borrower,
// debtToCover, receiveUnderlying): it pulls the debt asset from the caller
// and pushes seized collateral back.
type DebtCoveringProtocol interface {
	Protocol
	LiquidationCall(ctx context.Context, caller common.Address, collateralAsset, debtAsset, borrower common.Address, debtToCover *big.Int, receiveUnderlying bool) error
}

// RepayBorrowProtocol liquidates via (borrower, repayAmount,
// collateralMarket): the debt asset is implied by the borrower's position.
type RepayBorrowProtocol interface {
	Protocol
	LiquidateBorrow(ctx context.Context, caller common.Address, borrower common.Address, repayAmount *big.Int, collateralMarket common.Address) error
}

// Registry resolves lending protocol addresses to their implementations.
type Registry struct {
	mu        sync.RWMutex
	protocols map[common.Address]Protocol
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[common.Address]Protocol)}
}

// Register adds a protocol under its own address.
func (r *Registry) Register(p Protocol) error {
	if p == nil {
		return fmt.Errorf("protocol cannot be nil")
	}
	addr := p.Address()
	if addr == (common.Address{}) {
		return fmt.Errorf("protocol address cannot be zero")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.protocols[addr]; exists {
		return fmt.Errorf("protocol %s already registered", addr.Hex())
	}
	r.protocols[addr] = p
	return nil
}

// Resolve looks up a protocol by address.
func (r *Registry) Resolve(addr common.Address) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[addr]
	return p, ok
}
