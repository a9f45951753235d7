package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/TheDonCipher/flashliq/gas"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// StateHolder is contract-like storage that lives outside the token book but
// inside the same transaction boundary. Holders register with the ledger so
// Snapshot/Revert covers their state too.
type StateHolder interface {
	StateSnapshot() any
	StateRevert(state any)
}

// Ledger is the in-memory token book every component of the system mutates:
// fungible balances and allowances keyed by token and holder address, plus a
// gas meter charged per operation. A Snapshot/Revert pair brackets one atomic
// transaction; reverting restores balances, allowances, gas and every
// registered state holder as if the transaction never ran.
type Ledger struct {
	mu sync.Mutex
	// token -> holder -> balance
	balances map[common.Address]map[common.Address]*big.Int
	// token -> owner -> spender -> remaining allowance
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	meter      *gas.Meter
	states     []StateHolder
}

// Snapshot is an opaque copy of the full ledger state.
type Snapshot struct {
	balances     map[common.Address]map[common.Address]*big.Int
	allowances   map[common.Address]map[common.Address]map[common.Address]*big.Int
	gasUsed      uint64
	holders      []StateHolder
	holderStates []any
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		meter:      gas.NewMeter(),
	}
}

// Mint credits amount of token to holder. Setup-only: it charges no gas and
// is not reachable from any transaction path.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid mint amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, holder, amount)
	return nil
}

// BalanceOf returns a copy of holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meter.Charge(gas.CostBalanceOf)
	return new(big.Int).Set(l.balance(token, holder))
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meter.Charge(gas.CostTransfer)
	return l.move(token, from, to, amount)
}

// Approve sets spender's allowance over owner's token balance to exactly
// amount, replacing any previous allowance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid approval amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meter.Charge(gas.CostApprove)
	byOwner, ok := l.allowances[token]
	if !ok {
		byOwner = make(map[common.Address]map[common.Address]*big.Int)
		l.allowances[token] = byOwner
	}
	bySpender, ok := byOwner[owner]
	if !ok {
		bySpender = make(map[common.Address]*big.Int)
		byOwner[owner] = bySpender
	}
	bySpender[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns a copy of spender's remaining allowance over owner's
// token balance.
func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowance(token, owner, spender))
}

// TransferFrom moves amount of token from `from` to `to` on behalf of
// spender, consuming spender's allowance.
func (l *Ledger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meter.Charge(gas.CostTransfer)
	remaining := l.allowance(token, from, spender)
	if remaining.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spender %s has %s of token %s, needs %s",
			ErrInsufficientAllowance, spender.Hex(), remaining, token.Hex(), amount)
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		l.allowances[token][from][spender] = new(big.Int).Sub(remaining, amount)
	}
	return nil
}

// GasUsed returns the meter reading.
func (l *Ledger) GasUsed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meter.Used()
}

// RegisterState adds a holder to the transaction boundary.
func (l *Ledger) RegisterState(h StateHolder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, h)
}

// Snapshot captures the full ledger state, including the gas meter and every
// registered state holder.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()

	s := &Snapshot{
		balances:   make(map[common.Address]map[common.Address]*big.Int, len(l.balances)),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int, len(l.allowances)),
		gasUsed:    l.meter.Used(),
	}
	for token, holders := range l.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, bal := range holders {
			copied[holder] = new(big.Int).Set(bal)
		}
		s.balances[token] = copied
	}
	for token, owners := range l.allowances {
		copiedOwners := make(map[common.Address]map[common.Address]*big.Int, len(owners))
		for owner, spenders := range owners {
			copied := make(map[common.Address]*big.Int, len(spenders))
			for spender, amt := range spenders {
				copied[spender] = new(big.Int).Set(amt)
			}
			copiedOwners[owner] = copied
		}
		s.allowances[token] = copiedOwners
	}
	s.holders = append([]StateHolder(nil), l.states...)
	// Holders take their own locks; captured outside ours.
	l.mu.Unlock()

	s.holderStates = make([]any, len(s.holders))
	for i, h := range s.holders {
		s.holderStates[i] = h.StateSnapshot()
	}
	return s
}

// Revert restores the state captured by a Snapshot. Every mutation made since
// the snapshot, gas included, is undone.
func (l *Ledger) Revert(s *Snapshot) {
	l.mu.Lock()

	l.balances = make(map[common.Address]map[common.Address]*big.Int, len(s.balances))
	for token, holders := range s.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for holder, bal := range holders {
			copied[holder] = new(big.Int).Set(bal)
		}
		l.balances[token] = copied
	}
	l.allowances = make(map[common.Address]map[common.Address]map[common.Address]*big.Int, len(s.allowances))
	for token, owners := range s.allowances {
		copiedOwners := make(map[common.Address]map[common.Address]*big.Int, len(owners))
		for owner, spenders := range owners {
			copied := make(map[common.Address]*big.Int, len(spenders))
			for spender, amt := range spenders {
				copied[spender] = new(big.Int).Set(amt)
			}
			copiedOwners[owner] = copied
		}
		l.allowances[token] = copiedOwners
	}
	l.meter.Reset(s.gasUsed)
	l.mu.Unlock()

	for i, h := range s.holders {
		h.StateRevert(s.holderStates[i])
	}
}

func (l *Ledger) balance(token, holder common.Address) *big.Int {
	if holders, ok := l.balances[token]; ok {
		if bal, ok := holders[holder]; ok {
			return bal
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) allowance(token, owner, spender common.Address) *big.Int {
	if owners, ok := l.allowances[token]; ok {
		if spenders, ok := owners[owner]; ok {
			if amt, ok := spenders[spender]; ok {
				return amt
			}
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) move(token, from, to common.Address, amount *big.Int) error {
	bal := l.balance(token, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of token %s, needs %s",
			ErrInsufficientBalance, from.Hex(), bal, token.Hex(), amount)
	}
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	holders[from] = new(big.Int).Sub(bal, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *Ledger) credit(token, holder common.Address, amount *big.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	bal, ok := holders[holder]
	if !ok {
		bal = big.NewInt(0)
	}
	holders[holder] = new(big.Int).Add(bal, amount)
}
