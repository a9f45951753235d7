package gas

// Per-operation ledger costs in gas units. The absolute numbers are loosely
// modelled on ERC-20 call costs; only their stability matters, since the
// engine reports deltas.
const (
	CostTransfer  uint64 = 6500
	CostApprove   uint64 = 4600
	CostBalanceOf uint64 = 400
)

// Meter accumulates the gas consumed by ledger operations. It is owned by a
// single ledger and shares that ledger's locking, so it carries none of its
// own.
type Meter struct {
	used uint64
}

// NewMeter creates a meter with zero consumption.
func NewMeter() *Meter {
	return &Meter{}
}

// Charge adds n units to the meter.
func (m *Meter) Charge(n uint64) {
	m.used += n
}

// Used returns the total units consumed so far.
func (m *Meter) Used() uint64 {
	return m.used
}

// Reset rewinds the meter to a previously observed reading. Used by ledger
// snapshot reverts so a rolled-back transaction leaves no gas trace.
func (m *Meter) Reset(to uint64) {
	m.used = to
}
