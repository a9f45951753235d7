package engine

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/TheDonCipher/flashliq/types"
)

// DefaultHistorySize bounds the execution history when the caller does not
// choose a size.
const DefaultHistorySize = 1024

// Record is one completed execution as kept in the history.
type Record struct {
	Fingerprint uint64
	Protocol    common.Address
	Borrower    common.Address
	Source      string // "pool" or "vault"
	Profit      *big.Int
	GasUsed     uint64
	ExecutedAt  time.Time
}

// History is a bounded cache of completed executions keyed by descriptor
// fingerprint. The off-chain caller uses it for dedupe telemetry; it carries
// no authority over execution.
type History struct {
	mu    sync.Mutex
	cache *lru.Cache
	// last survives cache eviction; the newest record stays reachable even
	// once the LRU has cycled.
	last *Record
}

func newHistory(size int) (*History, error) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return &History{cache: cache}, nil
}

func (h *History) add(rec *Record) {
	h.mu.Lock()
	h.last = rec
	h.mu.Unlock()
	h.cache.Add(rec.Fingerprint, rec)
}

// LastExecution returns the most recently completed execution, if any.
func (h *History) LastExecution() (*Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil, false
	}
	return h.last, true
}

// Get returns the record for a descriptor fingerprint, if still cached.
func (h *History) Get(fingerprint uint64) (*Record, bool) {
	v, ok := h.cache.Get(fingerprint)
	if !ok {
		return nil, false
	}
	return v.(*Record), true
}

// Len returns the number of cached records.
func (h *History) Len() int {
	return h.cache.Len()
}

// Fingerprint hashes the identifying fields of a liquidation call.
func Fingerprint(c *types.LiquidationCall) uint64 {
	h := xxhash.New()
	h.Write(c.LendingProtocol.Bytes())
	h.Write(c.Borrower.Bytes())
	h.Write(c.CollateralAsset.Bytes())
	h.Write(c.DebtAsset.Bytes())
	if c.DebtAmount != nil {
		h.Write(c.DebtAmount.Bytes())
	}
	tag := byte(c.Convention)
	if c.UseVaultLoan {
		tag |= 0x80
	}
	h.Write([]byte{tag})
	return h.Sum64()
}
