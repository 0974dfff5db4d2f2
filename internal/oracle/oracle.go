package oracle

import (
	"sync"

	"VaultLedger/internal/vault"
)

// Oracle values collateral units. Internal oracle errors are translated into
// ok=false rather than propagated, so callers treat "no price" as an
// explicit, first-class condition.
type Oracle interface {
	// Price returns the unit's current value in fixed-point quote units and
	// the pool it prices against. ok=false means no usable price.
	Price(unit vault.UnitID) (ok bool, value int64, pool vault.PoolID)
}

// StaticOracle is an in-memory oracle keyed by unit id. It backs tests and
// local runs; production deployments swap in a feed-backed implementation.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[vault.UnitID]quote
}

type quote struct {
	value int64
	pool  vault.PoolID
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		prices: make(map[vault.UnitID]quote),
	}
}

// SetPrice installs or replaces a unit's valuation.
func (o *StaticOracle) SetPrice(unit vault.UnitID, value int64, pool vault.PoolID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[unit] = quote{value: value, pool: pool}
}

// DropPrice removes a unit's valuation, simulating a stale or missing feed.
func (o *StaticOracle) DropPrice(unit vault.UnitID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, unit)
}

func (o *StaticOracle) Price(unit vault.UnitID) (bool, int64, vault.PoolID) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	q, ok := o.prices[unit]
	if !ok {
		return false, 0, ""
	}
	return true, q.value, q.pool
}
