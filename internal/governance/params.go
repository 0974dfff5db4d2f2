package governance

import (
	"fmt"
	"sync"

	"VaultLedger/internal/fixed"
	"VaultLedger/internal/vault"
)

// ProtocolParams are the governance-owned limits and rates read by the
// engine. Amounts are fixed-point quote units; rates are Denominator-scaled.
type ProtocolParams struct {
	MaxDebtPerVault        int64
	MinSingleUnitValue     int64
	MaxUnitsPerVault       int
	LiquidationFeeRate     int64
	LiquidationPremiumRate int64
}

// Governance is the parameter-store collaborator consumed by the engine.
// The engine only reads; parameter updates go through the store's own
// admin-gated mutators.
type Governance interface {
	ProtocolParams() ProtocolParams
	IsPoolWhitelisted(pool vault.PoolID) bool
	LiquidationThreshold(pool vault.PoolID) int64
}

// Store is the in-memory parameter store.
type Store struct {
	mu         sync.RWMutex
	params     ProtocolParams
	whitelist  map[vault.PoolID]bool
	thresholds map[vault.PoolID]int64
}

// DefaultParams mirror a conservative mainnet configuration.
func DefaultParams() ProtocolParams {
	return ProtocolParams{
		MaxDebtPerVault:        1_000_000 * fixed.QuoteConfig.Scale,
		MinSingleUnitValue:     100 * fixed.QuoteConfig.Scale,
		MaxUnitsPerVault:       12,
		LiquidationFeeRate:     30_000_000,  // 3%
		LiquidationPremiumRate: 100_000_000, // 10%
	}
}

func NewStore(params ProtocolParams) *Store {
	return &Store{
		params:     params,
		whitelist:  make(map[vault.PoolID]bool),
		thresholds: make(map[vault.PoolID]int64),
	}
}

func (s *Store) ProtocolParams() ProtocolParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

func (s *Store) IsPoolWhitelisted(pool vault.PoolID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelist[pool]
}

// LiquidationThreshold returns the pool's Denominator-scaled scaling factor,
// zero for unknown pools (units there back no debt).
func (s *Store) LiquidationThreshold(pool vault.PoolID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds[pool]
}

// SetParams replaces the protocol parameter block.
func (s *Store) SetParams(params ProtocolParams) error {
	if params.MaxDebtPerVault < 0 || params.MinSingleUnitValue < 0 || params.MaxUnitsPerVault < 0 {
		return fmt.Errorf("%w: negative protocol parameter", vault.ErrValidationFailure)
	}
	if params.LiquidationFeeRate < 0 || params.LiquidationFeeRate > fixed.Denominator {
		return fmt.Errorf("%w: liquidation fee rate %d out of [0, %d]", vault.ErrValidationFailure, params.LiquidationFeeRate, fixed.Denominator)
	}
	if params.LiquidationPremiumRate < 0 || params.LiquidationPremiumRate > fixed.Denominator {
		return fmt.Errorf("%w: liquidation premium rate %d out of [0, %d]", vault.ErrValidationFailure, params.LiquidationPremiumRate, fixed.Denominator)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return nil
}

// WhitelistPool admits a pool with its liquidation threshold.
func (s *Store) WhitelistPool(pool vault.PoolID, threshold int64) error {
	if threshold < 0 || threshold > fixed.Denominator {
		return fmt.Errorf("%w: liquidation threshold %d out of [0, %d]", vault.ErrValidationFailure, threshold, fixed.Denominator)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[pool] = true
	s.thresholds[pool] = threshold
	return nil
}

// RevokePool removes a pool from the whitelist. Existing deposits keep their
// threshold for valuation; new deposits to the pool are rejected.
func (s *Store) RevokePool(pool vault.PoolID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.whitelist, pool)
}
