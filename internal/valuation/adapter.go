package valuation

import (
	"fmt"

	"VaultLedger/internal/fixed"
	"VaultLedger/internal/governance"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/vault"
)

// Adapter is the thin translation layer between the engine and the external
// price oracle + governance parameter store. It produces a unit's current
// value and the threshold-adjusted backing capacity of a collateral set.
type Adapter struct {
	oracle oracle.Oracle
	gov    governance.Governance
}

func NewAdapter(o oracle.Oracle, g governance.Governance) *Adapter {
	return &Adapter{oracle: o, gov: g}
}

// UnitValue returns a unit's raw valuation and pool.
func (a *Adapter) UnitValue(unit vault.UnitID) (int64, vault.PoolID, error) {
	ok, value, pool := a.oracle.Price(unit)
	if !ok {
		return 0, "", fmt.Errorf("%w: unit %d", vault.ErrMissingOracle, unit)
	}
	return value, pool, nil
}

// AdjustedCollateral sums threshold-scaled value across units: each unit
// contributes value × liquidationThreshold(pool) / Denominator, floored.
// This is the debt-backing capacity compared against overall debt.
func (a *Adapter) AdjustedCollateral(units []vault.UnitID) (int64, error) {
	var total int64
	for _, u := range units {
		value, pool, err := a.UnitValue(u)
		if err != nil {
			return 0, err
		}
		total += fixed.ApplyRate(value, a.gov.LiquidationThreshold(pool))
	}
	return total, nil
}

// RawCollateral sums unadjusted value across units, the gross liquidation
// pool used for payout splitting.
func (a *Adapter) RawCollateral(units []vault.UnitID) (int64, error) {
	var total int64
	for _, u := range units {
		value, _, err := a.UnitValue(u)
		if err != nil {
			return 0, err
		}
		total += value
	}
	return total, nil
}

// IsSolvent reports whether the collateral set still covers the debt.
func (a *Adapter) IsSolvent(units []vault.UnitID, overallDebt int64) (bool, error) {
	adjusted, err := a.AdjustedCollateral(units)
	if err != nil {
		return false, err
	}
	return adjusted >= overallDebt, nil
}
