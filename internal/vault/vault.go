package vault

// VaultID identifies a vault. Ids are assigned once from a strictly
// increasing counter and never reused after closure.
type VaultID uint64

// UnitID identifies an opaque collateral unit (a position token). A unit
// belongs to at most one vault at a time.
type UnitID uint64

// PoolID identifies the pool a collateral unit prices against. Governance
// whitelists pools and assigns each a liquidation threshold.
type PoolID string

// Vault holds per-position debt and fee bookkeeping.
// All amounts are fixed-point quote-token units; FeeIndexSnapshot is
// Denominator-scaled.
type Vault struct {
	ID                VaultID
	DebtPrincipal     int64
	AccruedFee        int64
	FeeIndexSnapshot  int64
	SnapshotTimestamp int64 // unix seconds of last accrual
	Units             []UnitID
	Version           int64
}

// OverallDebt returns principal plus accrued fee.
func (v *Vault) OverallDebt() int64 {
	return v.DebtPrincipal + v.AccruedFee
}

// HasUnit reports whether the unit is in the vault's collateral set.
func (v *Vault) HasUnit(unit UnitID) bool {
	for _, u := range v.Units {
		if u == unit {
			return true
		}
	}
	return false
}

// removeUnit deletes the unit preserving deposit order.
func (v *Vault) removeUnit(unit UnitID) bool {
	for i, u := range v.Units {
		if u == unit {
			v.Units = append(v.Units[:i], v.Units[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot is a serializable copy of vault state for persistence and
// read-side projections.
type Snapshot struct {
	ID                uint64   `json:"id"`
	DebtPrincipal     int64    `json:"debt_principal"`
	AccruedFee        int64    `json:"accrued_fee"`
	FeeIndexSnapshot  int64    `json:"fee_index_snapshot"`
	SnapshotTimestamp int64    `json:"snapshot_timestamp"`
	Units             []uint64 `json:"units"`
	Version           int64    `json:"version"`
}

// Snapshot copies the vault into its serializable form.
func (v *Vault) Snapshot() Snapshot {
	units := make([]uint64, len(v.Units))
	for i, u := range v.Units {
		units[i] = uint64(u)
	}
	return Snapshot{
		ID:                uint64(v.ID),
		DebtPrincipal:     v.DebtPrincipal,
		AccruedFee:        v.AccruedFee,
		FeeIndexSnapshot:  v.FeeIndexSnapshot,
		SnapshotTimestamp: v.SnapshotTimestamp,
		Units:             units,
		Version:           v.Version,
	}
}
