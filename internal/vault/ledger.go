package vault

import (
	"fmt"
	"sort"

	"VaultLedger/internal/fixed"
)

// Ledger owns vault lifecycle, collateral-set membership, and debt
// bookkeeping. It is a plain in-memory context object: no ambient state,
// callers pass it explicitly, which keeps unit tests deterministic and
// isolated. Solvency and cap checks against governance parameters are the
// engine's job; the ledger enforces structural invariants only (unique unit
// binding, strictly increasing ids).
type Ledger struct {
	vaults    map[VaultID]*Vault
	unitOwner map[UnitID]VaultID
	nextID    VaultID
	fee       *GlobalFeeState
}

// NewLedger creates an empty ledger around the given fee state.
func NewLedger(fee *GlobalFeeState) *Ledger {
	return &Ledger{
		vaults:    make(map[VaultID]*Vault),
		unitOwner: make(map[UnitID]VaultID),
		nextID:    1,
		fee:       fee,
	}
}

// FeeState returns the global fee state.
func (l *Ledger) FeeState() *GlobalFeeState {
	return l.fee
}

// Open allocates the next vault id and initializes the fee snapshot to the
// current global index. Ids are never reassigned, even after closure.
func (l *Ledger) Open(now int64) *Vault {
	v := &Vault{
		ID:                l.nextID,
		FeeIndexSnapshot:  l.fee.IndexAt(now),
		SnapshotTimestamp: now,
	}
	l.vaults[v.ID] = v
	l.nextID++
	return v
}

// Get returns the vault for an id.
func (l *Ledger) Get(id VaultID) (*Vault, error) {
	v, ok := l.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%w: vault %d", ErrVaultNotFound, id)
	}
	return v, nil
}

// VaultForUnit returns the vault a unit is bound to.
func (l *Ledger) VaultForUnit(unit UnitID) (*Vault, error) {
	id, ok := l.unitOwner[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unit %d", ErrUnitNotFound, unit)
	}
	return l.vaults[id], nil
}

// Accrue brings the vault's fee balance up to the given time. It must run
// before any read or mutation of debt principal. A repeated call at the same
// timestamp is a no-op; a regressed clock leaves the snapshot untouched so
// the same interval never accrues twice.
func (l *Ledger) Accrue(v *Vault, now int64) {
	if now <= v.SnapshotTimestamp {
		return
	}

	index := l.fee.IndexAt(now)
	delta := index - v.FeeIndexSnapshot
	if delta > 0 && v.DebtPrincipal > 0 {
		v.AccruedFee += fixed.AccruedFee(v.DebtPrincipal, delta)
	}
	v.FeeIndexSnapshot = index
	v.SnapshotTimestamp = now
	v.Version++
}

// AttachUnit binds a unit to the vault. A unit bound elsewhere is a
// structural violation and is rejected.
func (l *Ledger) AttachUnit(v *Vault, unit UnitID) error {
	if owner, bound := l.unitOwner[unit]; bound {
		return fmt.Errorf("%w: unit %d already bound to vault %d", ErrValidationFailure, unit, owner)
	}
	l.unitOwner[unit] = v.ID
	v.Units = append(v.Units, unit)
	v.Version++
	return nil
}

// DetachUnit removes a unit from its vault and returns that vault.
func (l *Ledger) DetachUnit(unit UnitID) (*Vault, error) {
	v, err := l.VaultForUnit(unit)
	if err != nil {
		return nil, err
	}
	v.removeUnit(unit)
	delete(l.unitOwner, unit)
	v.Version++
	return v, nil
}

// AddDebt increases the vault's principal.
func (l *Ledger) AddDebt(v *Vault, amount int64) {
	v.DebtPrincipal += amount
	v.Version++
}

// ApplyBurn settles a repayment, fee before principal. The amount is capped
// at overall debt; the return values report what was actually paid against
// fee and principal.
func (l *Ledger) ApplyBurn(v *Vault, amount int64) (feePaid, principalPaid int64) {
	overall := v.OverallDebt()
	if amount > overall {
		amount = overall
	}

	if amount > v.DebtPrincipal {
		feePaid = amount - v.DebtPrincipal
		v.AccruedFee -= feePaid
	}
	principalPaid = amount - feePaid
	v.DebtPrincipal -= principalPaid
	v.Version++
	return feePaid, principalPaid
}

// Close zeroes all vault state, empties the collateral set, and removes the
// vault. The freed units are returned in deposit order.
func (l *Ledger) Close(v *Vault) []UnitID {
	units := make([]UnitID, len(v.Units))
	copy(units, v.Units)

	for _, u := range units {
		delete(l.unitOwner, u)
	}

	v.DebtPrincipal = 0
	v.AccruedFee = 0
	v.FeeIndexSnapshot = 0
	v.SnapshotTimestamp = 0
	v.Units = nil
	delete(l.vaults, v.ID)

	return units
}

// VaultCount returns the number of open vaults.
func (l *Ledger) VaultCount() int {
	return len(l.vaults)
}

// NextID returns the next vault id to be assigned.
func (l *Ledger) NextID() VaultID {
	return l.nextID
}

// AllVaults returns open vaults ordered by id (deterministic iteration for
// snapshots and projections).
func (l *Ledger) AllVaults() []*Vault {
	result := make([]*Vault, 0, len(l.vaults))
	for _, v := range l.vaults {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Restore rebuilds ledger state from snapshots (warm restart).
func (l *Ledger) Restore(nextID uint64, vaults []Snapshot) {
	if VaultID(nextID) > l.nextID {
		l.nextID = VaultID(nextID)
	}
	for _, snap := range vaults {
		v := &Vault{
			ID:                VaultID(snap.ID),
			DebtPrincipal:     snap.DebtPrincipal,
			AccruedFee:        snap.AccruedFee,
			FeeIndexSnapshot:  snap.FeeIndexSnapshot,
			SnapshotTimestamp: snap.SnapshotTimestamp,
			Version:           snap.Version,
		}
		for _, u := range snap.Units {
			v.Units = append(v.Units, UnitID(u))
			l.unitOwner[UnitID(u)] = v.ID
		}
		l.vaults[v.ID] = v
	}
}
