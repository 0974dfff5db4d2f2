package custody

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"VaultLedger/internal/vault"
)

// Custody moves collateral units between holders. The engine pulls a unit
// from its depositor on deposit and pushes it back out on withdraw, close,
// or liquidation.
type Custody interface {
	Pull(unit vault.UnitID, from, to uuid.UUID) error
	Push(unit vault.UnitID, from, to uuid.UUID) error
	HolderOf(unit vault.UnitID) (uuid.UUID, bool)
}

// Memory is the in-memory custody implementation. A unit has exactly one
// holder at a time.
type Memory struct {
	mu      sync.RWMutex
	holders map[vault.UnitID]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		holders: make(map[vault.UnitID]uuid.UUID),
	}
}

// Issue places a unit with an initial holder (test and bootstrap path).
func (m *Memory) Issue(unit vault.UnitID, holder uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[unit] = holder
}

func (m *Memory) HolderOf(unit vault.UnitID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.holders[unit]
	return h, ok
}

func (m *Memory) Pull(unit vault.UnitID, from, to uuid.UUID) error {
	return m.transfer(unit, from, to)
}

func (m *Memory) Push(unit vault.UnitID, from, to uuid.UUID) error {
	return m.transfer(unit, from, to)
}

func (m *Memory) transfer(unit vault.UnitID, from, to uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	holder, ok := m.holders[unit]
	if !ok {
		return fmt.Errorf("%w: unit %d has no holder", vault.ErrUnitNotFound, unit)
	}
	if holder != from {
		return fmt.Errorf("%w: unit %d held by %s, not %s", vault.ErrAccessDenied, unit, holder, from)
	}
	m.holders[unit] = to
	return nil
}
