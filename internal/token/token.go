package token

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"VaultLedger/internal/vault"
)

// DebtToken is the stable-value debt token collaborator. The engine mints on
// debt issuance, pulls and burns on repayment, and splits liquidation
// payments between burn, treasury, and owner.
type DebtToken interface {
	Mint(to uuid.UUID, amount int64) error
	Burn(from uuid.UUID, amount int64) error
	Transfer(from, to uuid.UUID, amount int64) error
	BalanceOf(holder uuid.UUID) int64
	TotalSupply() int64
}

// Memory is the in-memory debt-token implementation. Total supply always
// equals the sum of all balances.
type Memory struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]int64
	supply   int64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[uuid.UUID]int64),
	}
}

func (m *Memory) Mint(to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: mint amount %d", vault.ErrValidationFailure, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[to] += amount
	m.supply += amount
	return nil
}

func (m *Memory) Burn(from uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: burn amount %d", vault.ErrValidationFailure, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("%w: burn %d exceeds balance %d", vault.ErrValidationFailure, amount, m.balances[from])
	}
	m.balances[from] -= amount
	m.supply -= amount
	return nil
}

func (m *Memory) Transfer(from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount %d", vault.ErrValidationFailure, amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("%w: transfer %d exceeds balance %d", vault.ErrValidationFailure, amount, m.balances[from])
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *Memory) BalanceOf(holder uuid.UUID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[holder]
}

func (m *Memory) TotalSupply() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply
}

// CheckSupplyInvariant verifies total supply equals the sum of balances.
func (m *Memory) CheckSupplyInvariant() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum int64
	for _, b := range m.balances {
		sum += b
	}
	if sum != m.supply {
		return fmt.Errorf("supply invariant broken: balances sum %d, supply %d", sum, m.supply)
	}
	return nil
}
