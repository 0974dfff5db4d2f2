package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"VaultLedger/internal/vault"
)

// Registry is the external ownership record for vaults. The ledger stores
// only vault-id-keyed state; who owns a vault is this collaborator's concern.
type Registry interface {
	OwnerOf(id vault.VaultID) (uuid.UUID, error)
	Mint(owner uuid.UUID, id vault.VaultID) error
	Burn(id vault.VaultID) error
}

// Memory is the in-memory registry implementation.
type Memory struct {
	mu     sync.RWMutex
	owners map[vault.VaultID]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		owners: make(map[vault.VaultID]uuid.UUID),
	}
}

func (m *Memory) OwnerOf(id vault.VaultID) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[id]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: vault %d has no registered owner", vault.ErrVaultNotFound, id)
	}
	return owner, nil
}

func (m *Memory) Mint(owner uuid.UUID, id vault.VaultID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.owners[id]; exists {
		return fmt.Errorf("%w: vault %d already registered", vault.ErrInvalidState, id)
	}
	m.owners[id] = owner
	return nil
}

func (m *Memory) Burn(id vault.VaultID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.owners[id]; !exists {
		return fmt.Errorf("%w: vault %d not registered", vault.ErrVaultNotFound, id)
	}
	delete(m.owners, id)
	return nil
}
