package token_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"VaultLedger/internal/token"
	"VaultLedger/internal/vault"
)

// ============================================================================
// Test: in-memory debt token
// ============================================================================

func TestMintBurnTransfer_SupplyInvariant(t *testing.T) {
	m := token.NewMemory()
	a, b := uuid.New(), uuid.New()

	if err := m.Mint(a, 1000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := m.Transfer(a, b, 300); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := m.Burn(a, 200); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if got := m.BalanceOf(a); got != 500 {
		t.Errorf("balance a: got %d, want 500", got)
	}
	if got := m.BalanceOf(b); got != 300 {
		t.Errorf("balance b: got %d, want 300", got)
	}
	if got := m.TotalSupply(); got != 800 {
		t.Errorf("supply: got %d, want 800", got)
	}
	if err := m.CheckSupplyInvariant(); err != nil {
		t.Errorf("supply invariant: %v", err)
	}
}

func TestBurn_ExceedsBalance(t *testing.T) {
	m := token.NewMemory()
	a := uuid.New()
	m.Mint(a, 100)

	err := m.Burn(a, 101)
	if !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("got %v, want ErrValidationFailure", err)
	}
	if got := m.BalanceOf(a); got != 100 {
		t.Errorf("failed burn must not mutate balance, got %d", got)
	}
}

func TestTransfer_ExceedsBalance(t *testing.T) {
	m := token.NewMemory()
	a, b := uuid.New(), uuid.New()
	m.Mint(a, 100)

	if err := m.Transfer(a, b, 101); !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("got %v, want ErrValidationFailure", err)
	}
	if m.BalanceOf(a) != 100 || m.BalanceOf(b) != 0 {
		t.Error("failed transfer must not mutate balances")
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	m := token.NewMemory()
	a, b := uuid.New(), uuid.New()

	if err := m.Mint(a, 0); !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("mint 0: got %v, want ErrValidationFailure", err)
	}
	if err := m.Burn(a, -5); !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("burn -5: got %v, want ErrValidationFailure", err)
	}
	if err := m.Transfer(a, b, 0); !errors.Is(err, vault.ErrValidationFailure) {
		t.Errorf("transfer 0: got %v, want ErrValidationFailure", err)
	}
}
