package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/engine"
	"VaultLedger/internal/vault"
)

// ============================================================================
// Test: command processor loop
// ============================================================================

func TestProcessor_AppliesCommandsInOrder(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	h.issueUnit(7, owner, 2000*quote, "pool-a")

	p := engine.NewProcessor(h.eng, 64, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	res := p.Submit(ctx, engine.Command{Type: engine.CmdOpenVault, Actor: owner})
	if res.Err != nil {
		t.Fatalf("open: %v", res.Err)
	}
	id := res.VaultID

	res = p.Submit(ctx, engine.Command{
		Type: engine.CmdDepositCollateral, Actor: owner, VaultID: id, UnitID: 7,
	})
	if res.Err != nil {
		t.Fatalf("deposit: %v", res.Err)
	}

	res = p.Submit(ctx, engine.Command{
		Type: engine.CmdMintDebt, Actor: owner, VaultID: id, Amount: 500 * quote,
	})
	if res.Err != nil {
		t.Fatalf("mint: %v", res.Err)
	}

	if got := h.tok.BalanceOf(owner); got != 500*quote {
		t.Errorf("owner balance: got %d, want %d", got, 500*quote)
	}
}

func TestProcessor_UnknownCommandType(t *testing.T) {
	h := newHarness(t)

	p := engine.NewProcessor(h.eng, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	res := p.Submit(ctx, engine.Command{Type: "no_such_command", Actor: uuid.New()})
	if !errors.Is(res.Err, vault.ErrValidationFailure) {
		t.Errorf("got %v, want ErrValidationFailure", res.Err)
	}
}

func TestProcessor_InspectRunsOnLoopGoroutine(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	p := engine.NewProcessor(h.eng, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	if res := p.Submit(ctx, engine.Command{Type: engine.CmdOpenVault, Actor: owner}); res.Err != nil {
		t.Fatalf("open: %v", res.Err)
	}

	// Inspect serializes with commands, so it observes the applied open.
	var count int
	var seq int64
	if err := p.Inspect(ctx, func(eng *engine.Engine) {
		count = eng.Ledger().VaultCount()
		seq = eng.Sequence()
	}); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if count != 1 {
		t.Errorf("vault count: got %d, want 1", count)
	}
	if seq != 2 {
		t.Errorf("sequence: got %d, want 2", seq)
	}
}

func TestProcessor_SubmitHonorsCancelledContext(t *testing.T) {
	h := newHarness(t)

	// No Run goroutine: the submit must fall through to the context.
	p := engine.NewProcessor(h.eng, 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Submit(ctx, engine.Command{Type: engine.CmdPause, Actor: uuid.New()})
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", res.Err)
	}
}
