package vault_test

import (
	"testing"

	"VaultLedger/internal/fixed"
	"VaultLedger/internal/vault"
)

// ============================================================================
// Test: GlobalFeeState
// ============================================================================

func TestNewGlobalFeeState_RejectsOutOfRangeRate(t *testing.T) {
	if _, err := vault.NewGlobalFeeState(-1, 0); err == nil {
		t.Error("negative rate should be rejected")
	}
	if _, err := vault.NewGlobalFeeState(fixed.Denominator+1, 0); err == nil {
		t.Error("rate above denominator should be rejected")
	}
	if _, err := vault.NewGlobalFeeState(fixed.Denominator, 0); err != nil {
		t.Errorf("100%% rate should be accepted, got %v", err)
	}
}

func TestIndexAt_LinearGrowth(t *testing.T) {
	fee, err := vault.NewGlobalFeeState(50_000_000, 1000) // 5% annualized
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fee.IndexAt(1000); got != 0 {
		t.Errorf("index at start should be 0, got %d", got)
	}
	if got := fee.IndexAt(1000 + fixed.SecondsPerYear); got != 50_000_000 {
		t.Errorf("index after one year should equal rate, got %d", got)
	}
	if got := fee.IndexAt(500); got != 0 {
		t.Errorf("index before frozen timestamp should stay frozen, got %d", got)
	}
}

func TestSetRate_FlushesAccrualBeforeSwitch(t *testing.T) {
	fee, _ := vault.NewGlobalFeeState(50_000_000, 0)

	// Half a year at 5%, then switch to 10%.
	half := fixed.SecondsPerYear / 2
	if err := fee.SetRate(100_000_000, half); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fee.FrozenIndex != 25_000_000 {
		t.Errorf("frozen index after flush: got %d, want 25000000", fee.FrozenIndex)
	}

	// Another half year at 10% adds 50_000_000 on top.
	if got := fee.IndexAt(fixed.SecondsPerYear); got != 75_000_000 {
		t.Errorf("index after rate change: got %d, want 75000000", got)
	}
}

func TestSetRate_RejectsInvalidRateWithoutMutation(t *testing.T) {
	fee, _ := vault.NewGlobalFeeState(50_000_000, 0)

	if err := fee.SetRate(-5, 100); err == nil {
		t.Fatal("negative rate should be rejected")
	}
	if fee.Rate != 50_000_000 || fee.FrozenTimestamp != 0 {
		t.Errorf("failed SetRate must not mutate state: rate=%d ts=%d", fee.Rate, fee.FrozenTimestamp)
	}
}

func TestFeeState_SnapshotRoundTrip(t *testing.T) {
	fee, _ := vault.NewGlobalFeeState(30_000_000, 42)
	fee.SetRate(60_000_000, 42+fixed.SecondsPerYear)

	restored := vault.RestoreFeeState(fee.Snapshot())
	if *restored != *fee {
		t.Errorf("restored state %+v differs from original %+v", restored, fee)
	}
}
