package projection_test

import (
	"testing"

	"VaultLedger/internal/projection"
)

func entry(seq int64, vaultID int64) projection.Output {
	return projection.Output{Sequence: seq, VaultID: &vaultID}
}

// ============================================================================
// Test: HistoryCache
// ============================================================================

func TestHistoryCache_NewestFirstPerVault(t *testing.T) {
	c := projection.NewHistoryCache(16)
	c.Add(entry(1, 5))
	c.Add(entry(2, 9))
	c.Add(entry(3, 5))
	c.Add(entry(4, 5))

	got := c.QueryByVault(5, 10)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, want := range []int64{4, 3, 1} {
		if got[i].Sequence != want {
			t.Errorf("entry %d: sequence %d, want %d", i, got[i].Sequence, want)
		}
	}
}

func TestHistoryCache_LimitApplies(t *testing.T) {
	c := projection.NewHistoryCache(16)
	for seq := int64(1); seq <= 8; seq++ {
		c.Add(entry(seq, 1))
	}

	got := c.QueryByVault(1, 3)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Sequence != 8 || got[2].Sequence != 6 {
		t.Errorf("window: got %d..%d, want 8..6", got[0].Sequence, got[2].Sequence)
	}
}

func TestHistoryCache_OldestFallOutWhenFull(t *testing.T) {
	c := projection.NewHistoryCache(4)
	for seq := int64(1); seq <= 6; seq++ {
		c.Add(entry(seq, 1))
	}

	if c.Len() != 4 {
		t.Errorf("len: got %d, want 4", c.Len())
	}
	got := c.QueryByVault(1, 10)
	if len(got) != 4 {
		t.Fatalf("got %d entries, want 4", len(got))
	}
	if got[0].Sequence != 6 || got[3].Sequence != 3 {
		t.Errorf("window: got %d..%d, want 6..3", got[0].Sequence, got[3].Sequence)
	}
}

func TestHistoryCache_SystemEventsNotIndexedByVault(t *testing.T) {
	c := projection.NewHistoryCache(8)
	c.Add(projection.Output{Sequence: 1}) // no vault ref
	c.Add(entry(2, 1))

	got := c.QueryByVault(1, 10)
	if len(got) != 1 || got[0].Sequence != 2 {
		t.Errorf("got %v, want only sequence 2", got)
	}
}
