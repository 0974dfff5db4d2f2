package liquidation_test

import (
	"testing"

	"VaultLedger/internal/liquidation"
)

const quote = 1_000_000 // quote-token scale

// ============================================================================
// Test: ComputeSplit
// ============================================================================

func TestComputeSplit_AbundantCollateral(t *testing.T) {
	// Principal 1000, fee 50, collateral worth 2000, 10% premium, 3% fee.
	s := liquidation.ComputeSplit(
		1000*quote, 1050*quote, 2000*quote,
		30_000_000, 100_000_000,
	)

	// Liquidator pays the premium-discounted collateral value.
	if s.ReturnAmount != 1800*quote {
		t.Errorf("return amount: got %d, want %d", s.ReturnAmount, 1800*quote)
	}
	// DAO takes the fee shortfall (50) plus 3% of gross collateral (60).
	if s.DAOCut != 110*quote {
		t.Errorf("dao cut: got %d, want %d", s.DAOCut, 110*quote)
	}
	if s.OwnerResidual != 690*quote {
		t.Errorf("owner residual: got %d, want %d", s.OwnerResidual, 690*quote)
	}
	if s.Principal != 1000*quote {
		t.Errorf("principal: got %d, want %d", s.Principal, 1000*quote)
	}
}

func TestComputeSplit_PrincipalFloor(t *testing.T) {
	// Discounted collateral (900) is below principal (1000): the liquidator
	// must still cover the principal.
	s := liquidation.ComputeSplit(
		1000*quote, 1050*quote, 1000*quote,
		30_000_000, 100_000_000,
	)

	if s.ReturnAmount != 1000*quote {
		t.Errorf("return amount: got %d, want %d", s.ReturnAmount, 1000*quote)
	}
	// No surplus above principal, so the dao cut is capped to zero and the
	// protocol fee under-collects.
	if s.DAOCut != 0 {
		t.Errorf("dao cut: got %d, want 0", s.DAOCut)
	}
	if s.OwnerResidual != 0 {
		t.Errorf("owner residual: got %d, want 0", s.OwnerResidual)
	}
}

func TestComputeSplit_DAOCutCappedAtSurplus(t *testing.T) {
	// Surplus above principal (80) is smaller than shortfall+feeCut
	// (50 + 36 = 86): the cap binds.
	s := liquidation.ComputeSplit(
		1000*quote, 1050*quote, 1200*quote,
		30_000_000, 100_000_000,
	)

	if s.ReturnAmount != 1080*quote {
		t.Errorf("return amount: got %d, want %d", s.ReturnAmount, 1080*quote)
	}
	if s.DAOCut != 80*quote {
		t.Errorf("dao cut: got %d, want %d", s.DAOCut, 80*quote)
	}
	if s.OwnerResidual != 0 {
		t.Errorf("owner residual: got %d, want 0", s.OwnerResidual)
	}
}

func TestComputeSplit_ZeroPremiumZeroFee(t *testing.T) {
	s := liquidation.ComputeSplit(500*quote, 500*quote, 800*quote, 0, 0)

	if s.ReturnAmount != 800*quote {
		t.Errorf("return amount: got %d, want %d", s.ReturnAmount, 800*quote)
	}
	if s.DAOCut != 0 {
		t.Errorf("dao cut: got %d, want 0", s.DAOCut)
	}
	if s.OwnerResidual != 300*quote {
		t.Errorf("owner residual: got %d, want %d", s.OwnerResidual, 300*quote)
	}
}

func TestComputeSplit_PartsAlwaysSumToReturnAmount(t *testing.T) {
	cases := []struct {
		name                            string
		principal, overall, vaultAmount int64
	}{
		{"abundant", 1000 * quote, 1050 * quote, 2000 * quote},
		{"tight", 1000 * quote, 1050 * quote, 1100 * quote},
		{"underwater", 1000 * quote, 1050 * quote, 700 * quote},
		{"zero collateral", 1000 * quote, 1050 * quote, 0},
		{"fee only", 0, 50 * quote, 400 * quote},
	}

	for _, tc := range cases {
		s := liquidation.ComputeSplit(tc.principal, tc.overall, tc.vaultAmount,
			30_000_000, 100_000_000)

		if s.Principal+s.DAOCut+s.OwnerResidual != s.ReturnAmount {
			t.Errorf("%s: parts %d+%d+%d do not sum to return amount %d",
				tc.name, s.Principal, s.DAOCut, s.OwnerResidual, s.ReturnAmount)
		}
		if s.OwnerResidual < 0 {
			t.Errorf("%s: owner residual is negative: %d", tc.name, s.OwnerResidual)
		}
		if s.DAOCut < 0 {
			t.Errorf("%s: dao cut is negative: %d", tc.name, s.DAOCut)
		}
		if s.ReturnAmount < tc.principal {
			t.Errorf("%s: return amount %d below principal %d",
				tc.name, s.ReturnAmount, tc.principal)
		}
	}
}
