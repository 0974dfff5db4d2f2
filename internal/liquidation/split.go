package liquidation

import (
	"VaultLedger/internal/fixed"
)

// Split is the computed payout breakdown for one liquidation.
// ReturnAmount is what the liquidator pays; Principal of it is burned,
// DAOCut goes to the treasury, OwnerResidual to the vault owner.
type Split struct {
	VaultAmount   int64 // gross (unadjusted) collateral value
	ReturnAmount  int64
	Principal     int64
	DAOCut        int64
	OwnerResidual int64
}

// ComputeSplit derives the repay/payout split for an insolvent vault.
//
//	returnAmount = max(debtPrincipal, vaultAmount × (1 − premium))
//	daoCut       = min(overallDebt − debtPrincipal + vaultAmount × fee,
//	                   returnAmount − debtPrincipal)
//	ownerResidual = returnAmount − debtPrincipal − daoCut
//
// The liquidator must cover at least the outstanding principal but buys the
// collateral at a premium discount when it is abundant. The daoCut cap lets
// the protocol fee under-collect when collateral barely covers principal,
// which keeps ownerResidual from going negative.
func ComputeSplit(debtPrincipal, overallDebt, vaultAmount, liquidationFee, liquidationPremium int64) Split {
	discounted := fixed.ApplyRate(vaultAmount, fixed.Denominator-liquidationPremium)

	returnAmount := discounted
	if debtPrincipal > returnAmount {
		returnAmount = debtPrincipal
	}

	shortfall := overallDebt - debtPrincipal // accrued fee portion
	feeCut := fixed.ApplyRate(vaultAmount, liquidationFee)

	daoCut := shortfall + feeCut
	if cap := returnAmount - debtPrincipal; daoCut > cap {
		daoCut = cap
	}

	return Split{
		VaultAmount:   vaultAmount,
		ReturnAmount:  returnAmount,
		Principal:     debtPrincipal,
		DAOCut:        daoCut,
		OwnerResidual: returnAmount - debtPrincipal - daoCut,
	}
}
