package vault

import "errors"

// Taxonomy roots. Every operation failure wraps exactly one of these so
// callers can classify with errors.Is without matching message text.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidState       = errors.New("invalid state")
	ErrValidationFailure  = errors.New("validation failure")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrFinancialInvariant = errors.New("financial invariant violation")
	ErrMissingPriceData   = errors.New("missing price data")
)

// Operation-specific failures, each wrapping its taxonomy root.
var (
	// ErrVaultNotFound is returned for an unknown vault id.
	ErrVaultNotFound = wrap(ErrResourceNotFound, "vault not found")

	// ErrUnitNotFound is returned for a collateral unit not bound to any vault.
	ErrUnitNotFound = wrap(ErrResourceNotFound, "collateral unit not found")

	// ErrPositionUnhealthy is returned when a mutation would leave adjusted
	// collateral below overall debt.
	ErrPositionUnhealthy = wrap(ErrFinancialInvariant, "position unhealthy")

	// ErrPositionHealthy is returned when liquidation is attempted on a vault
	// whose adjusted collateral still covers its overall debt.
	ErrPositionHealthy = wrap(ErrFinancialInvariant, "position healthy")

	// ErrDebtLimitExceeded is returned when overall debt would exceed the
	// per-vault cap.
	ErrDebtLimitExceeded = wrap(ErrFinancialInvariant, "debt limit exceeded")

	// ErrUnitLimitExceeded is returned when a deposit would exceed the
	// per-vault collateral unit cap.
	ErrUnitLimitExceeded = wrap(ErrFinancialInvariant, "unit limit exceeded")

	// ErrUnpaidDebt is returned when closing a vault with nonzero debt or fee.
	ErrUnpaidDebt = wrap(ErrFinancialInvariant, "unpaid debt")

	// ErrCollateralUnderflow is returned when a unit's valuation is below the
	// per-unit minimum.
	ErrCollateralUnderflow = wrap(ErrValidationFailure, "collateral value below minimum")

	// ErrInvalidPool is returned when a unit's pool is not whitelisted.
	ErrInvalidPool = wrap(ErrValidationFailure, "pool not whitelisted")

	// ErrMissingOracle is returned when the oracle cannot value a unit.
	ErrMissingOracle = wrap(ErrMissingPriceData, "oracle valuation unavailable")

	// ErrPaused is returned when a mutating operation arrives while paused.
	ErrPaused = wrap(ErrInvalidState, "system paused")

	// ErrReentrancy is returned when an operation re-enters the engine while
	// another operation is mid-flight.
	ErrReentrancy = wrap(ErrInvalidState, "operation already in progress")
)

type wrapped struct {
	root error
	msg  string
}

func wrap(root error, msg string) error {
	return &wrapped{root: root, msg: msg}
}

func (w *wrapped) Error() string {
	return w.msg
}

func (w *wrapped) Unwrap() error {
	return w.root
}
