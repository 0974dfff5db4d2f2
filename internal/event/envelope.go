package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for notification payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeVaultOpened
	EventTypeVaultClosed
	EventTypeCollateralDeposited
	EventTypeCollateralWithdrawn
	EventTypeDebtMinted
	EventTypeDebtBurned
	EventTypeVaultLiquidated
	EventTypeFeeRateUpdated
	EventTypeSystemPaused
	EventTypeSystemUnpaused
	EventTypeAccessModeChanged
)

// Envelope wraps every notification in the log. Each state-changing
// operation emits exactly one, carrying the initiating actor and the
// operation's key parameters.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Initiating identity
	Actor uuid.UUID

	// Notification type discriminator
	EventType EventType

	// Vault context (nil for system-wide notifications)
	VaultID *uint64

	// Engine clock reading for this operation
	Timestamp time.Time

	// Typed payload
	Payload Notification
}

// Notification is the interface all notification payloads implement.
type Notification interface {
	EventType() EventType

	// VaultRef returns the vault context, nil for system-wide notifications.
	VaultRef() *uint64
}

func (et EventType) String() string {
	switch et {
	case EventTypeVaultOpened:
		return "VaultOpened"
	case EventTypeVaultClosed:
		return "VaultClosed"
	case EventTypeCollateralDeposited:
		return "CollateralDeposited"
	case EventTypeCollateralWithdrawn:
		return "CollateralWithdrawn"
	case EventTypeDebtMinted:
		return "DebtMinted"
	case EventTypeDebtBurned:
		return "DebtBurned"
	case EventTypeVaultLiquidated:
		return "VaultLiquidated"
	case EventTypeFeeRateUpdated:
		return "FeeRateUpdated"
	case EventTypeSystemPaused:
		return "SystemPaused"
	case EventTypeSystemUnpaused:
		return "SystemUnpaused"
	case EventTypeAccessModeChanged:
		return "AccessModeChanged"
	default:
		return "Unknown"
	}
}
