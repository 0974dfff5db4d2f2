package event

// FeeRateUpdated announces a stabilisation-fee rate change. The frozen index
// carries the flushed accrual up to the change.
type FeeRateUpdated struct {
	OldRate     int64 `json:"old_rate"`
	NewRate     int64 `json:"new_rate"`
	FrozenIndex int64 `json:"frozen_index"`
}

func (e *FeeRateUpdated) EventType() EventType { return EventTypeFeeRateUpdated }
func (e *FeeRateUpdated) VaultRef() *uint64    { return nil }

// SystemPaused announces the pause latch being set.
type SystemPaused struct{}

func (e *SystemPaused) EventType() EventType { return EventTypeSystemPaused }
func (e *SystemPaused) VaultRef() *uint64    { return nil }

// SystemUnpaused announces the pause latch being cleared.
type SystemUnpaused struct{}

func (e *SystemUnpaused) EventType() EventType { return EventTypeSystemUnpaused }
func (e *SystemUnpaused) VaultRef() *uint64    { return nil }

// AccessModeChanged announces a public/private toggle.
type AccessModeChanged struct {
	Private bool `json:"private"`
}

func (e *AccessModeChanged) EventType() EventType { return EventTypeAccessModeChanged }
func (e *AccessModeChanged) VaultRef() *uint64    { return nil }
