package vault

import (
	"fmt"

	"VaultLedger/internal/fixed"
)

// GlobalFeeState is the single process-wide stabilisation-fee record.
// The cumulative index is frozen at every rate change; between changes it
// grows linearly with wall-clock time. The index is monotonically
// non-decreasing.
type GlobalFeeState struct {
	Rate            int64 // annualized, Denominator-scaled
	FrozenIndex     int64 // cumulative index at last rate change
	FrozenTimestamp int64 // unix seconds of last rate change
}

// NewGlobalFeeState initializes the fee state at the given rate and time.
func NewGlobalFeeState(rate, now int64) (*GlobalFeeState, error) {
	if rate < 0 || rate > fixed.Denominator {
		return nil, fmt.Errorf("%w: fee rate %d out of [0, %d]", ErrValidationFailure, rate, fixed.Denominator)
	}
	return &GlobalFeeState{
		Rate:            rate,
		FrozenIndex:     0,
		FrozenTimestamp: now,
	}, nil
}

// IndexAt returns the global fee index at the given time.
func (s *GlobalFeeState) IndexAt(now int64) int64 {
	if now <= s.FrozenTimestamp {
		return s.FrozenIndex
	}
	return s.FrozenIndex + fixed.IndexDelta(s.Rate, now-s.FrozenTimestamp)
}

// SetRate flushes pending accrual into the frozen index, then adopts the new
// rate. Fee already accrued under the old rate is never recomputed.
func (s *GlobalFeeState) SetRate(newRate, now int64) error {
	if newRate < 0 || newRate > fixed.Denominator {
		return fmt.Errorf("%w: fee rate %d out of [0, %d]", ErrValidationFailure, newRate, fixed.Denominator)
	}

	s.FrozenIndex = s.IndexAt(now)
	s.FrozenTimestamp = now
	s.Rate = newRate
	return nil
}

// FeeStateSnapshot is the serializable form of GlobalFeeState.
type FeeStateSnapshot struct {
	Rate            int64 `json:"rate"`
	FrozenIndex     int64 `json:"frozen_index"`
	FrozenTimestamp int64 `json:"frozen_timestamp"`
}

// Snapshot copies the fee state into its serializable form.
func (s *GlobalFeeState) Snapshot() FeeStateSnapshot {
	return FeeStateSnapshot{
		Rate:            s.Rate,
		FrozenIndex:     s.FrozenIndex,
		FrozenTimestamp: s.FrozenTimestamp,
	}
}

// RestoreFeeState rebuilds a GlobalFeeState from a snapshot.
func RestoreFeeState(snap FeeStateSnapshot) *GlobalFeeState {
	return &GlobalFeeState{
		Rate:            snap.Rate,
		FrozenIndex:     snap.FrozenIndex,
		FrozenTimestamp: snap.FrozenTimestamp,
	}
}
