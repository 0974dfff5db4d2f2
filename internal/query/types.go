package query

import "encoding/json"

// VaultResponse represents projected vault state for API queries.
type VaultResponse struct {
	VaultID           uint64   `json:"vault_id"`
	DebtPrincipal     int64    `json:"debt_principal"`
	AccruedFee        int64    `json:"accrued_fee"`
	OverallDebt       int64    `json:"overall_debt"`
	FeeIndexSnapshot  int64    `json:"fee_index_snapshot"`
	SnapshotTimestamp int64    `json:"snapshot_timestamp"`
	Units             []uint64 `json:"units"`
	Version           int64    `json:"version"`
	Closed            bool     `json:"closed"`
	AsOfSequence      int64    `json:"as_of_sequence"`
}

// VaultHistoryEntry represents one logged notification for API queries.
type VaultHistoryEntry struct {
	Sequence     int64           `json:"sequence"`
	VaultID      uint64          `json:"vault_id"`
	EventType    string          `json:"event_type"`
	Actor        string          `json:"actor"`
	Payload      json.RawMessage `json:"payload"`
	Timestamp    int64           `json:"timestamp"`
	AsOfSequence int64           `json:"as_of_sequence"`
}

// SystemStatusResponse reports projection freshness and aggregate totals.
type SystemStatusResponse struct {
	OpenVaults        int64 `json:"open_vaults"`
	TotalDebt         int64 `json:"total_debt"`
	TotalAccruedFee   int64 `json:"total_accrued_fee"`
	LastEventSequence int64 `json:"last_event_sequence"`
	AsOfSequence      int64 `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy      bool    `json:"is_healthy"`
	SequenceGaps   []int64 `json:"sequence_gaps,omitempty"`
	NegativeVaults []int64 `json:"negative_vaults,omitempty"`
}
