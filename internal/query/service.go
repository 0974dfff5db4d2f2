package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"VaultLedger/internal/projection"
)

// Service provides read-only access to projection tables. All responses
// carry as_of_sequence so callers can reason about freshness against the
// engine's live sequence.
type Service struct {
	db      *sql.DB
	history *projection.HistoryCache
}

func NewService(db *sql.DB, history *projection.HistoryCache) *Service {
	return &Service{db: db, history: history}
}

// GetVault returns projected state for one vault.
func (s *Service) GetVault(ctx context.Context, vaultID uint64) (*VaultResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var r VaultResponse
	var units []int64
	err = s.db.QueryRowContext(ctx, `
		SELECT vault_id, debt_principal, accrued_fee, fee_index_snapshot,
		       snapshot_timestamp, units, version, closed
		FROM projections.vault_state
		WHERE vault_id = $1
	`, vaultID).Scan(
		&r.VaultID, &r.DebtPrincipal, &r.AccruedFee, &r.FeeIndexSnapshot,
		&r.SnapshotTimestamp, pq.Array(&units), &r.Version, &r.Closed,
	)
	if err != nil {
		return nil, err
	}

	r.Units = make([]uint64, len(units))
	for i, u := range units {
		r.Units[i] = uint64(u)
	}
	r.OverallDebt = r.DebtPrincipal + r.AccruedFee
	r.AsOfSequence = asOfSeq
	return &r, nil
}

// ListVaults returns open vaults ordered by id with cursor pagination.
func (s *Service) ListVaults(ctx context.Context, limit int, afterVault *uint64) ([]VaultResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT vault_id, debt_principal, accrued_fee, fee_index_snapshot,
		       snapshot_timestamp, units, version, closed
		FROM projections.vault_state
		WHERE closed = FALSE
	`
	args := []interface{}{}
	argIdx := 1

	if afterVault != nil {
		q += fmt.Sprintf(" AND vault_id > $%d", argIdx)
		args = append(args, *afterVault)
		argIdx++
	}

	q += " ORDER BY vault_id ASC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaults []VaultResponse
	for rows.Next() {
		var r VaultResponse
		var units []int64
		if err := rows.Scan(
			&r.VaultID, &r.DebtPrincipal, &r.AccruedFee, &r.FeeIndexSnapshot,
			&r.SnapshotTimestamp, pq.Array(&units), &r.Version, &r.Closed,
		); err != nil {
			return nil, err
		}
		r.Units = make([]uint64, len(units))
		for i, u := range units {
			r.Units[i] = uint64(u)
		}
		r.OverallDebt = r.DebtPrincipal + r.AccruedFee
		r.AsOfSequence = asOfSeq
		vaults = append(vaults, r)
	}

	return vaults, rows.Err()
}

// GetVaultHistory returns logged notifications for a vault, newest first,
// with cursor pagination. Recent entries come from the in-memory cache;
// anything older falls through to Postgres.
func (s *Service) GetVaultHistory(
	ctx context.Context,
	vaultID uint64,
	limit int,
	afterSequence *int64,
) ([]VaultHistoryEntry, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	if afterSequence == nil && s.history != nil {
		if cached := s.history.QueryByVault(vaultID, limit); len(cached) >= limit {
			entries := make([]VaultHistoryEntry, 0, len(cached))
			for _, e := range cached {
				entries = append(entries, VaultHistoryEntry{
					Sequence:     e.Sequence,
					VaultID:      vaultID,
					EventType:    e.EventType,
					Actor:        e.Actor,
					Payload:      json.RawMessage(e.Payload),
					Timestamp:    e.Timestamp,
					AsOfSequence: asOfSeq,
				})
			}
			return entries, nil
		}
	}

	q := `
		SELECT sequence, event_type, actor, payload, EXTRACT(EPOCH FROM timestamp)::BIGINT
		FROM projections.vault_history
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if afterSequence != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	q += " ORDER BY sequence DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []VaultHistoryEntry
	for rows.Next() {
		var e VaultHistoryEntry
		e.VaultID = vaultID
		e.AsOfSequence = asOfSeq
		var payload []byte
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.Actor, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetSystemStatus returns aggregate totals across open vaults.
func (s *Service) GetSystemStatus(ctx context.Context) (*SystemStatusResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var r SystemStatusResponse
	r.AsOfSequence = asOfSeq

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(debt_principal), 0), COALESCE(SUM(accrued_fee), 0)
		FROM projections.vault_state
		WHERE closed = FALSE
	`).Scan(&r.OpenVaults, &r.TotalDebt, &r.TotalAccruedFee)
	if err != nil {
		return nil, err
	}

	var lastSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM vault_log.events`,
	).Scan(&lastSeq); err != nil {
		return nil, err
	}
	if lastSeq.Valid {
		r.LastEventSequence = lastSeq.Int64
	}

	return &r, nil
}

// --- Admin APIs ---

// VerifyIntegrity checks log continuity and vault state sanity.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Sequence gaps in the event log
	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM vault_log.events e1
		LEFT JOIN vault_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 1 AND e2.sequence IS NULL
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.SequenceGaps = append(report.SequenceGaps, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Debt and fee columns must never project negative
	negRows, err := s.db.QueryContext(ctx, `
		SELECT vault_id
		FROM projections.vault_state
		WHERE debt_principal < 0 OR accrued_fee < 0
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer negRows.Close()

	for negRows.Next() {
		var id int64
		if err := negRows.Scan(&id); err != nil {
			return nil, err
		}
		report.NegativeVaults = append(report.NegativeVaults, id)
	}
	if err := negRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.SequenceGaps) == 0 && len(report.NegativeVaults) == 0
	return report, nil
}

// --- helpers ---

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
