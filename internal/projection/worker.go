package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Output mirrors the data projection workers need from one applied
// operation. The orchestrator bridges between engine.Output and this.
type Output struct {
	Sequence  int64
	EventType string
	Actor     string
	VaultID   *int64
	Payload   []byte // JSON notification payload
	Timestamp int64  // unix seconds

	// Post-operation vault row, nil for system-wide notifications.
	State *VaultState
}

// VaultState is one row of projections.vault_state.
type VaultState struct {
	VaultID           uint64
	DebtPrincipal     int64
	AccruedFee        int64
	FeeIndexSnapshot  int64
	SnapshotTimestamp int64
	Units             []uint64
	Version           int64
	Closed            bool
}

// Worker updates projection tables from processed notifications. Its input
// channel is non-blocking on the engine side: if this worker falls behind,
// notifications are dropped and the tables are rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	history   *HistoryCache
	lastSeq   int64
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan Output, history *HistoryCache, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		history:   history,
		log:       log.With().Str("component", "projection").Logger(),
	}
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if w.history != nil {
				w.history.Add(output)
			}

			if err := w.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent and rebuildable from
				// the event log, so a failed update is logged, not fatal.
				w.log.Warn().Int64("sequence", output.Sequence).Err(err).
					Msg("projection update failed")
			}

			w.lastSeq = output.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, output Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if output.State != nil {
		if err := w.upsertVaultState(ctx, tx, output.Sequence, output.State); err != nil {
			return fmt.Errorf("vault state: %w", err)
		}
	}

	if output.VaultID != nil {
		if err := w.insertVaultHistory(ctx, tx, output); err != nil {
			return fmt.Errorf("vault history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) upsertVaultState(ctx context.Context, tx *sql.Tx, seq int64, s *VaultState) error {
	units := make([]int64, len(s.Units))
	for i, u := range s.Units {
		units[i] = int64(u)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.vault_state
			(vault_id, debt_principal, accrued_fee, fee_index_snapshot,
			 snapshot_timestamp, units, version, closed, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (vault_id) DO UPDATE SET
			debt_principal     = $2,
			accrued_fee        = $3,
			fee_index_snapshot = $4,
			snapshot_timestamp = $5,
			units              = $6,
			version            = $7,
			closed             = $8,
			last_sequence      = $9
	`, s.VaultID, s.DebtPrincipal, s.AccruedFee, s.FeeIndexSnapshot,
		s.SnapshotTimestamp, pq.Array(units), s.Version, s.Closed, seq)
	return err
}

func (w *Worker) insertVaultHistory(ctx context.Context, tx *sql.Tx, output Output) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.vault_history
			(sequence, vault_id, event_type, actor, payload, timestamp)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6))
		ON CONFLICT (sequence) DO NOTHING
	`, output.Sequence, *output.VaultID, output.EventType, output.Actor,
		output.Payload, output.Timestamp)
	return err
}

// Rebuild repopulates vault_history from the event log and resets the
// watermark. vault_state is authoritative from the engine snapshot path, so
// only the history table is derived here.
func Rebuild(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE projections.vault_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.vault_history
			(sequence, vault_id, event_type, actor, payload, timestamp)
		SELECT sequence, vault_id, event_type, actor, payload, timestamp
		FROM vault_log.events
		WHERE vault_id IS NOT NULL
		ON CONFLICT (sequence) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("rebuild vault history: %w", err)
	}

	return nil
}
