package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// EventLogWriter writes notification envelopes to Postgres using multi-row
// INSERT with ON CONFLICT DO NOTHING, so replays after a crash are
// idempotent on sequence.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in vault_log.events.
type EventRow struct {
	Sequence  int64
	EventType string
	Actor     string
	VaultID   *int64
	Payload   []byte // JSON-encoded notification payload
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of rows to vault_log.events inside the
// given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO vault_log.events
		(sequence, event_type, actor, vault_id, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*6)

	for i, e := range events {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			e.Sequence, e.EventType, e.Actor, e.VaultID, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MaxSequence returns the highest persisted sequence, -1 for an empty log.
func (w *EventLogWriter) MaxSequence(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM vault_log.events`).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// MarshalPayload JSON-encodes a notification payload for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal payload")
		return []byte("{}")
	}
	return data
}
