package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pledgepool/internal/event"
)

// AuditLogWriter writes audit records to Postgres using multi-row INSERT.
// Writes are idempotent on the sequence column, so a replayed batch after a
// crash is a no-op.
type AuditLogWriter struct {
	db *sql.DB
}

// AuditRow represents a row in audit.records.
type AuditRow struct {
	Sequence    int64
	RecordID    string
	Action      string
	PoolID      *int64
	Participant string
	FromState   *string
	ToState     *string
	Timestamp   time.Time
	Payload     []byte // JSON payload
}

func NewAuditLogWriter(db *sql.DB) *AuditLogWriter {
	return &AuditLogWriter{db: db}
}

// RowFromEnvelope converts an engine audit envelope into its storage row.
func RowFromEnvelope(env *event.Envelope) AuditRow {
	row := AuditRow{
		Sequence:    env.Sequence,
		RecordID:    env.RecordID.String(),
		Action:      env.Action.String(),
		Participant: env.Participant,
		FromState:   env.FromState,
		ToState:     env.ToState,
		Timestamp:   env.Timestamp,
		Payload:     env.Payload,
	}
	if env.PoolID != nil {
		id := int64(*env.PoolID)
		row.PoolID = &id
	}
	return row
}

// WriteBatch writes a batch of audit rows inside tx.
func (w *AuditLogWriter) WriteBatch(ctx context.Context, tx *sql.Tx, rows []AuditRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.records
		(sequence, record_id, action, pool_id, participant, from_state, to_state, timestamp, payload)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)

	for i, r := range rows {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			r.Sequence, r.RecordID, r.Action, r.PoolID,
			r.Participant, r.FromState, r.ToState, r.Timestamp, r.Payload,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted sequence, or zero on an empty
// log. Used at startup to resume the engine's sequence counter.
func (w *AuditLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM audit.records`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// DB exposes the underlying handle for the worker's transactions.
func (w *AuditLogWriter) DB() *sql.DB {
	return w.db
}
