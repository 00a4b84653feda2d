package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"pledgepool/internal/event"
	"pledgepool/internal/observability"
	"pledgepool/internal/persistence"
	"pledgepool/internal/testutil"
)

func testRow(seq int64, action event.Action, poolID uint64) persistence.AuditRow {
	payload, _ := json.Marshal(map[string]string{"amount": "100"})
	env := &event.Envelope{
		Sequence:  seq,
		RecordID:  uuid.New(),
		Action:    action,
		PoolID:    &poolID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	return persistence.RowFromEnvelope(env)
}

func writeRows(t *testing.T, w *persistence.AuditLogWriter, rows []persistence.AuditRow) {
	t.Helper()
	ctx := context.Background()
	tx, err := w.DB().BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	if err := w.WriteBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// ============================================================
// Audit log writer (integration)
// ============================================================

func TestWriteBatchAndLastSequence(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", observability.NewLogger("test"))
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	w := persistence.NewAuditLogWriter(db)

	seq, err := w.LastSequence(ctx)
	if err != nil {
		t.Fatalf("last sequence on empty log: %v", err)
	}
	if seq != 0 {
		t.Fatalf("empty log sequence = %d, want 0", seq)
	}

	writeRows(t, w, []persistence.AuditRow{
		testRow(1, event.ActionPoolCreated, 1),
		testRow(2, event.ActionDepositLend, 1),
		testRow(3, event.ActionSettle, 1),
	})

	seq, err = w.LastSequence(ctx)
	if err != nil {
		t.Fatalf("last sequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("last sequence = %d, want 3", seq)
	}
}

func TestWriteBatchIdempotentOnSequence(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, "../../migrations", observability.NewLogger("test"))
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	w := persistence.NewAuditLogWriter(db)

	rows := []persistence.AuditRow{
		testRow(1, event.ActionPoolCreated, 7),
		testRow(2, event.ActionDepositLend, 7),
	}
	writeRows(t, w, rows)

	// Replaying the same batch after a crash must be a no-op.
	writeRows(t, w, rows)

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit.records`).Scan(&count); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 2 {
		t.Fatalf("record count = %d, want 2", count)
	}
}
