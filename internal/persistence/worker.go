package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"pledgepool/internal/event"
	"pledgepool/internal/observability"
)

// Worker drains the persist channel and batch-writes the audit log to
// Postgres. The engine sends blocking, so if this worker falls behind the
// engine stalls rather than losing a record.
type Worker struct {
	writer       *AuditLogWriter
	input        <-chan *event.Envelope
	batchSize    int
	flushTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	input <-chan *event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewAuditLogWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Writer returns the underlying audit log writer.
func (w *Worker) Writer() *AuditLogWriter {
	return w.writer
}

// Run batches incoming records and flushes when the batch is full or the
// flush timeout expires. Blocks until ctx is cancelled or the input channel
// closes; either way the pending batch is flushed first.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]AuditRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.logger.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case env, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.logger.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, RowFromEnvelope(env))
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or the context is cancelled. On cancellation one final write runs with a
// background context so the batch is not lost on shutdown.
func (w *Worker) flushWithRetry(ctx context.Context, rows []AuditRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(rows)).
				Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), rows); err != nil {
					w.logger.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, rows); err == nil {
			if attempt > 0 {
				w.logger.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return
		}
	}
}

func (w *Worker) flush(ctx context.Context, rows []AuditRow) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteBatch(ctx, tx, rows); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write").Inc()
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(rows)))
		w.metrics.PersistRecordsWritten.Add(float64(len(rows)))
		w.metrics.PersistLastSequence.Set(float64(rows[len(rows)-1].Sequence))
	}
	return nil
}
