package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"pledgepool/internal/event"
	"pledgepool/internal/observability"
)

// OutboundPublisher publishes audit records to NATS for downstream
// consumers (projections, notifications, analytics).
// Subjects follow the pattern: pledge.pool.events.{action}[.{pool_id}]
type OutboundPublisher struct {
	js      jetstream.JetStream
	input   <-chan *event.Envelope
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// PublishedRecord is the wire form of an audit record on NATS.
type PublishedRecord struct {
	Sequence    int64           `json:"sequence"`
	RecordID    string          `json:"record_id"`
	Action      string          `json:"action"`
	PoolID      *uint64         `json:"pool_id,omitempty"`
	Participant string          `json:"participant,omitempty"`
	FromState   *string         `json:"from_state,omitempty"`
	ToState     *string         `json:"to_state,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

func NewOutboundPublisher(js jetstream.JetStream, input <-chan *event.Envelope, logger zerolog.Logger, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:      js,
		input:   input,
		logger:  logger,
		metrics: metrics,
	}
}

// Run publishes until ctx is cancelled or the input channel closes.
// Publish failures are non-fatal: the audit log in Postgres is the durable
// record, the stream is best-effort fanout.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.input:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				op.logger.Warn().
					Err(err).
					Int64("sequence", env.Sequence).
					Msg("outbound publish failed")
				continue
			}
			if op.metrics != nil {
				op.metrics.PublishedRecords.Inc()
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, env *event.Envelope) error {
	rec := PublishedRecord{
		Sequence:    env.Sequence,
		RecordID:    env.RecordID.String(),
		Action:      env.Action.String(),
		PoolID:      env.PoolID,
		Participant: env.Participant,
		FromState:   env.FromState,
		ToState:     env.ToState,
		Timestamp:   env.Timestamp,
		Payload:     json.RawMessage(env.Payload),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := fmt.Sprintf("pledge.pool.events.%s", env.Action)
	if env.PoolID != nil {
		subject = fmt.Sprintf("%s.%d", subject, *env.PoolID)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PLEDGE_POOL_EVENTS",
		Subjects:  []string{"pledge.pool.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger.Info().Str("stream", "PLEDGE_POOL_EVENTS").Msg("ensured outbound stream")
	return nil
}
