package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"landedcost/internal/core/id"
	"landedcost/internal/domain/events"
	"landedcost/pkg/logger"
)

const (
	outboxTable = "sys_outbox"

	// maxOutboxRetries moves a message to failed after this many handler errors.
	maxOutboxRetries = 5
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is a row of the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
	"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
}

// OutboxPublisher implements events.Publisher on the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Publish writes an event in the caller's transaction. It fails outside a
// transaction: an event must never outlive a rolled-back state change.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	sql, args, err := p.builder.Insert(outboxTable).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler delivers a message downstream.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay claims pending messages and hands them to a handler.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
	builder   squirrel.StatementBuilderType
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		batchSize: batchSize,
		handler:   handler,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ProcessBatch claims up to batchSize due messages with SKIP LOCKED and
// delivers them. Returns the number delivered successfully. Handler failures
// are recorded for retry; an error is returned only when the batch itself
// could not be fetched or its outcomes could not be recorded.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	var processed int

	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := r.builder.Select(outboxColumns...).
			From(outboxTable).
			Where(squirrel.Eq{"status": OutboxStatusPending}).
			Where(squirrel.Or{
				squirrel.Eq{"next_retry_at": nil},
				squirrel.Expr("next_retry_at <= NOW()"),
			}).
			OrderBy("created_at").
			Limit(uint64(r.batchSize)).
			Suffix("FOR UPDATE SKIP LOCKED").
			ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}

		q := r.txManager.GetQuerier(ctx)
		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, q, &messages, sql, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		processed, err = r.deliverAll(ctx, q, messages)
		return err
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// handlerError marks a downstream failure that was already recorded for retry.
type handlerError struct {
	err error
}

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

// deliverAll delivers messages in order. A handler failure is logged and the
// batch moves on; a failure to record any outcome stops the batch so the
// surrounding transaction rolls back and the messages are claimed again.
func (r *OutboxRelay) deliverAll(ctx context.Context, q Querier, messages []*OutboxMessage) (int, error) {
	processed := 0
	for _, msg := range messages {
		err := r.deliver(ctx, q, msg)
		var hErr *handlerError
		switch {
		case err == nil:
			processed++
		case errors.As(err, &hErr):
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry", msg.RetryCount+1,
				"error", hErr.err)
		default:
			return processed, fmt.Errorf("outbox message %s: %w", msg.ID, err)
		}
	}
	return processed, nil
}

// deliver runs the handler and records the outcome. Handler errors are
// recorded with linear backoff and returned as *handlerError.
func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		status := OutboxStatusPending
		if msg.RetryCount+1 >= maxOutboxRetries {
			status = OutboxStatusFailed
		}
		sql, args, err := r.builder.Update(outboxTable).
			Set("retry_count", squirrel.Expr("retry_count + 1")).
			Set("last_error", handleErr.Error()).
			Set("next_retry_at", time.Now().UTC().Add(time.Duration(msg.RetryCount+1)*time.Minute)).
			Set("status", status).
			Where(squirrel.Eq{"id": msg.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build retry update: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("record failed delivery: %w", err)
		}
		return &handlerError{err: handleErr}
	}

	sql, args, err := r.builder.Update(outboxTable).
		Set("status", OutboxStatusPublished).
		Set("published_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": msg.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build publish update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("record published delivery: %w", err)
	}
	return nil
}

// LogHandler writes each message to the structured log. It is the default
// sink when no broker is configured.
func LogHandler() OutboxHandler {
	return OutboxHandlerFunc(func(ctx context.Context, msg *OutboxMessage) error {
		logger.Info(ctx, "outbox event",
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", string(msg.Payload))
		return nil
	})
}
