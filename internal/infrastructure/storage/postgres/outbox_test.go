package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landedcost/internal/core/id"
)

type execCall struct {
	sql  string
	args []any
}

// mockQuerier records Exec calls. failOn makes the n-th Exec (1-based) fail.
type mockQuerier struct {
	calls  []execCall
	failOn int
}

func (m *mockQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.calls = append(m.calls, execCall{sql: sql, args: args})
	if m.failOn == len(m.calls) {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (m *mockQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func newMessage(eventType string, retries int) *OutboxMessage {
	return &OutboxMessage{
		ID:            id.New(),
		AggregateType: "purchase",
		AggregateID:   id.New(),
		EventType:     eventType,
		Status:        OutboxStatusPending,
		RetryCount:    retries,
	}
}

// failingFor rejects messages of the given event type.
func failingFor(eventType string) OutboxHandler {
	return OutboxHandlerFunc(func(_ context.Context, msg *OutboxMessage) error {
		if msg.EventType == eventType {
			return errors.New("broker unavailable")
		}
		return nil
	})
}

func TestOutboxRelay_DeliverAllPublishes(t *testing.T) {
	q := &mockQuerier{}
	relay := NewOutboxRelay(nil, 10, failingFor("none"))

	msgs := []*OutboxMessage{newMessage("purchase.completed", 0), newMessage("purchase.completed", 0)}
	n, err := relay.deliverAll(context.Background(), q, msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, q.calls, 2)
	for i, call := range q.calls {
		assert.True(t, strings.HasPrefix(call.sql, "UPDATE sys_outbox SET status = $1"), call.sql)
		assert.Equal(t, OutboxStatusPublished, call.args[0])
		assert.Equal(t, msgs[i].ID, call.args[len(call.args)-1])
	}
}

func TestOutboxRelay_DeliverAllRecordsHandlerFailures(t *testing.T) {
	tests := []struct {
		name       string
		retries    int
		wantStatus OutboxStatus
	}{
		{"first failure stays pending", 0, OutboxStatusPending},
		{"below limit stays pending", maxOutboxRetries - 2, OutboxStatusPending},
		{"last retry marks failed", maxOutboxRetries - 1, OutboxStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			relay := NewOutboxRelay(nil, 10, failingFor("purchase.completed"))

			failing := newMessage("purchase.completed", tt.retries)
			ok := newMessage("purchase.cancelled", 0)
			n, err := relay.deliverAll(context.Background(), q, []*OutboxMessage{failing, ok})

			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.Len(t, q.calls, 2)

			retry := q.calls[0]
			assert.Contains(t, retry.sql, "retry_count = retry_count + 1")
			assert.Contains(t, retry.args, "broker unavailable")
			assert.Contains(t, retry.args, tt.wantStatus)
			assert.Equal(t, failing.ID, retry.args[len(retry.args)-1])

			assert.Equal(t, OutboxStatusPublished, q.calls[1].args[0])
			assert.Equal(t, ok.ID, q.calls[1].args[len(q.calls[1].args)-1])
		})
	}
}

func TestOutboxRelay_DeliverAllStopsOnBookkeepingError(t *testing.T) {
	tests := []struct {
		name    string
		handler OutboxHandler
		wantErr string
	}{
		{"publish update fails", failingFor("none"), "record published delivery"},
		{"retry update fails", failingFor("purchase.completed"), "record failed delivery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{failOn: 2}
			relay := NewOutboxRelay(nil, 10, tt.handler)

			msgs := []*OutboxMessage{
				newMessage("purchase.cancelled", 0),
				newMessage("purchase.completed", 0),
				newMessage("purchase.cancelled", 0),
			}
			_, err := relay.deliverAll(context.Background(), q, msgs)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), msgs[1].ID.String())
			var hErr *handlerError
			assert.False(t, errors.As(err, &hErr))
			assert.Len(t, q.calls, 2, "third message must not be attempted")
		})
	}
}
