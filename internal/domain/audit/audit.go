// Package audit records who changed what. Large change sets are stored
// compressed and every entry carries a digest of its uncompressed changes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "landedcost/internal/core/context"
	"landedcost/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionStatus   Action = "status"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Entry is a single audit log record.
type Entry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            Action          `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"compressionAlgo"`
	Digest            []byte          `db:"digest" json:"digest"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// Recorder persists audit entries. Implementations must join the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader returns the opened history of an entity, newest first.
type Reader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// NewEntry builds an entry for the caller in ctx with JSON-encoded changes.
func NewEntry(ctx context.Context, entityType string, entityID id.ID, action Action, changes any) (Entry, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit changes: %w", err)
	}
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
