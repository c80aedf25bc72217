package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"landedcost/internal/core/id"
	"landedcost/internal/domain/audit"
)

const auditTable = "sys_audit"

// AuditLog implements audit.Recorder on the sys_audit table.
type AuditLog struct {
	txManager *TxManager
	codec     *audit.Codec
	builder   squirrel.StatementBuilderType
}

var _ audit.Recorder = (*AuditLog)(nil)

// NewAuditLog creates an audit log writing through codec.
func NewAuditLog(txManager *TxManager, codec *audit.Codec) *AuditLog {
	return &AuditLog{
		txManager: txManager,
		codec:     codec,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Record seals and inserts the entry in the caller's transaction, if any.
func (a *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	a.codec.Seal(&entry)

	sql, args, err := a.builder.Insert(auditTable).
		Columns("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "digest", "created_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
			nullJSON(entry.Changes), entry.ChangesCompressed, entry.CompressionAlgo, entry.Digest, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity, opened and verified.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := a.builder.Select("id", "entity_type", "entity_id", "action", "user_id",
		"changes", "changes_compressed", "compression_algo", "digest", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []audit.Entry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i := range entries {
		if err := a.codec.Open(&entries[i]); err != nil {
			return nil, fmt.Errorf("open entry %s: %w", entries[i].ID, err)
		}
	}
	return entries, nil
}

// nullJSON maps an empty payload to SQL NULL for the jsonb column.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
