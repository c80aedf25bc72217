// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "reg_stock_movements"

var movementColumns = []string{
	"line_id", "recorder_id", "recorder_type", "period", "record_type",
	"product_id", "quantity", "unit_cost", "amount", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func movementRow(m entity.StockMovement) []any {
	return []any{
		m.LineID, m.RecorderID, m.RecorderType, m.Period, m.RecordType,
		m.ProductID, m.Quantity, m.UnitCost, m.Amount, m.CreatedAt,
	}
}

// CreateMovements inserts movements. Inside a transaction it uses COPY.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, len(movements))
		for i, m := range movements {
			rows[i] = movementRow(m)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{stockMovementsTable}, movementColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(stockMovementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementRow(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert movements: %w", err), "stock movement")
	}
	return nil
}

// GetMovementsByRecorder retrieves movements written by a document.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return r.selectMovements(ctx, r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id"))
}

// GetMovementsByProduct returns the newest movements for a product.
func (r *StockRepo) GetMovementsByProduct(ctx context.Context, productID id.ID, limit int) ([]entity.StockMovement, error) {
	return r.selectMovements(ctx, r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("period DESC", "created_at DESC").
		Limit(uint64(limit)))
}

func (r *StockRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]entity.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}
