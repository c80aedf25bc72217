package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"landedcost/internal/core/id"
	"landedcost/internal/domain"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/infrastructure/storage/postgres"
)

const (
	purchaseTable      = "doc_purchases"
	purchaseItemsTable = "doc_purchase_items"
)

// PurchaseRepo implements purchase.Repository. Items are stored in a child
// table and replaced wholesale on update.
type PurchaseRepo struct {
	*BaseDocumentRepo[*purchase.Purchase]
	itemCols []string
}

var _ purchase.Repository = (*PurchaseRepo)(nil)

// NewPurchaseRepo creates a new purchase repository.
func NewPurchaseRepo(txManager *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"purchase",
			purchaseTable,
			postgres.ExtractDBColumns[purchase.Purchase](),
			func() *purchase.Purchase { return &purchase.Purchase{} },
		),
		itemCols: postgres.ExtractDBColumns[purchase.Item](),
	}
}

// Create inserts header and items in one transaction.
func (r *PurchaseRepo) Create(ctx context.Context, p *purchase.Purchase) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.Insert(ctx, p); err != nil {
			return err
		}
		return r.insertItems(ctx, p.ID, p.Items)
	})
}

// GetByID loads header and items.
func (r *PurchaseRepo) GetByID(ctx context.Context, purchaseID id.ID) (*purchase.Purchase, error) {
	return r.load(ctx, purchaseID, false)
}

// GetForUpdate loads header and items with a row lock on the header.
func (r *PurchaseRepo) GetForUpdate(ctx context.Context, purchaseID id.ID) (*purchase.Purchase, error) {
	return r.load(ctx, purchaseID, true)
}

func (r *PurchaseRepo) load(ctx context.Context, purchaseID id.ID, forUpdate bool) (*purchase.Purchase, error) {
	p, err := r.Get(ctx, purchaseID, forUpdate)
	if err != nil {
		return nil, err
	}

	items, err := r.itemsOf(ctx, []id.ID{purchaseID})
	if err != nil {
		return nil, err
	}
	p.Items = items[purchaseID]
	if p.Items == nil {
		p.Items = make([]purchase.Item, 0)
	}
	return p, nil
}

// Update writes header and replaces items under the version check.
func (r *PurchaseRepo) Update(ctx context.Context, p *purchase.Purchase) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		version, err := r.UpdateHeader(ctx, p)
		if err != nil {
			return err
		}

		sql, args, err := r.Builder().Delete(purchaseItemsTable).
			Where(squirrel.Eq{"purchase_id": p.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete items: %w", err)
		}
		if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		if err := r.insertItems(ctx, p.ID, p.Items); err != nil {
			return err
		}

		p.Version = version
		return nil
	})
}

// List returns headers with their items.
func (r *PurchaseRepo) List(ctx context.Context, filter purchase.ListFilter) (domain.ListResult[*purchase.Purchase], error) {
	q := r.SelectBuilder()

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"comment": pattern},
		})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	result, err := r.Page(ctx, q, filter.ListFilter, "date DESC, number DESC")
	if err != nil {
		return result, err
	}
	if len(result.Items) == 0 {
		return result, nil
	}

	ids := make([]id.ID, len(result.Items))
	for i, p := range result.Items {
		ids[i] = p.ID
	}
	items, err := r.itemsOf(ctx, ids)
	if err != nil {
		return result, err
	}
	for _, p := range result.Items {
		p.Items = items[p.ID]
		if p.Items == nil {
			p.Items = make([]purchase.Item, 0)
		}
	}
	return result, nil
}

type itemRow struct {
	PurchaseID id.ID `db:"purchase_id"`
	purchase.Item
}

func (r *PurchaseRepo) itemsOf(ctx context.Context, purchaseIDs []id.ID) (map[id.ID][]purchase.Item, error) {
	cols := append([]string{"purchase_id"}, r.itemCols...)
	sql, args, err := r.Builder().Select(cols...).
		From(purchaseItemsTable).
		Where(squirrel.Eq{"purchase_id": purchaseIDs}).
		OrderBy("purchase_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	out := make(map[id.ID][]purchase.Item, len(purchaseIDs))
	for _, row := range rows {
		out[row.PurchaseID] = append(out[row.PurchaseID], row.Item)
	}
	return out, nil
}

func (r *PurchaseRepo) insertItems(ctx context.Context, purchaseID id.ID, items []purchase.Item) error {
	if len(items) == 0 {
		return nil
	}

	cols := append([]string{"purchase_id"}, r.itemCols...)
	q := r.Builder().Insert(purchaseItemsTable).Columns(cols...)
	for i := range items {
		data := postgres.StructToMap(&items[i])
		values := make([]any, 0, len(cols))
		values = append(values, purchaseID)
		for _, col := range r.itemCols {
			values = append(values, data[col])
		}
		q = q.Values(values...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert items: %w", err), "purchase item")
	}
	return nil
}
