package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"landedcost/internal/core/apperror"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			"product",
			productTable,
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

// UpdateStockAndCost writes stock and cost only, under the version check.
func (r *ProductRepo) UpdateStockAndCost(ctx context.Context, p *product.Product) error {
	sql, args, err := r.Builder().
		Update(productTable).
		Set("stock", p.Stock).
		Set("cost", p.Cost).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var version int
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification("product", p.ID)
		}
		return postgres.MapError(fmt.Errorf("update product: %w", err), "product")
	}

	p.Version = version
	return nil
}
