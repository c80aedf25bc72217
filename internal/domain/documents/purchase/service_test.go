package purchase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
	"landedcost/internal/core/id"
	"landedcost/internal/core/numerator"
	"landedcost/internal/core/security"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/events"
	"landedcost/internal/domain/fx"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/storage/memory"
)

type fixture struct {
	store *memory.Store
	svc   *purchase.Service
}

type fixtureOption func(*purchase.CompleterConfig, *purchase.ServiceConfig)

func withCostPolicy(p costing.ProductCostPolicy) fixtureOption {
	return func(c *purchase.CompleterConfig, _ *purchase.ServiceConfig) { c.CostPolicy = p }
}

func withAuthorizer(a security.Authorizer) fixtureOption {
	return func(_ *purchase.CompleterConfig, s *purchase.ServiceConfig) { s.Authorizer = a }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	codec, err := audit.NewCodec(0)
	require.NoError(t, err)

	store := memory.NewStore(codec)
	engine := costing.NewEngine(fx.NewPolicy("ARS"), costing.RoundAtOutput)

	cc := purchase.CompleterConfig{
		Purchases: store.Purchases(),
		Products:  store.Products(),
		Stock:     stock.NewService(store.Stock()),
		TxManager: store,
		Engine:    engine,
		Audit:     store.Audit(),
		Events:    store.Outbox(),
	}
	sc := purchase.ServiceConfig{
		Repo:       store.Purchases(),
		Engine:     engine,
		Numerator:  numerator.NewMemoryGenerator(),
		TxManager:  store,
		Authorizer: security.AllowAll{},
		Audit:      store.Audit(),
		Events:     store.Outbox(),
	}
	for _, opt := range opts {
		opt(&cc, &sc)
	}
	sc.Completer = purchase.NewCompleter(cc)

	return &fixture{store: store, svc: purchase.NewService(sc)}
}

func (f *fixture) product(t *testing.T, code string, stockQty int64, cost string) *product.Product {
	t.Helper()
	p := product.New(code, "Product "+code)
	p.Stock = stockQty
	p.Cost = types.MustMoney(cost)
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) stockOf(t *testing.T, productID id.ID) *product.Product {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p
}

func money(s string) types.Money { return types.MustMoney(s) }

func TestService_CreateAssignsNumberAndNormalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 0, "0")

	p := purchase.New("ARS")
	p.CurrencyCode = "ars"
	p.ExchangeRate = money("999")
	it := p.AddItem(prod.ID, 2, money("100"))
	foreign := money("3")
	it.UnitPriceForeign = &foreign

	require.NoError(t, f.svc.Create(ctx, p))

	assert.Regexp(t, `^PO-\d{4}-00001$`, p.Number)
	assert.Equal(t, "ARS", p.CurrencyCode)
	assert.True(t, p.ExchangeRate.Equal(types.One()))
	assert.Nil(t, p.Items[0].UnitPriceForeign)
	assert.Equal(t, purchase.StatusPending, p.Status)

	stored, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Number, stored.Number)
}

func TestService_CompleteImportInForeignCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "IMP-1", 0, "0")

	p := purchase.New("ARS")
	p.Type = purchase.TypeImport
	p.CurrencyCode = "USD"
	p.ExchangeRate = money("1000")
	p.FreightCost = money("5")
	p.TaxCost = money("200")
	p.AddForeignItem(prod.ID, 1, money("10"))
	require.NoError(t, f.svc.Create(ctx, p))

	preview, err := f.svc.PreviewStored(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "15200.00", preview.GrandTotalLocal.StringFixed(2))

	done, err := f.svc.Complete(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, purchase.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Items[0].FinalUnitCostLocal)
	assert.Equal(t, "15200.00", done.Items[0].FinalUnitCostLocal.StringFixed(2))
	require.NotNil(t, done.Items[0].FinalUnitCostForeign)
	assert.Equal(t, "15.20", done.Items[0].FinalUnitCostForeign.StringFixed(2))
	assert.Equal(t, "5200.00", done.Items[0].DistributedCostLocal.StringFixed(2))

	got := f.stockOf(t, prod.ID)
	assert.Equal(t, int64(1), got.Stock)
	assert.Equal(t, "15200.00", got.Cost.StringFixed(2))

	movements, err := f.store.Stock().GetMovementsByRecorder(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, int64(1), movements[0].Quantity)

	published := f.store.Outbox().Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.PurchaseCompleted, published[0].EventType)

	entries, err := f.store.Audit().Entries(p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionComplete, entries[1].Action)
}

func TestService_CompleteTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 5, "100")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 3, money("120"))
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.Complete(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "purchase already finalized")

	got := f.stockOf(t, prod.ID)
	assert.Equal(t, int64(8), got.Stock)
	assert.Len(t, f.store.Outbox().Events(), 1)
}

func TestService_CompleteWithoutItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := purchase.New("ARS")
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.Complete(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Contains(t, err.Error(), "purchase has no items")

	stored, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusPending, stored.Status)
	assert.Empty(t, f.store.Outbox().Events())
}

func TestService_CompleteMissingProductRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 10, "50")

	p := purchase.New("ARS")
	p.FreightCost = money("30")
	p.AddItem(prod.ID, 2, money("60"))
	p.AddItem(id.New(), 1, money("40"))
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.Complete(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsProductNotFound(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 2, appErr.Details["lineNo"])

	got := f.stockOf(t, prod.ID)
	assert.Equal(t, int64(10), got.Stock)
	assert.Equal(t, "50.00", got.Cost.StringFixed(2))

	stored, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusPending, stored.Status)
	assert.Nil(t, stored.Items[0].FinalUnitCostLocal)

	movements, err := f.store.Stock().GetMovementsByRecorder(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.Empty(t, f.store.Outbox().Events())
}

func TestService_ConcurrentCompletionSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 0, "0")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 4, money("25"))
	require.NoError(t, f.svc.Create(ctx, p))

	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.svc.Complete(ctx, p.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.IsInvalidState(err) || apperror.IsConcurrentModification(err):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, int64(4), f.stockOf(t, prod.ID).Stock)
}

// cancelAfterRead hands out the pending snapshot, then cancels the stored
// purchase so the completer's locked re-read sees a terminal status.
type cancelAfterRead struct {
	purchase.Repository
	once sync.Once
}

func (r *cancelAfterRead) GetByID(ctx context.Context, purchaseID id.ID) (*purchase.Purchase, error) {
	snapshot, err := r.Repository.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	var cancelErr error
	r.once.Do(func() {
		stored, err := r.Repository.GetByID(ctx, purchaseID)
		if err != nil {
			cancelErr = err
			return
		}
		if err := stored.Cancel(); err != nil {
			cancelErr = err
			return
		}
		cancelErr = r.Repository.Update(ctx, stored)
	})
	return snapshot, cancelErr
}

func TestService_CompleteRejectsPurchaseCancelledAfterCheck(t *testing.T) {
	f := newFixture(t, func(c *purchase.CompleterConfig, _ *purchase.ServiceConfig) {
		c.Purchases = &cancelAfterRead{Repository: c.Purchases}
	})
	ctx := context.Background()
	prod := f.product(t, "P-1", 5, "10")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 3, money("20"))
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.Complete(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err), "got %v", err)

	got := f.stockOf(t, prod.ID)
	assert.Equal(t, int64(5), got.Stock)
	assert.Equal(t, "10.00", got.Cost.StringFixed(2))

	stored, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusCancelled, stored.Status)
	assert.Nil(t, stored.CompletedAt)

	movements, err := f.store.Stock().GetMovementsByRecorder(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestService_CompleteWeightedAverageCost(t *testing.T) {
	f := newFixture(t, withCostPolicy(costing.WeightedAverage))
	ctx := context.Background()
	prod := f.product(t, "P-1", 10, "100")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 10, money("200"))
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.Complete(ctx, p.ID)
	require.NoError(t, err)

	got := f.stockOf(t, prod.ID)
	assert.Equal(t, int64(20), got.Stock)
	assert.Equal(t, "150.00", got.Cost.StringFixed(2))
}

func TestService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 0, "0")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 1, money("10"))
	require.NoError(t, f.svc.Create(ctx, p))

	got, err := f.svc.SetStatus(ctx, p.ID, purchase.StatusCustoms)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusCustoms, got.Status)

	same, err := f.svc.SetStatus(ctx, p.ID, purchase.StatusCustoms)
	require.NoError(t, err)
	assert.Equal(t, got.Version, same.Version)

	_, err = f.svc.SetStatus(ctx, p.ID, purchase.StatusCompleted)
	assert.True(t, apperror.IsInvalidState(err))

	cancelled, err := f.svc.Cancel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusCancelled, cancelled.Status)

	published := f.store.Outbox().Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.PurchaseCancelled, published[0].EventType)

	_, err = f.svc.Complete(ctx, p.ID)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, int64(0), f.stockOf(t, prod.ID).Stock)
}

func TestService_UpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := f.product(t, "P-1", 0, "0")

	p := purchase.New("ARS")
	p.AddItem(prod.ID, 1, money("10"))
	require.NoError(t, f.svc.Create(ctx, p))

	stale := p.Clone()

	p.Comment = "first edit"
	p.Status = purchase.StatusReceived
	require.NoError(t, f.svc.Update(ctx, p))
	assert.Equal(t, purchase.StatusPending, p.Status)

	stale.Comment = "lost update"
	err := f.svc.Update(ctx, stale)
	assert.True(t, apperror.IsConcurrentModification(err))

	_, err = f.svc.Complete(ctx, p.ID)
	require.NoError(t, err)

	latest, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	latest.Comment = "after completion"
	err = f.svc.Update(ctx, latest)
	assert.True(t, apperror.IsInvalidState(err))

	err = f.svc.Delete(ctx, p.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestService_PreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := purchase.New("ARS")
	p.FreightCost = money("50")
	p.AddItem(id.New(), 2, money("100"))
	p.AddItem(id.New(), 1, money("300"))

	res, err := f.svc.Preview(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "550.00", res.GrandTotalLocal.StringFixed(2))
	assert.Equal(t, "110.00", res.Lines[0].FinalUnitCostLocal.StringFixed(2))

	list, err := f.svc.List(ctx, purchase.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestService_Authorization(t *testing.T) {
	authz, err := security.NewPolicyAuthorizer(security.DefaultPolicy)
	require.NoError(t, err)

	f := newFixture(t, withAuthorizer(authz))

	_, err = f.svc.Complete(context.Background(), id.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	reader := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "u-1",
		Permissions: []string{string(security.PermissionPurchaseRead)},
	})
	_, err = f.svc.Complete(reader, id.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	writer := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "u-2",
		Permissions: []string{
			string(security.PermissionPurchaseCreate),
			string(security.PermissionPurchaseUpdate),
		},
	})
	prod := f.product(t, "P-1", 0, "0")
	p := purchase.New("ARS")
	p.AddItem(prod.ID, 1, money("10"))
	require.NoError(t, f.svc.Create(writer, p))

	done, err := f.svc.Complete(writer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusCompleted, done.Status)

	entries, err := f.store.Audit().Entries(p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "u-2", entries[0].UserID)
}
