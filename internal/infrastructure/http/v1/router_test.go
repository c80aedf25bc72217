package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "landedcost/internal/core/context"
	"landedcost/internal/core/numerator"
	"landedcost/internal/core/security"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/auth"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/fx"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/cache"
	"landedcost/internal/infrastructure/http/v1/dto"
	"landedcost/internal/infrastructure/http/v1/middleware"
	"landedcost/internal/infrastructure/storage/memory"
	"landedcost/pkg/logger"
)

type testAPI struct {
	router *gin.Engine
	store  *memory.Store
	admin  string
	reader string
}

func newTestAPI(t *testing.T, withRedis bool) *testAPI {
	t.Helper()

	codec, err := audit.NewCodec(0)
	require.NoError(t, err)
	store := memory.NewStore(codec)

	authorizer, err := security.NewPolicyAuthorizer(security.DefaultPolicy)
	require.NoError(t, err)

	engine := costing.NewEngine(fx.NewPolicy("ARS"), costing.RoundAtOutput)
	stockService := stock.NewService(store.Stock())

	cc := purchase.CompleterConfig{
		Purchases: store.Purchases(),
		Products:  store.Products(),
		Stock:     stockService,
		TxManager: store,
		Engine:    engine,
		Audit:     store.Audit(),
		Events:    store.Outbox(),
	}

	cfg := RouterConfig{
		Logger:     logger.NewNop(),
		Authorizer: authorizer,
		Products:   product.NewService(store.Products(), authorizer),
		Stock:      stockService,
		History:    store.Audit(),
		Version:    "test",
	}

	if withRedis {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		cc.Locker = cache.NewRedisLocker(rdb, time.Minute)
		cfg.Idempotency = cache.NewIdempotencyStore(rdb, time.Hour)
	}

	cfg.Purchases = purchase.NewService(purchase.ServiceConfig{
		Repo:       store.Purchases(),
		Completer:  purchase.NewCompleter(cc),
		Engine:     engine,
		Numerator:  numerator.NewMemoryGenerator(),
		TxManager:  store,
		Authorizer: authorizer,
		Audit:      store.Audit(),
		Events:     store.Outbox(),
	})

	jwtService, err := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	require.NoError(t, err)
	cfg.JWTValidator = jwtService

	admin, _, err := jwtService.GenerateAccessToken(appctx.UserContext{UserID: "admin", IsAdmin: true})
	require.NoError(t, err)
	reader, _, err := jwtService.GenerateAccessToken(appctx.UserContext{
		UserID:      "reader",
		Permissions: []string{"read:*"},
	})
	require.NoError(t, err)

	return &testAPI{router: NewRouter(cfg), store: store, admin: admin, reader: reader}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createProduct(t *testing.T, code string, stockQty int64, cost string) dto.ProductResponse {
	t.Helper()
	c := types.MustMoney(cost)
	w := a.do(t, http.MethodPost, "/api/v1/products", a.admin, dto.CreateProductRequest{
		Code: code, Name: "Product " + code, OpeningStock: stockQty, OpeningCost: &c,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.ProductResponse](t, w)
}

func importRequest(productID string) map[string]any {
	return map[string]any{
		"type":         "import",
		"currencyCode": "usd",
		"exchangeRate": "1000",
		"freightCost":  "5",
		"taxCost":      "200",
		"items": []map[string]any{
			{"productId": productID, "quantity": 1, "unitPriceForeign": "10"},
		},
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodGet, "/api/v1/purchases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[dto.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodGet, "/api/v1/purchases", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestRouter_PurchaseLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "IMP-1", 2, "100")

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, importRequest(prod.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.PurchaseResponse](t, w)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "USD", created.CurrencyCode)
	assert.Regexp(t, `^PO-\d{4}-00001$`, created.Number)
	assert.Equal(t, "15200.00", created.Totals.GrandTotalLocal.StringFixed(2))
	require.Len(t, created.Items, 1)
	assert.Equal(t, "10000.00", created.Items[0].UnitPriceLocal.StringFixed(2))
	assert.Nil(t, created.Items[0].FinalUnitCostLocal)

	base := "/api/v1/purchases/" + created.ID

	w = api.do(t, http.MethodGet, base+"/allocation", api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	alloc := decode[costing.Result](t, w)
	require.Len(t, alloc.Lines, 1)
	assert.Equal(t, "5200.00", alloc.Lines[0].DistributedCostLocal.StringFixed(2))

	w = api.do(t, http.MethodPost, base+"/status", api.admin, dto.SetStatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "IN_TRANSIT", decode[dto.PurchaseResponse](t, w).Status)

	w = api.do(t, http.MethodPost, base+"/status", api.admin, dto.SetStatusRequest{Status: "COMPLETED"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decode[dto.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodPost, base+"/complete", api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[dto.PurchaseResponse](t, w)
	assert.Equal(t, "COMPLETED", done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Items[0].FinalUnitCostLocal)
	assert.Equal(t, "15200.00", done.Items[0].FinalUnitCostLocal.StringFixed(2))
	require.NotNil(t, done.Items[0].FinalUnitCostForeign)
	assert.Equal(t, "15.20", done.Items[0].FinalUnitCostForeign.StringFixed(2))

	w = api.do(t, http.MethodPost, base+"/complete", api.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	errResp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, "INVALID_STATE", errResp.Code)
	assert.Equal(t, "purchase already finalized", errResp.Message)

	w = api.do(t, http.MethodGet, "/api/v1/products/"+prod.ID, api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	after := decode[dto.ProductResponse](t, w)
	assert.Equal(t, int64(3), after.Stock)
	assert.Equal(t, "15200.00", after.Cost.StringFixed(2))

	w = api.do(t, http.MethodGet, base+"/movements", api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	movements := decode[struct {
		Items []dto.StockMovementResponse `json:"items"`
	}](t, w)
	require.Len(t, movements.Items, 1)
	assert.Equal(t, int64(1), movements.Items[0].Quantity)

	w = api.do(t, http.MethodGet, "/api/v1/products/"+prod.ID+"/movements", api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, base+"/history", api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Items []audit.Entry `json:"items"`
	}](t, w)
	require.Len(t, history.Items, 3)
	assert.Equal(t, audit.ActionComplete, history.Items[0].Action)

	w = api.do(t, http.MethodPut, base, api.admin, dto.UpdatePurchaseRequest{Version: done.Version})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodDelete, base, api.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_UpdateAndDelete(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, map[string]any{
		"items": []map[string]any{{"productId": prod.ID, "quantity": 2, "unitPriceLocal": "100"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.PurchaseResponse](t, w)
	assert.Equal(t, "ARS", created.CurrencyCode)
	base := "/api/v1/purchases/" + created.ID

	update := dto.UpdatePurchaseRequest{Version: created.Version}
	update.Comment = "second shipment"
	update.Items = []dto.PurchaseItemRequest{{ProductID: prod.ID, Quantity: 4, UnitPriceLocal: ptr(types.MustMoney("50"))}}

	w = api.do(t, http.MethodPut, base, api.admin, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.PurchaseResponse](t, w)
	assert.Equal(t, created.Number, updated.Number)
	assert.Equal(t, "second shipment", updated.Comment)
	assert.Equal(t, created.Version+1, updated.Version)
	assert.Equal(t, "200.00", updated.Totals.SubtotalLocal.StringFixed(2))

	// Stale version.
	w = api.do(t, http.MethodPut, base, api.admin, update)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", decode[dto.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodGet, "/api/v1/purchases?status=pending&search=PO-", api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[dto.ListResponse[dto.PurchaseResponse]](t, w)
	assert.Equal(t, int64(1), list.TotalCount)
	require.Len(t, list.Items, 1)
	assert.Empty(t, list.Items[0].Items)

	w = api.do(t, http.MethodDelete, base, api.admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, base, api.reader, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ValidationErrors(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{
			name:  "zero quantity",
			body:  map[string]any{"items": []map[string]any{{"productId": prod.ID, "quantity": 0, "unitPriceLocal": "1"}}},
			field: "items[0].quantity",
		},
		{
			name:  "negative cost",
			body:  map[string]any{"freightCost": "-1", "items": []map[string]any{}},
			field: "freightCost",
		},
		{
			name:  "zero rate",
			body:  map[string]any{"currencyCode": "USD", "exchangeRate": "0"},
			field: "exchangeRate",
		},
		{
			name:  "bad currency",
			body:  map[string]any{"currencyCode": "US1"},
			field: "currencyCode",
		},
		{
			name:  "bad type",
			body:  map[string]any{"type": "barter"},
			field: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			resp := decode[struct {
				Code    string `json:"code"`
				Details struct {
					Fields []dto.FieldError `json:"fields"`
				} `json:"details"`
			}](t, w)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			require.NotEmpty(t, resp.Details.Fields)
			assert.Equal(t, tt.field, resp.Details.Fields[0].Field)
		})
	}

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, map[string]any{
		"items": []map[string]any{{"productId": prod.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/purchases/not-an-id", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RejectsAmountsStorageWouldRound(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	usd := func(rate string, line map[string]any) map[string]any {
		line["productId"] = prod.ID
		line["quantity"] = 1
		body := map[string]any{
			"type":         "import",
			"currencyCode": "USD",
			"items":        []map[string]any{line},
		}
		if rate != "" {
			body["exchangeRate"] = rate
		}
		return body
	}

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{
			name:  "foreign currency without rate",
			body:  usd("", map[string]any{"unitPriceForeign": "10"}),
			field: "exchangeRate",
		},
		{
			name:  "rate beyond 8 decimals",
			body:  usd("1000.123456789", map[string]any{"unitPriceForeign": "10"}),
			field: "exchangeRate",
		},
		{
			name:  "foreign price beyond 4 decimals",
			body:  usd("1000", map[string]any{"unitPriceForeign": "1.23456"}),
			field: "unitPriceForeign",
		},
		{
			name: "local price beyond 2 decimals",
			body: map[string]any{"items": []map[string]any{
				{"productId": prod.ID, "quantity": 1000, "unitPriceLocal": "0.005"},
			}},
			field: "unitPriceLocal",
		},
		{
			name:  "cost beyond 2 decimals",
			body:  map[string]any{"freightCost": "1.001", "items": []map[string]any{}},
			field: "freightCost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/v1/purchases", "/api/v1/purchases/preview"} {
				w := api.do(t, http.MethodPost, path, api.admin, tt.body)
				require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

				resp := decode[dto.ErrorResponse](t, w)
				assert.Equal(t, "VALIDATION_ERROR", resp.Code)
				assert.Equal(t, tt.field, resp.Details["field"])
			}
		})
	}

	list, err := api.store.Purchases().List(context.Background(), purchase.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestRouter_LocalCurrencyDefaultsRateToOne(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, map[string]any{
		"currencyCode": "ARS",
		"items": []map[string]any{
			{"productId": prod.ID, "quantity": 2, "unitPriceForeign": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[dto.PurchaseResponse](t, w)
	assert.True(t, created.ExchangeRate.Equal(types.One()))
	require.Len(t, created.Items, 1)
	assert.Equal(t, "10.00", created.Items[0].UnitPriceLocal.StringFixed(2))
	assert.Nil(t, created.Items[0].UnitPriceForeign)
	assert.Equal(t, "20.00", created.Totals.SubtotalLocal.StringFixed(2))
}

func TestRouter_UpdateKeepsLineIDs(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, map[string]any{
		"items": []map[string]any{
			{"productId": prod.ID, "quantity": 1, "unitPriceLocal": "10"},
			{"productId": prod.ID, "quantity": 1, "unitPriceLocal": "20"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.PurchaseResponse](t, w)
	require.Len(t, created.Items, 2)
	keptID := created.Items[1].ID
	base := "/api/v1/purchases/" + created.ID

	update := dto.UpdatePurchaseRequest{Version: created.Version}
	update.Items = []dto.PurchaseItemRequest{
		{ID: &keptID, ProductID: prod.ID, Quantity: 3, UnitPriceLocal: ptr(types.MustMoney("20"))},
		{ProductID: prod.ID, Quantity: 1, UnitPriceLocal: ptr(types.MustMoney("5"))},
	}

	w = api.do(t, http.MethodPut, base, api.admin, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[dto.PurchaseResponse](t, w)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, keptID, updated.Items[0].ID)
	assert.Equal(t, 1, updated.Items[0].LineNo)
	assert.NotEqual(t, created.Items[0].ID, updated.Items[1].ID)
	assert.NotEqual(t, keptID, updated.Items[1].ID)

	w = api.do(t, http.MethodGet, base, api.reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, keptID, decode[dto.PurchaseResponse](t, w).Items[0].ID)

	tests := []struct {
		name string
		ids  []string
	}{
		{"id from another purchase", []string{created.ID}},
		{"same id twice", []string{keptID, keptID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := dto.UpdatePurchaseRequest{Version: updated.Version}
			for i := range tt.ids {
				bad.Items = append(bad.Items, dto.PurchaseItemRequest{
					ID: &tt.ids[i], ProductID: prod.ID, Quantity: 1, UnitPriceLocal: ptr(types.MustMoney("1")),
				})
			}
			w := api.do(t, http.MethodPut, base, api.admin, bad)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decode[dto.ErrorResponse](t, w).Code)
		})
	}
}

func TestRouter_PreviewDoesNotPersist(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	w := api.do(t, http.MethodPost, "/api/v1/purchases/preview", api.reader, importRequest(prod.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[costing.Result](t, w)
	assert.True(t, res.Foreign)
	assert.Equal(t, "15200.00", res.GrandTotalLocal.StringFixed(2))

	list, err := api.store.Purchases().List(context.Background(), purchase.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestRouter_ReaderCannotMutate(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.reader, importRequest(prod.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, importRequest(prod.ID))
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[dto.PurchaseResponse](t, w)

	w = api.do(t, http.MethodPost, "/api/v1/purchases/"+created.ID+"/complete", api.reader, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/purchases/"+created.ID, api.reader, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CompleteMissingProduct(t *testing.T) {
	api := newTestAPI(t, false)
	prod := api.createProduct(t, "P-1", 0, "0")

	body := importRequest(prod.ID)
	body["items"] = []map[string]any{
		{"productId": prod.ID, "quantity": 1, "unitPriceForeign": "10"},
		{"productId": "0195d3c4-0000-7000-8000-000000000000", "quantity": 1, "unitPriceForeign": "10"},
	}
	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.PurchaseResponse](t, w)

	w = api.do(t, http.MethodPost, "/api/v1/purchases/"+created.ID+"/complete", api.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decode[dto.ErrorResponse](t, w).Code)

	w = api.do(t, http.MethodGet, "/api/v1/purchases/"+created.ID, api.admin, nil)
	assert.Equal(t, "PENDING", decode[dto.PurchaseResponse](t, w).Status)
}

func TestRouter_IdempotentCreate(t *testing.T) {
	api := newTestAPI(t, true)
	prod := api.createProduct(t, "P-1", 0, "0")

	first := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, importRequest(prod.ID), "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, importRequest(prod.ID), "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	other := importRequest(prod.ID)
	other["comment"] = "different"
	w := api.do(t, http.MethodPost, "/api/v1/purchases", api.admin, other, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, w.Code)

	list, err := api.store.Purchases().List(context.Background(), purchase.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)

	created := decode[dto.PurchaseResponse](t, first)
	path := "/api/v1/purchases/" + created.ID + "/complete"

	done := api.do(t, http.MethodPost, path, api.admin, nil, "X-Idempotency-Key", "c-1")
	require.Equal(t, http.StatusOK, done.Code, done.Body.String())

	replayed := api.do(t, http.MethodPost, path, api.admin, nil, "X-Idempotency-Key", "c-1")
	assert.Equal(t, http.StatusOK, replayed.Code)
	assert.JSONEq(t, done.Body.String(), replayed.Body.String())

	// Without a key the second attempt reaches the state machine.
	again := api.do(t, http.MethodPost, path, api.admin, nil)
	assert.Equal(t, http.StatusConflict, again.Code)
}

func ptr[T any](v T) *T { return &v }
