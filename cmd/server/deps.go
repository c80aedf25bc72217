package main

import (
	"context"
	"fmt"

	"landedcost/internal/config"
	corenumerator "landedcost/internal/core/numerator"
	"landedcost/internal/core/security"
	"landedcost/internal/core/tx"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/events"
	"landedcost/internal/domain/fx"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/cache"
	"landedcost/internal/infrastructure/http/v1/handlers"
	"landedcost/internal/infrastructure/numerator"
	"landedcost/internal/infrastructure/storage/memory"
	"landedcost/internal/infrastructure/storage/postgres"
	"landedcost/internal/infrastructure/storage/postgres/catalog_repo"
	"landedcost/internal/infrastructure/storage/postgres/document_repo"
	"landedcost/internal/infrastructure/storage/postgres/register_repo"
	"landedcost/pkg/logger"
)

// deps is the wired application graph.
type deps struct {
	Authorizer   security.Authorizer
	Purchases    *purchase.Service
	Products     *product.Service
	Stock        *stock.Service
	History      audit.Reader
	Idempotency  *cache.IdempotencyStore
	HealthChecks map[string]handlers.Pinger

	closers []func()
}

// Close releases connections in reverse order of creation.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// storage is the set of ports a storage backend provides.
type storage struct {
	txManager tx.Manager
	purchases purchase.Repository
	products  product.Repository
	stock     stock.Repository
	audit     interface {
		audit.Recorder
		audit.Reader
	}
	events    events.Publisher
	numerator corenumerator.Generator
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{HealthChecks: make(map[string]handlers.Pinger)}

	codec, err := audit.NewCodec(cfg.AuditCompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("create audit codec: %w", err)
	}

	var st storage
	switch cfg.Storage {
	case "memory":
		store := memory.NewStore(codec)
		st = storage{
			txManager: store,
			purchases: store.Purchases(),
			products:  store.Products(),
			stock:     store.Stock(),
			audit:     store.Audit(),
			events:    store.Outbox(),
			numerator: corenumerator.NewMemoryGenerator(),
		}
		logger.Warn(ctx, "using in-memory storage; data is lost on restart")

	default:
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = cfg.DBMaxConns
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.HealthChecks["database"] = pool

		if cfg.AutoMigrate {
			if err := migrateUp(ctx, cfg.DatabaseURL); err != nil {
				d.Close()
				return nil, err
			}
		}

		txm := postgres.NewTxManager(pool)
		st = storage{
			txManager: txm,
			purchases: document_repo.NewPurchaseRepo(txm),
			products:  catalog_repo.NewProductRepo(txm),
			stock:     register_repo.NewStockRepo(txm),
			audit:     postgres.NewAuditLog(txm, codec),
			events:    postgres.NewOutboxPublisher(txm),
			numerator: numerator.New(pool),
		}
	}

	var locker purchase.Locker = purchase.NoopLocker{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		d.HealthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})

		locker = cache.NewRedisLocker(rdb, cfg.CompletionLockTTL)
		d.Idempotency = cache.NewIdempotencyStore(rdb, cfg.IdempotencyKeysTTL)
	}

	authorizer, err := security.NewPolicyAuthorizer(cfg.Policy())
	if err != nil {
		d.Close()
		return nil, err
	}

	engine := costing.NewEngine(fx.NewPolicy(cfg.LocalCurrency), cfg.Rounding())
	stockService := stock.NewService(st.stock)

	completer := purchase.NewCompleter(purchase.CompleterConfig{
		Purchases:  st.purchases,
		Products:   st.products,
		Stock:      stockService,
		TxManager:  st.txManager,
		Engine:     engine,
		CostPolicy: cfg.ProductCost(),
		Locker:     locker,
		Audit:      st.audit,
		Events:     st.events,
	})

	d.Authorizer = authorizer
	d.Stock = stockService
	d.History = st.audit
	d.Products = product.NewService(st.products, authorizer)
	d.Purchases = purchase.NewService(purchase.ServiceConfig{
		Repo:       st.purchases,
		Completer:  completer,
		Engine:     engine,
		Numerator:  st.numerator,
		TxManager:  st.txManager,
		Authorizer: authorizer,
		Audit:      st.audit,
		Events:     st.events,
	})

	logger.Info(ctx, "dependencies ready",
		"local_currency", cfg.LocalCurrency,
		"rounding", cfg.Rounding(),
		"product_cost", cfg.ProductCost(),
		"redis", cfg.RedisAddr != "",
	)
	return d, nil
}

func migrateUp(ctx context.Context, databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up(ctx)
}
