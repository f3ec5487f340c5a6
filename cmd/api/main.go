package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasfarre/ordercore-backend/api"
	"github.com/lucasfarre/ordercore-backend/api/controllers"
	"github.com/lucasfarre/ordercore-backend/api/routes"
	"github.com/lucasfarre/ordercore-backend/internal/address"
	"github.com/lucasfarre/ordercore-backend/internal/carts"
	"github.com/lucasfarre/ordercore-backend/internal/checkout"
	"github.com/lucasfarre/ordercore-backend/internal/erpsync"
	"github.com/lucasfarre/ordercore-backend/internal/inventory"
	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/internal/payments"
	"github.com/lucasfarre/ordercore-backend/internal/planner"
	"github.com/lucasfarre/ordercore-backend/internal/pricing"
	"github.com/lucasfarre/ordercore-backend/internal/products"
	"github.com/lucasfarre/ordercore-backend/internal/stores"
	"github.com/lucasfarre/ordercore-backend/internal/users"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/metrics"
	"github.com/lucasfarre/ordercore-backend/pkg/migrate"
	"github.com/lucasfarre/ordercore-backend/pkg/odoo"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/redis"
	"github.com/lucasfarre/ordercore-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	odooClient, err := odoo.NewClient(cfg.Odoo)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap odoo client", err)
		os.Exit(1)
	}

	conn := dbClient.DB()

	ledger, err := inventory.NewService(inventory.NewRepository(conn))
	requireService(logg, "inventory ledger", err)

	directory, err := stores.NewService(stores.NewRepository(conn), cfg.Checkout)
	requireService(logg, "store directory", err)

	plannerSvc, err := planner.NewService(directory, ledger, cfg.Checkout)
	requireService(logg, "store planner", err)

	cartSvc, err := carts.NewService(carts.NewRepository(conn))
	requireService(logg, "cart service", err)

	book, err := address.NewService(address.NewRepository(conn))
	requireService(logg, "address book", err)

	catalog, err := products.NewCatalog(conn)
	requireService(logg, "product catalog", err)

	emitter, err := outbox.NewService(outbox.NewRepository(conn))
	requireService(logg, "outbox emitter", err)

	userRepo := users.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	orderSvc, err := orders.NewService(dbClient, orderRepo, ledger, emitter, cfg.Checkout, logg)
	requireService(logg, "order service", err)

	checkoutSvc, err := checkout.NewService(
		dbClient,
		cartSvc,
		book,
		plannerSvc,
		pricing.NewEngine(),
		catalog,
		userRepo,
		ledger,
		orderRepo,
		emitter,
		cfg.Checkout,
		logg,
	)
	requireService(logg, "checkout service", err)

	jobs := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	erpSvc, err := erpsync.NewService(orderRepo, userRepo, catalog, odooClient, redisClient, jobs, cfg.ErpSync, cfg.Checkout, logg)
	requireService(logg, "erp sync service", err)

	paymentSvc, err := payments.NewService(
		dbClient,
		payments.NewRepository(conn),
		orderSvc,
		orderRepo,
		checkoutSvc,
		squareClient,
		redisClient,
		erpSvc,
		emitter,
		cfg.Eventing,
		logg,
	)
	requireService(logg, "payment service", err)

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		ErpSync:  erpSvc,
		ReadyChecks: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Settlement hands confirmed orders to the in-process sync queue, so
	// the drain loop runs alongside the HTTP server.
	go erpSvc.Run(ctx)

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	if err := api.NewServer(addr, handler, logg).Run(ctx); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
