package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shopchat-core/api/routes"
	"github.com/angelmondragon/shopchat-core/internal/assistant"
	"github.com/angelmondragon/shopchat-core/internal/cart"
	"github.com/angelmondragon/shopchat-core/internal/chats"
	"github.com/angelmondragon/shopchat-core/internal/cron"
	"github.com/angelmondragon/shopchat-core/internal/customers"
	"github.com/angelmondragon/shopchat-core/internal/ledger"
	"github.com/angelmondragon/shopchat-core/internal/notifications"
	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/internal/payments"
	"github.com/angelmondragon/shopchat-core/internal/products"
	"github.com/angelmondragon/shopchat-core/internal/shops"
	"github.com/angelmondragon/shopchat-core/internal/tools"
	"github.com/angelmondragon/shopchat-core/pkg/config"
	"github.com/angelmondragon/shopchat-core/pkg/db"
	"github.com/angelmondragon/shopchat-core/pkg/gateway"
	"github.com/angelmondragon/shopchat-core/pkg/instance"
	"github.com/angelmondragon/shopchat-core/pkg/llm"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/messaging"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
	"github.com/angelmondragon/shopchat-core/pkg/migrate"
	"github.com/angelmondragon/shopchat-core/pkg/redis"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	webhookGuardScope = "payment-webhook"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	commerceMetrics := metrics.NewCommerceMetrics(registry)
	assistantMetrics := metrics.NewAssistantMetrics(registry)

	app, err := wire(cfg, logg, dbClient, redisClient, commerceMetrics, assistantMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	defer app.dispatcher.Wait()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:       cfg,
			Logger:       logg,
			Gatherer:     registry,
			DB:           dbClient,
			Redis:        redisClient,
			Limiter:      redisClient,
			Inbound:      app.inbound,
			Orders:       app.orders,
			Reconciler:   app.payments,
			WebhookGuard: app.guard,
			Sweeper:      app.sweeper,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

type application struct {
	inbound    *assistant.InboundService
	orders     orders.Service
	payments   *payments.Service
	guard      *payments.InFlightGuard
	sweeper    *cron.OrderExpiryJob
	dispatcher *notifications.Dispatcher
}

func wire(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	commerceMetrics *metrics.CommerceMetrics,
	assistantMetrics *metrics.AssistantMetrics,
) (*application, error) {
	conn := dbClient.DB()
	policy := retry.FromConfig(cfg.Retry)

	shopsRepo := shops.NewRepository(conn)
	customersRepo := customers.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	messenger, err := messaging.NewClient(cfg.Messaging.AccessToken,
		messaging.WithBaseURL(cfg.Messaging.BaseURL),
		messaging.WithTimeout(cfg.Messaging.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notifications.NewDispatcher(notifications.Params{
		Customers:   customersRepo,
		Shops:       shopsRepo,
		Sender:      messenger,
		Pusher:      notifications.NewLogPusher(logg),
		Retry:       policy,
		SendTimeout: cfg.Messaging.RequestTimeout,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Ledger:   ledger.New(conn, commerceMetrics),
		Notifier: dispatcher,
		Metrics:  commerceMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	gatewayClient, err := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token,
		gateway.WithTimeout(cfg.Gateway.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:        payments.NewRepository(conn),
		OrdersRepo:  ordersRepo,
		Orders:      orderService,
		Tx:          dbClient,
		Gateway:     gatewayClient,
		Notifier:    dispatcher,
		Retry:       policy,
		InvoiceTTL:  cfg.Gateway.InvoiceTTL,
		CallbackURL: cfg.Gateway.CallbackURL,
		Metrics:     commerceMetrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	guard, err := payments.NewInFlightGuard(redisClient, cfg.Gateway.GuardTTL, webhookGuardScope)
	if err != nil {
		return nil, err
	}

	cartService, err := cart.NewService(cart.NewRepository(conn), dbClient)
	if err != nil {
		return nil, err
	}

	catalog := tools.NewCatalog()
	executor, err := tools.NewExecutor(tools.ExecutorParams{
		Catalog:        catalog,
		Products:       products.NewRepository(conn),
		Customers:      customersRepo,
		Cart:           cartService,
		Orders:         orderService,
		Payments:       paymentService,
		Handoff:        dispatcher,
		PauseDuration:  cfg.Assistant.PauseDuration,
		PlaceholderURL: cfg.Assistant.PlaceholderURL,
		Metrics:        assistantMetrics,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	model, err := llm.NewOpenAIClient(cfg.Assistant.APIKey, cfg.Assistant.Model,
		llm.WithBaseURL(cfg.Assistant.BaseURL),
		llm.WithTimeout(cfg.Assistant.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	orchestrator, err := assistant.NewOrchestrator(assistant.OrchestratorParams{
		Model:       model,
		Tools:       executor,
		Definitions: catalog.Definitions(),
		MaxRounds:   cfg.Assistant.MaxRounds,
		Timeout:     cfg.Assistant.MessageTimeout,
		Parallelism: cfg.Assistant.ToolParallelism,
		Retry:       policy,
		Metrics:     assistantMetrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	inbound, err := assistant.NewInboundService(assistant.InboundParams{
		Shops:         shopsRepo,
		Customers:     customersRepo,
		Carts:         cartService,
		Chats:         chats.NewRepository(conn),
		Orchestrator:  orchestrator,
		Sender:        messenger,
		Limiter:       redisClient,
		RateLimit:     cfg.Assistant.RateLimit,
		RateWindow:    cfg.Assistant.RateWindow,
		HistorySize:   cfg.Assistant.HistorySize,
		PauseDuration: cfg.Assistant.PauseDuration,
		Retry:         policy,
		Logger:        logg,
	})
	if err != nil {
		return nil, err
	}

	sweeper, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    ordersRepo,
		Service:   orderService,
		Threshold: cfg.Cron.ExpiryThreshold,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		inbound:    inbound,
		orders:     orderService,
		payments:   paymentService,
		guard:      guard,
		sweeper:    sweeper,
		dispatcher: dispatcher,
	}, nil
}
