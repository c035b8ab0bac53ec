package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopchat-core/internal/cron"
	"github.com/angelmondragon/shopchat-core/internal/customers"
	"github.com/angelmondragon/shopchat-core/internal/ledger"
	"github.com/angelmondragon/shopchat-core/internal/notifications"
	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/internal/shops"
	"github.com/angelmondragon/shopchat-core/pkg/config"
	"github.com/angelmondragon/shopchat-core/pkg/db"
	"github.com/angelmondragon/shopchat-core/pkg/instance"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/messaging"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
	"github.com/angelmondragon/shopchat-core/pkg/migrate"
	"github.com/angelmondragon/shopchat-core/pkg/redis"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	commerceMetrics := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, dispatcher, err := newOrderExpiryJob(cfg, logg, dbClient, commerceMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}
	defer dispatcher.Wait()

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(expiryJob),
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newOrderExpiryJob wires the sweeper with the same order service the api
// uses, so expired orders notify customers exactly like any other transition.
func newOrderExpiryJob(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, m *metrics.CommerceMetrics) (*cron.OrderExpiryJob, *notifications.Dispatcher, error) {
	conn := dbClient.DB()

	messenger, err := messaging.NewClient(cfg.Messaging.AccessToken,
		messaging.WithBaseURL(cfg.Messaging.BaseURL),
		messaging.WithTimeout(cfg.Messaging.RequestTimeout),
	)
	if err != nil {
		return nil, nil, err
	}

	dispatcher, err := notifications.NewDispatcher(notifications.Params{
		Customers:   customers.NewRepository(conn),
		Shops:       shops.NewRepository(conn),
		Sender:      messenger,
		Pusher:      notifications.NewLogPusher(logg),
		Retry:       retry.FromConfig(cfg.Retry),
		SendTimeout: cfg.Messaging.RequestTimeout,
		Logger:      logg,
	})
	if err != nil {
		return nil, nil, err
	}

	ordersRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Ledger:   ledger.New(conn, m),
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logg,
	})
	if err != nil {
		return nil, nil, err
	}

	job, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    ordersRepo,
		Service:   orderService,
		Threshold: cfg.Cron.ExpiryThreshold,
		BatchSize: cfg.Cron.BatchSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return job, dispatcher, nil
}
