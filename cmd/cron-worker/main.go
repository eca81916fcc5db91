package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/cron"
	"github.com/persiamall/storefront/internal/notifications"
	"github.com/persiamall/storefront/internal/orders"
	"github.com/persiamall/storefront/internal/otp"
	"github.com/persiamall/storefront/internal/payments"
	"github.com/persiamall/storefront/internal/stores"
	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db"
	"github.com/persiamall/storefront/pkg/email"
	"github.com/persiamall/storefront/pkg/gateways"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
	"github.com/persiamall/storefront/pkg/migrate"
	"github.com/persiamall/storefront/pkg/redis"
	"github.com/persiamall/storefront/pkg/sms"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

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
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	conn := dbClient.DB()
	providerMetrics := metrics.NewProviderMetrics(prometheus.DefaultRegisterer)

	smsDispatcher, err := notifications.NewDispatcher(
		notifications.NewRepository(conn),
		sms.NewFactory(cfg.SMS.Timeout, logg),
		cfg.SMS,
		providerMetrics,
		logg,
	)
	exitOnError(logg, "failed to create sms dispatcher", err)

	paymentRecords := payments.NewRepository(conn)
	paymentDispatcher, err := payments.NewDispatcher(gateways.NewRegistry(cfg.Payments.Timeout), providerMetrics, logg)
	exitOnError(logg, "failed to create payment dispatcher", err)
	paymentService, err := payments.NewService(paymentRecords, paymentDispatcher, cfg.Payments.Expiry, logg)
	exitOnError(logg, "failed to create payment service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(conn),
		Carts:          cart.NewRepository(conn),
		Catalog:        catalog.NewRepository(conn),
		Stores:         stores.NewRepository(conn),
		Payments:       paymentService,
		PaymentRecords: paymentRecords,
		Tx:             dbClient,
		SMS:            smsDispatcher,
		Email:          email.NewSender(cfg.Sendgrid, logg),
		CallbackBase:   cfg.Payments.CallbackBase(cfg.App),
		Logger:         logg,
	})
	exitOnError(logg, "failed to create orders service", err)

	paymentExpiry, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:   logg,
		Payments: paymentRecords,
		Orders:   ordersService,
		Batch:    cfg.Cron.PaymentExpiryBatch,
	})
	exitOnError(logg, "failed to create payment expiry job", err)

	otpCleanup, err := cron.NewOTPCleanupJob(cron.OTPCleanupJobParams{
		Logger:     logg,
		Repository: otp.NewRepository(conn),
		Retention:  cfg.Cron.OTPRetention,
	})
	exitOnError(logg, "failed to create otp cleanup job", err)

	lock, err := cron.NewRedisLock(redisClient, cron.DefaultLockKey, 0)
	exitOnError(logg, "failed to create cron lock", err)

	registry, err := cron.NewRegistry(paymentExpiry, otpCleanup).Select(strings.Split(*only, ",")...)
	exitOnError(logg, "invalid -jobs filter", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	exitOnError(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	if addr := cfg.Cron.MetricsAddr; addr != "" {
		metricsServer := &http.Server{Addr: addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "cron metrics listener stopped", err)
			}
		}()
		defer metricsServer.Close()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnError(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
