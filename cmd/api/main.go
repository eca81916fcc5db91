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

	"github.com/persiamall/storefront/api/routes"
	"github.com/persiamall/storefront/internal/auth"
	"github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/notifications"
	"github.com/persiamall/storefront/internal/orders"
	"github.com/persiamall/storefront/internal/otp"
	"github.com/persiamall/storefront/internal/payments"
	"github.com/persiamall/storefront/internal/stores"
	"github.com/persiamall/storefront/internal/users"
	"github.com/persiamall/storefront/pkg/auth/session"
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

const shutdownTimeout = 15 * time.Second

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	providerMetrics := metrics.NewProviderMetrics(registry)
	cartMetrics := metrics.NewCartMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	exitOnError(logg, "failed to create session manager", err)

	resolver, err := identity.NewResolver(cfg.JWT, sessionManager, logg)
	exitOnError(logg, "failed to create identity resolver", err)

	storeRepo := stores.NewRepository(conn)
	storeService, err := stores.NewService(storeRepo)
	exitOnError(logg, "failed to create store service", err)

	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, catalogRepo, dbClient, cartMetrics, logg)
	exitOnError(logg, "failed to create cart service", err)

	smsDispatcher, err := notifications.NewDispatcher(
		notifications.NewRepository(conn),
		sms.NewFactory(cfg.SMS.Timeout, logg),
		cfg.SMS,
		providerMetrics,
		logg,
	)
	exitOnError(logg, "failed to create sms dispatcher", err)

	otpService, err := otp.NewService(otp.ServiceParams{
		Repo:      otp.NewRepository(conn),
		Limiter:   redisClient,
		SMS:       smsDispatcher,
		OTP:       cfg.OTP,
		Passwords: cfg.Password,
		Logger:    logg,
	})
	exitOnError(logg, "failed to create otp service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		OTP:       otpService,
		UserRepo:  users.NewRepository(conn),
		Carts:     cartService,
		SMS:       smsDispatcher,
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	exitOnError(logg, "failed to create auth service", err)

	paymentRecords := payments.NewRepository(conn)
	paymentDispatcher, err := payments.NewDispatcher(gateways.NewRegistry(cfg.Payments.Timeout), providerMetrics, logg)
	exitOnError(logg, "failed to create payment dispatcher", err)
	paymentService, err := payments.NewService(paymentRecords, paymentDispatcher, cfg.Payments.Expiry, logg)
	exitOnError(logg, "failed to create payment service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(conn),
		Carts:          cartRepo,
		Catalog:        catalogRepo,
		Stores:         storeRepo,
		Payments:       paymentService,
		PaymentRecords: paymentRecords,
		Tx:             dbClient,
		SMS:            smsDispatcher,
		Email:          email.NewSender(cfg.Sendgrid, logg),
		CallbackBase:   cfg.Payments.CallbackBase(cfg.App),
		Logger:         logg,
	})
	exitOnError(logg, "failed to create orders service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Metrics:     registry,
			HTTPMetrics: httpMetrics,
			Stores:      storeService,
			Identity:    resolver,
			Auth:        authService,
			Cart:        cartService,
			Orders:      ordersService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func exitOnError(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
