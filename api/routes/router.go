package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/persiamall/storefront/api/controllers"
	authcontrollers "github.com/persiamall/storefront/api/controllers/auth"
	cartcontrollers "github.com/persiamall/storefront/api/controllers/cart"
	checkoutcontrollers "github.com/persiamall/storefront/api/controllers/checkout"
	"github.com/persiamall/storefront/api/middleware"
	"github.com/persiamall/storefront/internal/auth"
	"github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/orders"
	"github.com/persiamall/storefront/internal/stores"
	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
	pkgredis "github.com/persiamall/storefront/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

type ownerResolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (identity.Resolution, error)
}

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       redisStore
	Metrics     prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Stores      stores.Service
	Identity    ownerResolver
	Auth        auth.Service
	Cart        cart.Service
	Orders      orders.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
		chimiddleware.StripSlashes,
	)

	otpPolicy := middleware.NewRateLimitPolicy(
		"otp",
		cfg.OTP.RateLimitWindow,
		cfg.OTP.IPLimit,
		cfg.OTP.RateLimit,
	)
	idempotent := middleware.Idempotency(deps.Redis, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/public/stores/{domain}", func(r chi.Router) {
		r.Use(middleware.StoreFromDomain(deps.Stores, logg))

		// Gateways redirect the browser here; no cart identity is needed.
		r.Get("/payments/{paymentId}/callback", checkoutcontrollers.PaymentCallback(deps.Orders, logg))
		r.Post("/payments/{paymentId}/callback", checkoutcontrollers.PaymentCallback(deps.Orders, logg))

		r.Route("/auth/otp", func(r chi.Router) {
			r.Use(middleware.RateLimit(otpPolicy, deps.Redis, logg))
			r.With(idempotent).Post("/request", authcontrollers.RequestOTP(deps.Auth, logg))
			r.With(middleware.Identity(deps.Identity, cfg.Session, logg)).Post("/verify", authcontrollers.VerifyOTP(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(deps.Identity, cfg.Session, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
				r.With(idempotent).Post("/add", cartcontrollers.CartAddItem(deps.Cart, logg))
				r.Put("/items/{itemId}", cartcontrollers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{itemId}/remove", cartcontrollers.CartRemoveItem(deps.Cart, logg))
				r.Post("/clear", cartcontrollers.CartClear(deps.Cart, logg))
			})

			r.With(idempotent).Post("/checkout", checkoutcontrollers.Checkout(deps.Orders, logg))
			r.Get("/orders/{orderNumber}", checkoutcontrollers.OrderFetch(deps.Orders, logg))
		})
	})

	return r
}
