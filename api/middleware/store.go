package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/persiamall/storefront/api/responses"
	"github.com/persiamall/storefront/internal/stores"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
)

type storeResolver interface {
	ResolveByDomain(ctx context.Context, domain string) (*stores.StoreDTO, error)
}

// StoreFromDomain resolves the {domain} path segment to an active store.
// Unknown or inactive stores answer 404 before any handler runs.
func StoreFromDomain(resolver storeResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			domain := strings.TrimSpace(chi.URLParam(r, "domain"))
			if domain == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "فروشگاه یافت نشد"))
				return
			}

			store, err := resolver.ResolveByDomain(ctx, domain)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithStore(ctx, store)
			if logg != nil {
				ctx = logg.WithStore(ctx, store.ID.String(), store.Domain)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
