package middleware

import (
	"context"

	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/stores"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
)

type contextKey string

const ctxStore contextKey = "store"

// StoreFromContext returns the tenant resolved from the request path.
func StoreFromContext(ctx context.Context) *stores.StoreDTO {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxStore).(*stores.StoreDTO); ok {
		return v
	}
	return nil
}

// WithStore injects the resolved store into the context for downstream handlers.
func WithStore(ctx context.Context, store *stores.StoreDTO) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxStore, store)
}

// RequestScope returns the store and cart owner placed by StoreFromDomain and
// Identity. A missing value means the route was mounted without them.
func RequestScope(ctx context.Context) (*stores.StoreDTO, identity.Owner, error) {
	store := StoreFromContext(ctx)
	if store == nil {
		return nil, identity.Owner{}, pkgerrors.New(pkgerrors.CodeInternal, "store context missing")
	}
	owner, ok := identity.FromContext(ctx)
	if !ok {
		return nil, identity.Owner{}, pkgerrors.New(pkgerrors.CodeInternal, "owner context missing")
	}
	return store, owner, nil
}
