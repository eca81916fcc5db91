package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/persiamall/storefront/api/responses"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/pkg/auth"
	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/logger"
)

type ownerResolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (identity.Resolution, error)
}

// Identity attaches the cart owner to the request. A new anonymous session
// token is returned in both the session header and cookie.
func Identity(resolver ownerResolver, cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			creds := identity.Credentials{
				BearerToken:  auth.BearerToken(r.Header.Get("Authorization")),
				SessionToken: sessionToken(r, cfg),
			}

			res, err := resolver.Resolve(ctx, creds)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if !res.Owner.IsUser() {
				w.Header().Set(cfg.HeaderName, res.Owner.SessionToken)
				if res.Issued {
					http.SetCookie(w, &http.Cookie{
						Name:     cfg.CookieName,
						Value:    res.Owner.SessionToken,
						Path:     "/",
						MaxAge:   int(cfg.TTL.Seconds()),
						HttpOnly: true,
						Secure:   cfg.Secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}

			ctx = identity.WithOwner(ctx, res.Owner)
			if logg != nil {
				ctx = logg.WithOwner(ctx, string(res.Owner.Kind), res.Owner.LogRef())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cfg config.SessionConfig) string {
	if cfg.HeaderName != "" {
		if token := strings.TrimSpace(r.Header.Get(cfg.HeaderName)); token != "" {
			return token
		}
	}
	if cfg.CookieName != "" {
		if cookie, err := r.Cookie(cfg.CookieName); err == nil {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}
