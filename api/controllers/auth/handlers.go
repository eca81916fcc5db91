package auth

import (
	"net/http"

	"github.com/persiamall/storefront/api/middleware"
	"github.com/persiamall/storefront/api/responses"
	"github.com/persiamall/storefront/api/validators"
	authsvc "github.com/persiamall/storefront/internal/auth"
	"github.com/persiamall/storefront/internal/identity"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
)

// RequestOTP sends a one-time code to the submitted phone number.
func RequestOTP(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		store := middleware.StoreFromContext(r.Context())
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store context missing"))
			return
		}

		var body authsvc.CodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestCode(r.Context(), store.ID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// VerifyOTP checks the code, signs the customer in and merges the guest cart.
func VerifyOTP(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		store, owner, err := middleware.RequestScope(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body authsvc.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		anonymous := owner
		if owner.IsUser() {
			anonymous = identity.Owner{}
		}

		result, err := svc.Login(r.Context(), store.ID, anonymous, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Authorization", result.TokenType+" "+result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}
