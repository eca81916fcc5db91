package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/persiamall/storefront/pkg/errors"
)

// UUIDParam parses a chi path parameter as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "شناسه معتبر نیست").WithDetails(map[string]string{name: raw})
	}
	return id, nil
}

// StringParam returns a trimmed, non-empty chi path parameter.
func StringParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "پارامتر مسیر الزامی است").WithDetails(map[string]string{name: "این فیلد الزامی است"})
	}
	return value, nil
}
