package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/persiamall/storefront/pkg/errors"
)

type sampleBody struct {
	Phone    string `json:"phone" validate:"required"`
	Code     string `json:"code" validate:"required,numeric,min=4"`
	Email    string `json:"email" validate:"omitempty,email"`
	Quantity *int   `json:"quantity"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"12","email":"nope"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"phone", "code", "email"} {
		if details[field] == "" {
			t.Fatalf("expected message for %s, got %v", field, details)
		}
	}
	if details["phone"] != "این فیلد الزامی است" {
		t.Fatalf("unexpected required message %q", details["phone"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"0912","code":"1234","extra":true}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
}

func TestDecodeJSONBodySuccess(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"09121234567","code":"123456","quantity":2}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Quantity == nil || *body.Quantity != 2 {
		t.Fatalf("quantity not decoded: %+v", body)
	}
}

type mobileBody struct {
	Phone string `json:"phone" validate:"required,ir_mobile"`
}

func TestDecodeJSONBodyValidatesMobile(t *testing.T) {
	for _, raw := range []string{"09121234567", "+98 912 123 4567", "۰۹۱۲۱۲۳۴۵۶۷"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"`+raw+`"}`))
		var body mobileBody
		if err := DecodeJSONBody(req, &body); err != nil {
			t.Fatalf("%q should be accepted: %v", raw, err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"02188776655"}`))
	var body mobileBody
	typed := pkgerrors.As(DecodeJSONBody(req, &body))
	if typed == nil {
		t.Fatal("landline should be rejected")
	}
	details, _ := typed.Details().(map[string]string)
	if details["phone"] != "شماره موبایل معتبر نیست" {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestDecodeJSONBodyEmptyAndOversized(t *testing.T) {
	var body sampleBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != msgBodyEmpty {
		t.Fatalf("expected empty body error, got %v", err)
	}

	huge := `{"phone":"` + strings.Repeat("9", MaxBodyBytes) + `"}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &body)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != msgBodyTooLarge {
		t.Fatalf("expected body too large error, got %v", err)
	}
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestUUIDParam(t *testing.T) {
	id := uuid.New()
	got, err := UUIDParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", id.String()), "itemId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	if _, err := UUIDParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", "not-a-uuid"), "itemId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStringParam(t *testing.T) {
	if _, err := StringParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderNumber", "  "), "orderNumber"); err == nil {
		t.Fatalf("expected error for blank param")
	}
	got, err := StringParam(withParam(httptest.NewRequest(http.MethodGet, "/", nil), "orderNumber", "ORD-TST-1"), "orderNumber")
	if err != nil || got != "ORD-TST-1" {
		t.Fatalf("unexpected %q %v", got, err)
	}
}
