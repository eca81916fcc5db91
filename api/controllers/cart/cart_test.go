package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/api/middleware"
	cartsvc "github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/stores"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
)

type stubCartService struct {
	view       *cartsvc.CartView
	result     *cartsvc.MutationResult
	err        error
	lastStore  uuid.UUID
	lastOwner  identity.Owner
	lastAdd    cartsvc.AddItemInput
	lastItemID uuid.UUID
	lastQty    int
	calls      []string
}

func (s *stubCartService) record(op string, storeID uuid.UUID, owner identity.Owner) {
	s.calls = append(s.calls, op)
	s.lastStore = storeID
	s.lastOwner = owner
}

func (s *stubCartService) GetCart(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*cartsvc.CartView, error) {
	s.record("get", storeID, owner)
	return s.view, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, input cartsvc.AddItemInput) (*cartsvc.MutationResult, error) {
	s.record("add", storeID, owner)
	s.lastAdd = input
	return s.result, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID, quantity int) (*cartsvc.MutationResult, error) {
	s.record("update", storeID, owner)
	s.lastItemID = itemID
	s.lastQty = quantity
	return s.result, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, storeID uuid.UUID, owner identity.Owner, itemID uuid.UUID) (*cartsvc.MutationResult, error) {
	s.record("remove", storeID, owner)
	s.lastItemID = itemID
	return s.result, s.err
}

func (s *stubCartService) Clear(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*cartsvc.MutationResult, error) {
	s.record("clear", storeID, owner)
	return s.result, s.err
}

func (s *stubCartService) MergeAnonymous(ctx context.Context, storeID uuid.UUID, from, to identity.Owner) (int, error) {
	return 0, nil
}

var testStore = &stores.StoreDTO{ID: uuid.MustParse("7f1c8a4e-52b1-4d0e-9d8a-3b0c5b7d2e11"), Domain: "shop.example.ir"}

func scopedRequest(method, target, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.WithStore(req.Context(), testStore)
	ctx = identity.WithOwner(ctx, identity.SessionOwner("session-token"))
	if len(params) > 0 {
		rc := chi.NewRouteContext()
		for k, v := range params {
			rc.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
	return req.WithContext(ctx)
}

func TestCartFetchSuccess(t *testing.T) {
	view := &cartsvc.CartView{CartID: uuid.New(), Items: []cartsvc.ItemView{}, TotalItems: 3, TotalPrice: decimal.NewFromInt(450000)}
	svc := &stubCartService{view: view}

	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodGet, "/cart", "", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			TotalItems int    `json:"total_items"`
			TotalPrice string `json:"total_price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalItems != 3 || envelope.Data.TotalPrice != "450000" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if svc.lastStore != testStore.ID || svc.lastOwner.SessionToken != "session-token" {
		t.Fatalf("store/owner not forwarded: %s %+v", svc.lastStore, svc.lastOwner)
	}
}

func TestCartFetchRequiresScope(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called without scope")
	}
}

func TestCartAddItemDefaultsQuantityToService(t *testing.T) {
	instanceID := uuid.New()
	svc := &stubCartService{result: &cartsvc.MutationResult{Success: true, Message: cartsvc.MsgItemAdded, CartTotalItems: 1}}

	resp := httptest.NewRecorder()
	body := `{"product_instance_id":"` + instanceID.String() + `"}`
	CartAddItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/cart/add", body, nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdd.ProductInstanceID != instanceID || svc.lastAdd.Quantity != nil {
		t.Fatalf("unexpected add input %+v", svc.lastAdd)
	}
	var envelope struct {
		Data cartsvc.MutationResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Success || envelope.Data.Message != cartsvc.MsgItemAdded {
		t.Fatalf("unexpected result %+v", envelope.Data)
	}
}

func TestCartAddItemValidation(t *testing.T) {
	svc := &stubCartService{}

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/cart/add", `{"quantity":2}`, nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called on invalid body")
	}
}

func TestCartAddItemMapsServiceErrors(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "موجودی کافی نیست").WithDetails(map[string]any{"available": 1})}

	resp := httptest.NewRecorder()
	body := `{"product_instance_id":"` + uuid.NewString() + `","quantity":5}`
	CartAddItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/cart/add", body, nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) || envelope.Error.Details["available"] != float64(1) {
		t.Fatalf("unexpected error payload %+v", envelope.Error)
	}
}

func TestCartUpdateItemForwardsPathAndQuantity(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{result: &cartsvc.MutationResult{Success: true, Message: cartsvc.MsgCartUpdated}}

	resp := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPut, "/cart/items/"+itemID.String(), `{"quantity":0}`, map[string]string{"itemId": itemID.String()}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastItemID != itemID || svc.lastQty != 0 {
		t.Fatalf("unexpected update args %s %d", svc.lastItemID, svc.lastQty)
	}
}

func TestCartUpdateItemRequiresQuantity(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{}

	resp := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPut, "/cart/items/"+itemID.String(), `{}`, map[string]string{"itemId": itemID.String()}))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveItemRejectsBadID(t *testing.T) {
	svc := &stubCartService{}

	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodDelete, "/cart/items/x/remove", "", map[string]string{"itemId": "x"}))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestCartRemoveItemNotFound(t *testing.T) {
	itemID := uuid.New()
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "آیتم یافت نشد")}

	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodDelete, "/cart/items/"+itemID.String()+"/remove", "", map[string]string{"itemId": itemID.String()}))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if svc.lastItemID != itemID {
		t.Fatalf("item id not forwarded")
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{result: &cartsvc.MutationResult{Success: true, Message: cartsvc.MsgCartCleared}}

	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, scopedRequest(http.MethodPost, "/cart/clear", "", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "clear" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}
