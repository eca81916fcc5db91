package orders

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/payments"
	"github.com/persiamall/storefront/internal/stores"
	"github.com/persiamall/storefront/pkg/db"
	"github.com/persiamall/storefront/pkg/db/dbtest"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/email"
	"github.com/persiamall/storefront/pkg/enums"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/gateways"
	"github.com/persiamall/storefront/pkg/sms"
)

type fakeGateway struct {
	request gateways.Result
	verify  gateways.Result
	verifys int
}

func (g *fakeGateway) Kind() enums.GatewayKind { return enums.GatewayKindZarinpal }

func (g *fakeGateway) Request(context.Context, gateways.PaymentRequest) gateways.Result {
	return g.request
}

func (g *fakeGateway) Verify(context.Context, gateways.VerifyRequest) gateways.Result {
	g.verifys++
	return g.verify
}

type sentSMS struct {
	to       string
	template sms.Template
	vars     map[string]string
}

type recordingSMS struct{ sent []sentSMS }

func (r *recordingSMS) Send(_ context.Context, _ uuid.UUID, to string, template sms.Template, vars map[string]string) bool {
	r.sent = append(r.sent, sentSMS{to: to, template: template, vars: vars})
	return true
}

type recordingMail struct{ receipts []email.Receipt }

func (r *recordingMail) SendReceipt(_ context.Context, receipt email.Receipt) bool {
	r.receipts = append(r.receipts, receipt)
	return true
}

type fixture struct {
	conn    *gorm.DB
	cat     dbtest.Catalog
	owner   identity.Owner
	carts   *cart.Repository
	gateway *fakeGateway
	sms     *recordingSMS
	mail    *recordingMail
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	cat := dbtest.SeedCatalog(t, conn, "shop.example.ir", 25000, 5)
	require.NoError(t, conn.Create(&models.PaymentGateway{
		StoreID:    cat.Store.ID,
		Kind:       enums.GatewayKindZarinpal,
		MerchantID: "merchant",
		IsActive:   true,
		IsDefault:  true,
		MinAmount:  decimal.NewFromInt(1000),
	}).Error)

	gw := &fakeGateway{
		request: gateways.Result{OK: true, Authority: "A-100", RedirectURL: "https://pay.test/StartPay/A-100"},
		verify:  gateways.Result{OK: true, ReferenceID: "REF-100"},
	}
	registry := gateways.NewRegistry(time.Second)
	registry.Register(enums.GatewayKindZarinpal, func(gateways.Credentials, *http.Client) (gateways.Gateway, error) {
		return gw, nil
	})
	dispatcher, err := payments.NewDispatcher(registry, nil, nil)
	require.NoError(t, err)
	records := payments.NewRepository(conn)
	paymentSvc, err := payments.NewService(records, dispatcher, 15*time.Minute, nil)
	require.NoError(t, err)

	f := &fixture{
		conn:    conn,
		cat:     cat,
		owner:   identity.SessionOwner("session-token-1"),
		carts:   cart.NewRepository(conn),
		gateway: gw,
		sms:     &recordingSMS{},
		mail:    &recordingMail{},
	}
	f.svc, err = NewService(ServiceParams{
		Repo:           NewRepository(conn),
		Carts:          f.carts,
		Catalog:        catalog.NewRepository(conn),
		Stores:         stores.NewRepository(conn),
		Payments:       paymentSvc,
		PaymentRecords: records,
		Tx:             db.NewFromGorm(conn),
		SMS:            f.sms,
		Email:          f.mail,
		CallbackBase:   "https://api.example.ir/",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) addToCart(t *testing.T, instanceID uuid.UUID, qty int) *models.Cart {
	t.Helper()
	c, err := f.carts.GetOrCreate(context.Background(), f.cat.Store.ID, f.owner)
	require.NoError(t, err)
	require.NoError(t, f.carts.CreateItem(context.Background(), &models.CartItem{CartID: c.ID, ProductInstanceID: instanceID, Quantity: qty}))
	return c
}

func (f *fixture) stockOf(t *testing.T, instanceID uuid.UUID) int {
	t.Helper()
	var inst models.ProductInstance
	require.NoError(t, f.conn.First(&inst, "id = ?", instanceID).Error)
	return inst.StockQuantity
}

func validInput() CheckoutInput {
	return CheckoutInput{
		Name:    "مریم احمدی",
		Phone:   "۰۹۱۲۱۲۳۴۵۶۷",
		Email:   "maryam@example.ir",
		Address: "تهران، خیابان ولیعصر، پلاک ۱۲",
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCheckoutPlacesOrderAndStartsPayment(t *testing.T) {
	f := newFixture(t)
	second := dbtest.SeedInstance(t, f.conn, f.cat.Product.ID, "SKU-SECOND", 10000, 4)
	c := f.addToCart(t, f.cat.Instance.ID, 2)
	f.addToCart(t, second.ID, 1)

	res, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-TST-[0-9A-F]{8}$`), res.Order.OrderNumber)
	assert.Equal(t, "https://pay.test/StartPay/A-100", res.RedirectURL)
	assert.Equal(t, enums.OrderStatusPending, res.Order.Status)
	assert.Equal(t, enums.OrderPaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, "60000", res.Order.Total.String())
	assert.Equal(t, "989121234567", res.Order.CustomerPhone)
	require.Len(t, res.Order.Items, 2)

	assert.Equal(t, 3, f.stockOf(t, f.cat.Instance.ID))
	assert.Equal(t, 3, f.stockOf(t, second.ID))

	items, err := f.carts.ListItems(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", res.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, res.Order.ID, payment.OrderID)
	require.NotNil(t, payment.Authority)
	assert.Equal(t, "A-100", *payment.Authority)
}

func TestCheckoutInsufficientStockMutatesNothing(t *testing.T) {
	f := newFixture(t)
	second := dbtest.SeedInstance(t, f.conn, f.cat.Product.ID, "SKU-SHORT", 10000, 4)
	c := f.addToCart(t, f.cat.Instance.ID, 2)
	f.addToCart(t, second.ID, 3)
	require.NoError(t, f.conn.Model(&models.ProductInstance{}).Where("id = ?", second.ID).Update("stock_quantity", 2).Error)

	_, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "SKU-SHORT", details["sku"])
	assert.Equal(t, 2, details["available"])

	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))
	assert.Equal(t, 2, f.stockOf(t, second.ID))
	items, err := f.carts.ListItems(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	var orders int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, msgCartEmpty, pkgerrors.As(err).Message())

	_, err = f.carts.GetOrCreate(context.Background(), f.cat.Store.ID, f.owner)
	require.NoError(t, err)
	_, err = f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	assert.Equal(t, msgCartEmpty, pkgerrors.As(err).Message())
}

func TestCheckoutValidatesCustomer(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.cat.Instance.ID, 1)

	cases := map[string]func(*CheckoutInput){
		"customer_name":    func(in *CheckoutInput) { in.Name = "  " },
		"shipping_address": func(in *CheckoutInput) { in.Address = "" },
		"customer_phone":   func(in *CheckoutInput) { in.Phone = "02188776655" },
	}
	for field, mutate := range cases {
		input := validInput()
		mutate(&input)
		_, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), field)
		assert.Equal(t, field, pkgerrors.As(err).Details().(map[string]any)["field"])
	}
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))
}

func TestCheckoutCompensatesWhenNoGatewayAccepts(t *testing.T) {
	f := newFixture(t)
	f.gateway.request = gateways.Result{Reason: "zarinpal: مرچنت نامعتبر"}
	f.addToCart(t, f.cat.Instance.ID, 2)

	_, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))

	var order models.Order
	require.NoError(t, f.conn.First(&order, "store_id = ?", f.cat.Store.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.OrderPaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))

	var items []models.CartItem
	require.NoError(t, f.conn.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.store_id = ? AND carts.owner_key = ?", f.cat.Store.ID, f.owner.Key()).
		Find(&items).Error)
	require.Len(t, items, 1, "abandoned checkout must give the cart back")
	assert.Equal(t, f.cat.Instance.ID, items[0].ProductInstanceID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestCallbackSuccessConfirmsOrderOnce(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.cat.Instance.ID, 2)
	placed, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)

	params := url.Values{"Authority": {"A-100"}, "Status": {"OK"}}
	res, err := f.svc.HandlePaymentCallback(context.Background(), f.cat.Store.ID, placed.PaymentID, params)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "REF-100", res.ReferenceID)
	assert.Equal(t, enums.OrderStatusConfirmed, res.Order.Status)
	assert.Equal(t, enums.OrderPaymentStatusPaid, res.Order.PaymentStatus)

	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "09121234567", f.sms.sent[0].to)
	assert.Equal(t, sms.TemplateOrderConfirmation, f.sms.sent[0].template)
	assert.Equal(t, placed.Order.OrderNumber, f.sms.sent[0].vars["order_number"])
	require.Len(t, f.mail.receipts, 1)
	assert.Equal(t, "maryam@example.ir", f.mail.receipts[0].To)
	assert.Equal(t, "REF-100", f.mail.receipts[0].ReferenceID)

	replay, err := f.svc.HandlePaymentCallback(context.Background(), f.cat.Store.ID, placed.PaymentID, params)
	require.NoError(t, err)
	assert.True(t, replay.Success)
	assert.Len(t, f.sms.sent, 1)
	assert.Len(t, f.mail.receipts, 1)
	assert.Equal(t, 1, f.gateway.verifys)
	assert.Equal(t, 3, f.stockOf(t, f.cat.Instance.ID))
}

func TestCallbackFailureCancelsAndRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	f.gateway.verify = gateways.Result{Reason: "zarinpal: پرداخت لغو شد"}
	f.addToCart(t, f.cat.Instance.ID, 2)
	placed, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)
	assert.Equal(t, 3, f.stockOf(t, f.cat.Instance.ID))

	res, err := f.svc.HandlePaymentCallback(context.Background(), f.cat.Store.ID, placed.PaymentID, url.Values{"Status": {"NOK"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, MsgPaymentFailed)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))

	replay, err := f.svc.HandlePaymentCallback(context.Background(), f.cat.Store.ID, placed.PaymentID, nil)
	require.NoError(t, err)
	assert.False(t, replay.Success)
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))
	assert.Empty(t, f.sms.sent)
}

func TestGetOrderIncludesLatestPayment(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.cat.Instance.ID, 1)
	placed, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), f.cat.Store.ID, placed.Order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, got.Payment)
	assert.Equal(t, placed.PaymentID, got.Payment.ID)
	assert.Equal(t, "zarinpal", got.Payment.Gateway)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "25000", got.Items[0].UnitPrice.String())

	_, err = f.svc.GetOrder(context.Background(), uuid.New(), placed.Order.OrderNumber)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestExpirePaymentCancelsOrder(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.cat.Instance.ID, 2)
	placed, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", placed.PaymentID).Error)

	expired, err := f.svc.ExpirePayment(context.Background(), payment)
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))

	require.NoError(t, f.conn.First(&payment, "id = ?", placed.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusExpired, payment.Status)

	again, err := f.svc.ExpirePayment(context.Background(), payment)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 5, f.stockOf(t, f.cat.Instance.ID))
}

func TestCheckoutRecordsUserOwner(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.owner = identity.UserOwner(userID)
	f.addToCart(t, f.cat.Instance.ID, 1)

	res, err := f.svc.Checkout(context.Background(), f.cat.Store.ID, f.owner, validInput())
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", res.Order.ID).Error)
	require.NotNil(t, order.UserID)
	assert.Equal(t, userID, *order.UserID)
}
