package orders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/internal/cart"
	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/payments"
	"github.com/persiamall/storefront/pkg/db"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/email"
	"github.com/persiamall/storefront/pkg/enums"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/phone"
	"github.com/persiamall/storefront/pkg/sms"
)

const (
	msgCartEmpty        = "سبد خرید خالی است"
	msgNameRequired     = "نام و نام خانوادگی الزامی است"
	msgAddressRequired  = "آدرس ارسال الزامی است"
	msgPhoneInvalid     = "شماره موبایل معتبر نیست"
	msgOrderAbsent      = "سفارش یافت نشد"
	msgStockShort       = "موجودی %s کافی نیست"
	msgItemUnavailable  = "محصول %s دیگر موجود نیست"
	MsgPaymentSucceeded = "پرداخت با موفقیت انجام شد"
	MsgPaymentFailed    = "پرداخت ناموفق بود"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type storeReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

type smsSender interface {
	Send(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) bool
}

type receiptSender interface {
	SendReceipt(ctx context.Context, receipt email.Receipt) bool
}

// Service turns carts into orders and settles them from payment callbacks.
type Service interface {
	Checkout(ctx context.Context, storeID uuid.UUID, owner identity.Owner, input CheckoutInput) (*CheckoutResult, error)
	HandlePaymentCallback(ctx context.Context, storeID, paymentID uuid.UUID, params url.Values) (*CallbackResult, error)
	GetOrder(ctx context.Context, storeID uuid.UUID, orderNumber string) (*OrderDTO, error)
	ExpirePayment(ctx context.Context, payment models.Payment) (bool, error)
}

// ServiceParams bundles the dependencies of the orders service.
// CallbackBase is the public API origin gateways return to.
type ServiceParams struct {
	Repo           Repository
	Carts          cart.CartRepository
	Catalog        catalog.StockRepository
	Stores         storeReader
	Payments       payments.Service
	PaymentRecords *payments.Repository
	Tx             txRunner
	SMS            smsSender
	Email          receiptSender
	CallbackBase   string
	Logger         *logger.Logger
}

type service struct {
	repo         Repository
	carts        cart.CartRepository
	catalog      catalog.StockRepository
	stores       storeReader
	payments     payments.Service
	records      *payments.Repository
	tx           txRunner
	sms          smsSender
	email        receiptSender
	callbackBase string
	logg         *logger.Logger
	newNumber    func(prefix string) string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.Stores == nil:
		return nil, fmt.Errorf("store reader required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	case params.PaymentRecords == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:         params.Repo,
		carts:        params.Carts,
		catalog:      params.Catalog,
		stores:       params.Stores,
		payments:     params.Payments,
		records:      params.PaymentRecords,
		tx:           params.Tx,
		sms:          params.SMS,
		email:        params.Email,
		callbackBase: strings.TrimRight(params.CallbackBase, "/"),
		logg:         logg,
		newNumber:    newOrderNumber,
	}, nil
}

// newOrderNumber renders ORD-<prefix>-<8 hex>.
func newOrderNumber(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", prefix, strings.ToUpper(hex[:8]))
}

type checkoutCustomer struct {
	name    string
	phone   string
	email   *string
	address string
	notes   *string
}

func validateCheckout(input CheckoutInput) (checkoutCustomer, error) {
	out := checkoutCustomer{
		name:    strings.TrimSpace(input.Name),
		address: strings.TrimSpace(input.Address),
		email:   optional(input.Email),
		notes:   optional(input.Notes),
	}
	if out.name == "" {
		return out, pkgerrors.New(pkgerrors.CodeValidation, msgNameRequired).WithDetails(map[string]any{"field": "customer_name"})
	}
	if out.address == "" {
		return out, pkgerrors.New(pkgerrors.CodeValidation, msgAddressRequired).WithDetails(map[string]any{"field": "shipping_address"})
	}
	normalized, err := phone.NormalizeMobile(input.Phone)
	if err != nil {
		return out, pkgerrors.New(pkgerrors.CodeValidation, msgPhoneInvalid).WithDetails(map[string]any{"field": "customer_phone"})
	}
	out.phone = normalized
	return out, nil
}

func (s *service) Checkout(ctx context.Context, storeID uuid.UUID, owner identity.Owner, input CheckoutInput) (*CheckoutResult, error) {
	if storeID == uuid.Nil || !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "هویت خریدار مشخص نیست")
	}
	customer, err := validateCheckout(input)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOwner(ctx, string(owner.Kind), owner.LogRef())

	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "فروشگاه یافت نشد")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	userCart, err := s.carts.FindByOwner(ctx, storeID, owner.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, msgCartEmpty)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		placed, err := s.placeOrder(ctx, tx, store, userCart, owner, customer)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber})
	s.logg.Info(ctx, "order.placed")

	started, err := s.payments.Start(ctx, payments.StartInput{
		StoreID:      storeID,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Amount:       order.Total,
		Mobile:       phone.Local(order.CustomerPhone),
		Email:        input.Email,
		Description:  fmt.Sprintf("پرداخت سفارش %s - %s", order.OrderNumber, store.Name),
		CallbackBase: fmt.Sprintf("%s/api/public/stores/%s", s.callbackBase, store.Domain),
	})
	if err != nil {
		if cerr := s.abandonCheckout(ctx, order, userCart.ID); cerr != nil {
			s.logg.Error(ctx, "order.compensation_failed", cerr)
		}
		return nil, err
	}

	return &CheckoutResult{
		Order:       orderFromModel(order),
		PaymentID:   started.Payment.ID,
		RedirectURL: started.RedirectURL,
	}, nil
}

// placeOrder runs inside the checkout transaction: lock, verify stock,
// decrement, persist, clear the cart. Nothing is written until every line
// has passed the stock check.
func (s *service) placeOrder(ctx context.Context, tx *gorm.DB, store *models.Store, userCart *models.Cart, owner identity.Owner, customer checkoutCustomer) (*models.Order, error) {
	carts := s.carts.WithTx(tx)
	stock := s.catalog.WithTx(tx)

	items, err := carts.ListItems(ctx, userCart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgCartEmpty)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductInstanceID)
	}
	locked, err := stock.LockForUpdate(ctx, ids...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock instances")
	}
	snapshots, err := stock.SnapshotsByIDs(ctx, store.ID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instances")
	}

	order := &models.Order{
		ID:              uuid.New(),
		StoreID:         store.ID,
		OrderNumber:     s.newNumber(store.OrderPrefix),
		CustomerName:    customer.name,
		CustomerPhone:   customer.phone,
		CustomerEmail:   customer.email,
		ShippingAddress: customer.address,
		Notes:           customer.notes,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.OrderPaymentStatusPending,
	}
	if owner.IsUser() {
		userID := owner.UserID
		order.UserID = &userID
	}

	subtotal := decimal.Zero
	for _, item := range items {
		snap, ok := snapshots[item.ProductInstanceID]
		instance, isLocked := locked[item.ProductInstanceID]
		if !ok || !isLocked || !snap.Active {
			name := item.ProductInstanceID.String()
			if ok {
				name = snap.SKU
			}
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf(msgItemUnavailable, name)).
				WithDetails(map[string]any{"sku": name, "requested": item.Quantity, "available": 0})
		}
		if instance.StockQuantity < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf(msgStockShort, snap.SKU)).
				WithDetails(map[string]any{"sku": snap.SKU, "requested": item.Quantity, "available": instance.StockQuantity})
		}
		lineTotal := instance.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		order.Items = append(order.Items, models.OrderItem{
			ProductInstanceID: item.ProductInstanceID,
			SKU:               snap.SKU,
			Name:              snap.ProductName,
			UnitPrice:         instance.Price,
			Quantity:          item.Quantity,
			LineTotal:         lineTotal,
		})
	}
	order.Subtotal = subtotal
	order.Total = subtotal

	for _, line := range order.Items {
		ok, err := stock.DecrementStock(ctx, line.ProductInstanceID, line.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf(msgStockShort, line.SKU)).
				WithDetails(map[string]any{"sku": line.SKU, "requested": line.Quantity})
		}
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "ux_orders_number") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "شماره سفارش تکراری است، دوباره تلاش کنید")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if _, err := carts.ClearItems(ctx, userCart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if err := carts.Touch(ctx, userCart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	return order, nil
}

// cancelOrder marks a pending order cancelled and returns its stock. When
// paymentID is set, the payment is expired in the same transaction.
func (s *service) cancelOrder(ctx context.Context, orderID uuid.UUID, paymentID *uuid.UUID) (bool, error) {
	var cancelled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if paymentID != nil {
			won, err := s.records.WithTx(tx).TransitionFromPending(ctx, *paymentID, map[string]any{"status": enums.PaymentStatusExpired})
			if err != nil {
				return err
			}
			if !won {
				return nil
			}
		}
		won, err := s.settle(ctx, tx, orderID, false)
		cancelled = won
		return err
	})
	return cancelled, err
}

// abandonCheckout undoes a checkout whose payment never started: the order is
// cancelled, stock restored and the order lines put back into the cart.
func (s *service) abandonCheckout(ctx context.Context, order *models.Order, cartID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.settle(ctx, tx, order.ID, false)
		if err != nil || !won {
			return err
		}
		carts := s.carts.WithTx(tx)
		for _, line := range order.Items {
			existing, err := carts.FindItemByInstance(ctx, cartID, line.ProductInstanceID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				item := models.CartItem{CartID: cartID, ProductInstanceID: line.ProductInstanceID, Quantity: line.Quantity}
				if err := carts.CreateItem(ctx, &item); err != nil {
					return fmt.Errorf("restore cart line: %w", err)
				}
			case err != nil:
				return fmt.Errorf("load cart line: %w", err)
			default:
				if err := carts.UpdateItemQuantity(ctx, cartID, existing.ID, existing.Quantity+line.Quantity); err != nil {
					return fmt.Errorf("restore cart line: %w", err)
				}
			}
		}
		return carts.Touch(ctx, cartID)
	})
}

// settle moves a payment-pending order to paid or cancelled. A cancelled
// order returns its items to stock.
func (s *service) settle(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paid bool) (bool, error) {
	repo := s.repo.WithTx(tx)
	if paid {
		return repo.SettlePayment(ctx, orderID, enums.OrderStatusConfirmed, enums.OrderPaymentStatusPaid)
	}
	won, err := repo.SettlePayment(ctx, orderID, enums.OrderStatusCancelled, enums.OrderPaymentStatusFailed)
	if err != nil || !won {
		return won, err
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	stock := s.catalog.WithTx(tx)
	for _, item := range order.Items {
		if err := stock.RestoreStock(ctx, item.ProductInstanceID, item.Quantity); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *service) HandlePaymentCallback(ctx context.Context, storeID, paymentID uuid.UUID, params url.Values) (*CallbackResult, error) {
	ctx = s.logg.WithField(ctx, "payment_id", paymentID.String())
	completed, err := s.payments.Complete(ctx, storeID, paymentID, params)
	var payment *models.Payment
	switch {
	case err == nil:
		payment = completed.Payment
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		// Replayed callback for a payment that already failed or expired.
		conflict := err
		payment, err = s.payments.Get(ctx, storeID, paymentID)
		if err != nil {
			return nil, err
		}
		if payment.Status == enums.PaymentStatusPending {
			return nil, conflict
		}
	default:
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "order_id", payment.OrderID.String())

	paid := payment.Status == enums.PaymentStatusCompleted
	var won bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var serr error
		won, serr = s.settle(ctx, tx, payment.OrderID, paid)
		return serr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
	}

	order, err := s.repo.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := orderFromModel(order)
	dto.Payment = paymentFromModel(payment)

	result := &CallbackResult{Success: paid, Order: dto, Message: MsgPaymentFailed}
	if paid {
		result.Message = MsgPaymentSucceeded
		result.ReferenceID = dto.Payment.ReferenceID
	} else if payment.FailureReason != nil {
		result.Message = fmt.Sprintf("%s: %s", MsgPaymentFailed, *payment.FailureReason)
	}

	if !won {
		s.logg.Info(ctx, "order.callback_replayed")
		return result, nil
	}
	if paid {
		s.logg.Info(ctx, "order.paid")
		s.notifyPaid(ctx, order, dto.Payment.ReferenceID)
	} else {
		s.logg.Warn(ctx, "order.payment_failed")
	}
	return result, nil
}

// notifyPaid is best effort; delivery failures never fail the callback.
func (s *service) notifyPaid(ctx context.Context, order *models.Order, referenceID string) {
	if s.sms != nil {
		s.sms.Send(ctx, order.StoreID, phone.Local(order.CustomerPhone), sms.TemplateOrderConfirmation, map[string]string{
			"order_number": order.OrderNumber,
			"amount":       order.Total.StringFixed(0),
		})
	}
	if s.email == nil || order.CustomerEmail == nil {
		return
	}
	receipt := email.Receipt{
		To:           *order.CustomerEmail,
		CustomerName: order.CustomerName,
		OrderNumber:  order.OrderNumber,
		ReferenceID:  referenceID,
		Total:        order.Total,
	}
	if store, err := s.stores.FindByID(ctx, order.StoreID); err == nil {
		receipt.StoreName = store.Name
	}
	for _, item := range order.Items {
		receipt.Lines = append(receipt.Lines, email.ReceiptLine{Name: item.Name, SKU: item.SKU, Quantity: item.Quantity, LineTotal: item.LineTotal})
	}
	s.email.SendReceipt(ctx, receipt)
}

func (s *service) GetOrder(ctx context.Context, storeID uuid.UUID, orderNumber string) (*OrderDTO, error) {
	order, err := s.repo.FindByNumber(ctx, storeID, strings.TrimSpace(orderNumber))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgOrderAbsent)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := orderFromModel(order)
	payment, err := s.records.LatestForOrder(ctx, order.ID)
	switch {
	case err == nil:
		dto.Payment = paymentFromModel(payment)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return dto, nil
}

// ExpirePayment expires an overdue pending payment, cancels its order and
// restores stock. It reports false when the payment was settled first.
func (s *service) ExpirePayment(ctx context.Context, payment models.Payment) (bool, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"payment_id": payment.ID.String(), "order_id": payment.OrderID.String()})
	expired, err := s.cancelOrder(ctx, payment.OrderID, &payment.ID)
	if err != nil {
		return false, fmt.Errorf("expire payment %s: %w", payment.ID, err)
	}
	if expired {
		s.logg.Info(ctx, "order.payment_expired")
	}
	return expired, nil
}
