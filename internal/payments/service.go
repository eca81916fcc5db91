package payments

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/gateways"
	"github.com/persiamall/storefront/pkg/logger"
)

const (
	msgPaymentAbsent     = "پرداخت یافت نشد"
	msgPaymentFailed     = "ایجاد پرداخت ناموفق بود"
	msgPaymentNotOpen    = "این پرداخت قابل تأیید نیست"
	msgGatewayAbsent     = "درگاه پرداخت این تراکنش یافت نشد"
	msgAmountNotPositive = "مبلغ پرداخت باید بیشتر از صفر باشد"
)

type repository interface {
	ActiveGateways(ctx context.Context, storeID uuid.UUID) ([]models.PaymentGateway, error)
	FindGateway(ctx context.Context, id uuid.UUID) (*models.PaymentGateway, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, storeID, id uuid.UUID) (*models.Payment, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error)
	UpdatePending(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// StartInput describes the payment for a freshly placed order.
// CallbackBase is the store-scoped API prefix the gateway returns to.
type StartInput struct {
	StoreID      uuid.UUID
	OrderID      uuid.UUID
	OrderNumber  string
	Amount       decimal.Decimal
	Mobile       string
	Email        string
	Description  string
	CallbackBase string
}

type StartResult struct {
	Payment     *models.Payment
	RedirectURL string
}

// CompleteResult reports the settled payment. Transitioned is true only for
// the call that moved the payment out of pending.
type CompleteResult struct {
	Payment      *models.Payment
	Transitioned bool
}

type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
	Complete(ctx context.Context, storeID, paymentID uuid.UUID, params url.Values) (*CompleteResult, error)
	Get(ctx context.Context, storeID, paymentID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo       repository
	dispatcher *Dispatcher
	expiry     time.Duration
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(repo repository, dispatcher *Dispatcher, expiry time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("payment dispatcher required")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, dispatcher: dispatcher, expiry: expiry, logg: logg, now: time.Now}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgAmountNotPositive)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": input.OrderID.String(), "order_number": input.OrderNumber})

	configs, err := s.repo.ActiveGateways(ctx, input.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment gateways")
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		StoreID:   input.StoreID,
		OrderID:   input.OrderID,
		Amount:    input.Amount,
		Status:    enums.PaymentStatusPending,
		ExpiresAt: s.now().UTC().Add(s.expiry),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	ctx = s.logg.WithField(ctx, "payment_id", payment.ID.String())

	attempt := s.dispatcher.RequestPayment(ctx, configs, gateways.PaymentRequest{
		OrderNumber: input.OrderNumber,
		OrderRef:    orderRef(payment.ID),
		Amount:      input.Amount,
		Description: input.Description,
		CallbackURL: callbackURL(input.CallbackBase, payment.ID),
		Mobile:      input.Mobile,
		Email:       input.Email,
	})

	if attempt.Gateway == nil {
		reason := attempt.Result.Reason
		if _, err := s.repo.TransitionFromPending(ctx, payment.ID, map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		}); err != nil {
			s.logg.Error(ctx, "payment.mark_failed", err)
		}
		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = &reason
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, msgPaymentFailed).
			WithDetails(map[string]any{"reason": reason, "payment_id": payment.ID.String()})
	}

	kind := attempt.Gateway.Kind
	authority := attempt.Result.Authority
	if err := s.repo.UpdatePending(ctx, payment.ID, map[string]any{
		"gateway_id":   attempt.Gateway.ID,
		"gateway_kind": kind,
		"authority":    authority,
		"fee":          attempt.Fee,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment authority")
	}
	payment.GatewayID = &attempt.Gateway.ID
	payment.GatewayKind = &kind
	payment.Authority = &authority
	payment.Fee = attempt.Fee

	s.logg.Info(s.logg.WithField(ctx, "gateway", string(kind)), "payment.started")
	return &StartResult{Payment: payment, RedirectURL: attempt.Result.RedirectURL}, nil
}

func (s *service) Complete(ctx context.Context, storeID, paymentID uuid.UUID, params url.Values) (*CompleteResult, error) {
	payment, err := s.Get(ctx, storeID, paymentID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"payment_id": payment.ID.String(), "order_id": payment.OrderID.String()})

	switch payment.Status {
	case enums.PaymentStatusCompleted:
		return &CompleteResult{Payment: payment}, nil
	case enums.PaymentStatusPending:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msgPaymentNotOpen).
			WithDetails(map[string]any{"status": string(payment.Status)})
	}
	if payment.GatewayID == nil || payment.Authority == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msgPaymentNotOpen).
			WithDetails(map[string]any{"status": string(payment.Status)})
	}

	gw, err := s.repo.FindGateway(ctx, *payment.GatewayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msgGatewayAbsent)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment gateway")
	}

	res := s.dispatcher.VerifyPayment(ctx, *gw, gateways.VerifyRequest{
		Authority: *payment.Authority,
		Amount:    payment.Amount,
		Params:    params,
	})

	now := s.now().UTC()
	updates := map[string]any{}
	if res.OK {
		updates["status"] = enums.PaymentStatusCompleted
		updates["reference_id"] = res.ReferenceID
		updates["paid_at"] = now
	} else {
		updates["status"] = enums.PaymentStatusFailed
		updates["failure_reason"] = res.Reason
	}
	won, err := s.repo.TransitionFromPending(ctx, payment.ID, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
	}

	current, err := s.Get(ctx, storeID, paymentID)
	if err != nil {
		return nil, err
	}
	if !won {
		if current.Status == enums.PaymentStatusCompleted {
			return &CompleteResult{Payment: current}, nil
		}
		if res.OK {
			// The gateway captured money for a payment that closed meanwhile.
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"reference_id": res.ReferenceID,
				"status":       string(current.Status),
				"amount":       payment.Amount.String(),
			}), "payment.captured_after_expiry", nil)
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msgPaymentNotOpen).
			WithDetails(map[string]any{"status": string(current.Status)})
	}

	if res.OK {
		s.logg.Info(ctx, "payment.completed")
	} else {
		s.logg.Warn(s.logg.WithField(ctx, "reason", res.Reason), "payment.failed")
	}
	return &CompleteResult{Payment: current, Transitioned: true}, nil
}

func (s *service) Get(ctx context.Context, storeID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindPayment(ctx, storeID, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgPaymentAbsent)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// orderRef derives the positive numeric order id Mellat requires.
func orderRef(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) & 0x7fffffffffffffff)
}

func callbackURL(base string, paymentID uuid.UUID) string {
	return fmt.Sprintf("%s/payments/%s/callback/", strings.TrimRight(base, "/"), paymentID)
}
