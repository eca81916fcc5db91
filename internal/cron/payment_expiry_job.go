package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/logger"
)

const defaultPaymentExpiryBatch = 100

// PaymentExpiryJobParams configure the job that expires abandoned payments.
type PaymentExpiryJobParams struct {
	Logger   *logger.Logger
	Payments expiredPaymentReader
	Orders   paymentExpirer
	Batch    int
}

type expiredPaymentReader interface {
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Payment, error)
}

type paymentExpirer interface {
	ExpirePayment(ctx context.Context, payment models.Payment) (bool, error)
}

// NewPaymentExpiryJob builds the job that expires pending payments past
// their deadline, cancelling the order and returning its stock.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultPaymentExpiryBatch
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		orders:   params.Orders,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments expiredPaymentReader
	orders   paymentExpirer
	batch    int
	now      func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

// Run handles one batch per cycle. A failing row does not stop the rest.
func (j *paymentExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.payments.ExpiredPending(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("query expired payments: %w", err)
	}

	var errs error
	expired := 0
	for _, payment := range due {
		ok, err := j.orders.ExpirePayment(ctx, payment)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":     len(due),
		"expired": expired,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "payment expiry complete")
	return errs
}
