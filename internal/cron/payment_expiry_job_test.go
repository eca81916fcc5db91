package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/logger"
)

type fakeExpiredReader struct {
	rows      []models.Payment
	err       error
	lastNow   time.Time
	lastLimit int
}

func (f *fakeExpiredReader) ExpiredPending(_ context.Context, now time.Time, limit int) ([]models.Payment, error) {
	f.lastNow = now
	f.lastLimit = limit
	return f.rows, f.err
}

type fakeExpirer struct {
	failures map[uuid.UUID]error
	settled  map[uuid.UUID]bool
	seen     []uuid.UUID
}

func (f *fakeExpirer) ExpirePayment(_ context.Context, payment models.Payment) (bool, error) {
	f.seen = append(f.seen, payment.ID)
	if err := f.failures[payment.ID]; err != nil {
		return false, err
	}
	return !f.settled[payment.ID], nil
}

func newPaymentExpiryJob(t *testing.T, reader *fakeExpiredReader, expirer *fakeExpirer, batch int) *paymentExpiryJob {
	t.Helper()
	jobIface, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:   logger.Nop(),
		Payments: reader,
		Orders:   expirer,
		Batch:    batch,
	})
	if err != nil {
		t.Fatalf("NewPaymentExpiryJob: %v", err)
	}
	return jobIface.(*paymentExpiryJob)
}

func TestPaymentExpiryJobContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	reader := &fakeExpiredReader{rows: []models.Payment{{ID: a}, {ID: b}, {ID: c}}}
	expirer := &fakeExpirer{
		failures: map[uuid.UUID]error{b: errors.New("db down")},
		settled:  map[uuid.UUID]bool{c: true},
	}
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	job := newPaymentExpiryJob(t, reader, expirer, 0)
	job.now = func() time.Time { return now }

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if got := len(multierr.Errors(err)); got != 1 {
		t.Fatalf("expected 1 aggregated error, got %d", got)
	}
	if len(expirer.seen) != 3 {
		t.Fatalf("expected every payment attempted, got %d", len(expirer.seen))
	}
	if !reader.lastNow.Equal(now) || reader.lastLimit != defaultPaymentExpiryBatch {
		t.Fatalf("unexpected query now=%s limit=%d", reader.lastNow, reader.lastLimit)
	}
}

func TestPaymentExpiryJobQueryError(t *testing.T) {
	reader := &fakeExpiredReader{err: errors.New("boom")}
	job := newPaymentExpiryJob(t, reader, &fakeExpirer{}, 10)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPaymentExpiryJobNoRows(t *testing.T) {
	reader := &fakeExpiredReader{}
	job := newPaymentExpiryJob(t, reader, &fakeExpirer{}, 10)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reader.lastLimit != 10 {
		t.Fatalf("expected batch 10, got %d", reader.lastLimit)
	}
}
