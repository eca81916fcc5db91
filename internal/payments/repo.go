package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
)

// Repository persists gateway configs and payment records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ActiveGateways lists a store's active gateways, default first, then by
// ascending priority.
func (r *Repository) ActiveGateways(ctx context.Context, storeID uuid.UUID) ([]models.PaymentGateway, error) {
	var rows []models.PaymentGateway
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeID, true).
		Order("is_default DESC, priority ASC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindGateway(ctx context.Context, id uuid.UUID) (*models.PaymentGateway, error) {
	var gw models.PaymentGateway
	if err := r.db.WithContext(ctx).First(&gw, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gw, nil
}

func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// FindPayment loads a payment only when it belongs to storeID.
func (r *Repository) FindPayment(ctx context.Context, storeID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// LatestForOrder returns the newest payment attempt of an order.
func (r *Repository) LatestForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// TransitionFromPending applies updates only while the payment is still
// pending and reports whether this call won the transition.
func (r *Repository) TransitionFromPending(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// UpdatePending stores gateway details on a payment that is still pending.
func (r *Repository) UpdatePending(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	_, err := r.TransitionFromPending(ctx, id, updates)
	return err
}

// ExpiredPending lists pending payments whose expiry has passed, oldest first.
func (r *Repository) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
