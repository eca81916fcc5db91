package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, storeID uuid.UUID, number string) (*models.Order, error)
	// SettlePayment applies updates only while the order's payment status is
	// pending and reports whether this call changed the row.
	SettlePayment(ctx context.Context, id uuid.UUID, status enums.OrderStatus, paymentStatus enums.OrderPaymentStatus) (bool, error)
}
