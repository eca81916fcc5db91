package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	GetOrCreate(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*models.Cart, error)
	FindByOwner(ctx context.Context, storeID uuid.UUID, ownerKey string) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByInstance(ctx context.Context, cartID, instanceID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	SumQuantity(ctx context.Context, cartID uuid.UUID) (int, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
}
