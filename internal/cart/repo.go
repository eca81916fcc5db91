package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/pkg/db/models"
)

// Repository persists carts and their items.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// GetOrCreate returns the single cart of owner in store. The insert is a
// no-op on conflict with ux_carts_store_owner, so concurrent first requests
// converge on one row.
func (r *Repository) GetOrCreate(ctx context.Context, storeID uuid.UUID, owner identity.Owner) (*models.Cart, error) {
	cart := models.Cart{StoreID: storeID, OwnerKey: owner.Key()}
	if owner.IsUser() {
		userID := owner.UserID
		cart.UserID = &userID
	} else {
		token := owner.SessionToken
		cart.SessionKey = &token
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "owner_key"}},
			DoNothing: true,
		}).
		Create(&cart)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 {
		return &cart, nil
	}
	return r.FindByOwner(ctx, storeID, cart.OwnerKey)
}

// FindByOwner loads an existing cart without creating one.
func (r *Repository) FindByOwner(ctx context.Context, storeID uuid.UUID, ownerKey string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND owner_key = ?", storeID, ownerKey).
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindItem loads an item only when it belongs to cartID.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByInstance returns the cart line for an instance, if any.
func (r *Repository) FindItemByInstance(ctx context.Context, cartID, instanceID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_instance_id = ?", cartID, instanceID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItem removes one line and reports how many rows went away.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ListItems returns the cart lines in the order they were added.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) SumQuantity(ctx context.Context, cartID uuid.UUID) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// Touch bumps updated_at so idle-cart reporting sees the activity.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", r.now().UTC()).Error
}
