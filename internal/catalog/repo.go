// Package catalog reads product instances and moves their stock. The
// catalog itself is managed elsewhere; this package never creates products.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/persiamall/storefront/pkg/db/models"
)

// Snapshot is the shopper-facing view of one product instance.
type Snapshot struct {
	ID          uuid.UUID       `gorm:"column:id"`
	ProductID   uuid.UUID       `gorm:"column:product_id"`
	ProductName string          `gorm:"column:product_name"`
	SKU         string          `gorm:"column:sku"`
	Price       decimal.Decimal `gorm:"column:price"`
	Stock       int             `gorm:"column:stock_quantity"`
	ImageURL    *string         `gorm:"column:image_url"`
	Active      bool            `gorm:"column:active"`
}

const snapshotColumns = `pi.id, pi.product_id, p.name AS product_name, pi.sku, pi.price, pi.stock_quantity,
(SELECT img.url FROM product_images img WHERE img.product_id = p.id ORDER BY img.position, img.created_at LIMIT 1) AS image_url,
(pi.is_active AND p.is_active) AS active`

// StockRepository is the catalog surface used by the cart and checkout.
type StockRepository interface {
	WithTx(tx *gorm.DB) StockRepository
	FindForStore(ctx context.Context, storeID, instanceID uuid.UUID) (*Snapshot, error)
	SnapshotsByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error)
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.ProductInstance, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	RestoreStock(ctx context.Context, id uuid.UUID, qty int) error
}

// Repository reads instances and adjusts stock.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) StockRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) snapshots(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("product_instances AS pi").
		Select(snapshotColumns).
		Joins("JOIN products p ON p.id = pi.product_id")
}

// FindForStore returns an active instance whose product is active and
// belongs to the store. Anything else is gorm.ErrRecordNotFound.
func (r *Repository) FindForStore(ctx context.Context, storeID, instanceID uuid.UUID) (*Snapshot, error) {
	var snap Snapshot
	err := r.snapshots(ctx).
		Where("pi.id = ? AND p.store_id = ? AND pi.is_active = ? AND p.is_active = ?", instanceID, storeID, true, true).
		Take(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SnapshotsByIDs returns the instances of the store keyed by id, including
// deactivated ones so existing cart lines still render.
func (r *Repository) SnapshotsByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]Snapshot, error) {
	out := make(map[uuid.UUID]Snapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Snapshot
	if err := r.snapshots(ctx).
		Where("pi.id IN ? AND p.store_id = ?", ids, storeID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// LockForUpdate row-locks the instances in id order so concurrent
// checkouts acquire locks consistently. Must run inside a transaction.
func (r *Repository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.ProductInstance, error) {
	out := make(map[uuid.UUID]models.ProductInstance, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ProductInstance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// DecrementStock subtracts qty only when enough stock remains. It reports
// whether the row changed.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("decrement quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.ProductInstance{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreStock returns qty units to the instance.
func (r *Repository) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ProductInstance{}).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
}
