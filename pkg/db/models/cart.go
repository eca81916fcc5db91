package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart is the single open cart of one owner in one store.
type Cart struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	StoreID    uuid.UUID  `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_carts_store_owner,priority:1"`
	OwnerKey   string     `gorm:"column:owner_key;type:text;not null;uniqueIndex:ux_carts_store_owner,priority:2"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid"`
	SessionKey *string    `gorm:"column:session_key;type:text"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem ties a product instance and a positive quantity to a cart.
type CartItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID            uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_instance,priority:1"`
	ProductInstanceID uuid.UUID `gorm:"column:product_instance_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_instance,priority:2"`
	Quantity          int       `gorm:"column:quantity;not null;check:chk_cart_items_quantity,quantity > 0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

