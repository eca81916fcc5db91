package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/enums"
)

// Order freezes a checked-out cart.
type Order struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	StoreID         uuid.UUID                `gorm:"column:store_id;type:uuid;not null;index"`
	UserID          *uuid.UUID               `gorm:"column:user_id;type:uuid"`
	OrderNumber     string                   `gorm:"column:order_number;type:text;not null;uniqueIndex:ux_orders_number"`
	CustomerName    string                   `gorm:"column:customer_name;type:text;not null"`
	CustomerPhone   string                   `gorm:"column:customer_phone;type:text;not null"`
	CustomerEmail   *string                  `gorm:"column:customer_email;type:text"`
	ShippingAddress string                   `gorm:"column:shipping_address;type:text;not null"`
	Notes           *string                  `gorm:"column:notes;type:text"`
	Status          enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	Subtotal        decimal.Decimal          `gorm:"column:subtotal;type:numeric(12,0);not null"`
	Total           decimal.Decimal          `gorm:"column:total;type:numeric(12,0);not null"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is a line with the price frozen at order time.
type OrderItem struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductInstanceID uuid.UUID       `gorm:"column:product_instance_id;type:uuid;not null"`
	SKU               string          `gorm:"column:sku;type:text;not null"`
	Name              string          `gorm:"column:name;type:text;not null"`
	UnitPrice         decimal.Decimal `gorm:"column:unit_price;type:numeric(12,0);not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	LineTotal         decimal.Decimal `gorm:"column:line_total;type:numeric(12,0);not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

