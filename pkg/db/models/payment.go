package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/enums"
)

// PaymentGateway holds one store's credentials for a gateway.
type PaymentGateway struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	StoreID       uuid.UUID         `gorm:"column:store_id;type:uuid;not null;index"`
	Kind          enums.GatewayKind `gorm:"column:kind;type:text;not null"`
	MerchantID    string            `gorm:"column:merchant_id;type:text;not null;default:''"`
	TerminalID    string            `gorm:"column:terminal_id;type:text;not null;default:''"`
	Username      string            `gorm:"column:username;type:text;not null;default:''"`
	Password      string            `gorm:"column:password;type:text;not null;default:''"`
	IsSandbox     bool              `gorm:"column:is_sandbox;not null;default:false"`
	IsActive      bool              `gorm:"column:is_active;not null;default:true"`
	IsDefault     bool              `gorm:"column:is_default;not null;default:false"`
	Priority      int               `gorm:"column:priority;not null;default:0"`
	FixedFee      decimal.Decimal   `gorm:"column:fixed_fee;type:numeric(12,0);not null;default:0"`
	PercentageFee decimal.Decimal   `gorm:"column:percentage_fee;type:numeric(5,2);not null;default:0"`
	MinAmount     decimal.Decimal   `gorm:"column:min_amount;type:numeric(12,0);not null;default:1000"`
	MaxAmount     *decimal.Decimal  `gorm:"column:max_amount;type:numeric(12,0)"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *PaymentGateway) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Payment is one gateway transaction for an order.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StoreID       uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayID     *uuid.UUID          `gorm:"column:gateway_id;type:uuid"`
	GatewayKind   *enums.GatewayKind  `gorm:"column:gateway_kind;type:text"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,0);not null"`
	Fee           decimal.Decimal     `gorm:"column:fee;type:numeric(12,0);not null;default:0"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	Authority     *string             `gorm:"column:authority;type:text"`
	ReferenceID   *string             `gorm:"column:reference_id;type:text"`
	FailureReason *string             `gorm:"column:failure_reason;type:text"`
	ExpiresAt     time.Time           `gorm:"column:expires_at;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

