package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/enums"
)

// SMSProviderConfig is a configured SMS backend; a nil StoreID makes it platform-wide.
type SMSProviderConfig struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	StoreID      *uuid.UUID        `gorm:"column:store_id;type:uuid;index"`
	Provider     enums.SMSProvider `gorm:"column:provider;type:text;not null"`
	APIKey       string            `gorm:"column:api_key;type:text;not null;default:''"`
	SenderNumber string            `gorm:"column:sender_number;type:text;not null;default:''"`
	BaseURL      *string           `gorm:"column:base_url;type:text"`
	Priority     int               `gorm:"column:priority;not null;default:0"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	IsDefault    bool              `gorm:"column:is_default;not null;default:false"`
	TotalSent    int64             `gorm:"column:total_sent;not null;default:0"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (SMSProviderConfig) TableName() string { return "sms_providers" }

func (p *SMSProviderConfig) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SMSMessage logs one delivery attempt.
type SMSMessage struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           *uuid.UUID             `gorm:"column:store_id;type:uuid;index"`
	Provider          enums.SMSProvider      `gorm:"column:provider;type:text;not null"`
	Recipient         string                 `gorm:"column:recipient;type:text;not null"`
	Template          string                 `gorm:"column:template;type:text;not null"`
	Body              string                 `gorm:"column:body;type:text;not null"`
	Status            enums.SMSMessageStatus `gorm:"column:status;type:text;not null"`
	ProviderMessageID *string                `gorm:"column:provider_message_id;type:text"`
	Error             *string                `gorm:"column:error;type:text"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (m *SMSMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

