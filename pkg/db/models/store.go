package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is a tenant shop addressed by its domain.
type Store struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Domain      string    `gorm:"column:domain;type:text;not null;uniqueIndex:ux_stores_domain"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	Phone       *string   `gorm:"column:phone;type:text"`
	Email       *string   `gorm:"column:email;type:text"`
	OrderPrefix string    `gorm:"column:order_prefix;type:text;not null;default:'SF'"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

