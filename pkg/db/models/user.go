package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a storefront customer identified by mobile number.
type User struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Phone           string     `gorm:"column:phone;type:text;not null;uniqueIndex:ux_users_phone"`
	FirstName       string     `gorm:"column:first_name;type:text;not null;default:''"`
	LastName        string     `gorm:"column:last_name;type:text;not null;default:''"`
	Email           *string    `gorm:"column:email;type:text"`
	PhoneVerifiedAt *time.Time `gorm:"column:phone_verified_at"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

