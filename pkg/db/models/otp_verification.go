package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/enums"
)

// OTPVerification stores the hashed one-time code issued to a phone.
type OTPVerification struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	StoreID     *uuid.UUID       `gorm:"column:store_id;type:uuid"`
	Phone       string           `gorm:"column:phone;type:text;not null;index:ix_otp_phone_purpose,priority:1"`
	Purpose     enums.OTPPurpose `gorm:"column:purpose;type:text;not null;index:ix_otp_phone_purpose,priority:2"`
	CodeHash    string           `gorm:"column:code_hash;type:text;not null"`
	Attempts    int              `gorm:"column:attempts;not null;default:0"`
	MaxAttempts int              `gorm:"column:max_attempts;not null;default:3"`
	ExpiresAt   time.Time        `gorm:"column:expires_at;not null"`
	VerifiedAt  *time.Time       `gorm:"column:verified_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// RemainingAttempts reports how many wrong guesses are still allowed.
func (o OTPVerification) RemainingAttempts() int {
	if left := o.MaxAttempts - o.Attempts; left > 0 {
		return left
	}
	return 0
}

func (o *OTPVerification) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

