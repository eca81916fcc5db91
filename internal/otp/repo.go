package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
)

// Repository persists one-time codes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, record *models.OTPVerification) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Latest returns the newest unverified code for phone and purpose.
func (r *Repository) Latest(ctx context.Context, phone string, purpose enums.OTPPurpose) (*models.OTPVerification, error) {
	var record models.OTPVerification
	if err := r.db.WithContext(ctx).
		Where("phone = ? AND purpose = ? AND verified_at IS NULL", phone, purpose).
		Order("created_at DESC").
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementAttempts counts a wrong guess and returns the stored total.
func (r *Repository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	if err := r.db.WithContext(ctx).
		Model(&models.OTPVerification{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error; err != nil {
		return 0, err
	}
	var attempts int
	err := r.db.WithContext(ctx).
		Model(&models.OTPVerification{}).
		Where("id = ?", id).
		Select("attempts").
		Scan(&attempts).Error
	return attempts, err
}

// MarkVerified consumes the code. It reports false when another request
// consumed it first.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OTPVerification{}).
		Where("id = ? AND verified_at IS NULL", id).
		UpdateColumn("verified_at", at)
	return res.RowsAffected == 1, res.Error
}

// DeleteCreatedBefore purges codes older than cutoff.
func (r *Repository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.OTPVerification{})
	return res.RowsAffected, res.Error
}
