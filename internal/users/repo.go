package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/persiamall/storefront/pkg/db/models"
)

// Repository exposes customer persistence keyed by normalized phone.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByPhone retrieves the user with the normalized phone.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByPhone inserts a bare account for phone unless one exists and
// returns the stored row. Concurrent logins for one phone share one user.
func (r *Repository) GetOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error) {
	user := models.User{Phone: phone}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "phone"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &user, true, nil
	}
	existing, err := r.FindByPhone(ctx, phone)
	return existing, false, err
}

// MarkPhoneVerified stamps phone_verified_at (first time only) and last_login_at.
func (r *Repository) MarkPhoneVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"phone_verified_at": gorm.Expr("COALESCE(phone_verified_at, ?)", at),
			"last_login_at":     at,
		}).Error
}
