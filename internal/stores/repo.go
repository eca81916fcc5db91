package stores

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
)

// Repository handles store persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveByDomain loads an active store by domain, ignoring case.
func (r *Repository) FindActiveByDomain(ctx context.Context, domain string) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).
		Where("LOWER(domain) = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(domain)), true).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}
