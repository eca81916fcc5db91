package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/db/models"
)

// Repository exposes SMS provider configs and the delivery log.
type Repository interface {
	StoreProviders(ctx context.Context, storeID uuid.UUID) ([]models.SMSProviderConfig, error)
	PlatformProviders(ctx context.Context) ([]models.SMSProviderConfig, error)
	LogMessage(ctx context.Context, msg *models.SMSMessage) error
	IncrementSent(ctx context.Context, providerID uuid.UUID) error
	StoreName(ctx context.Context, storeID uuid.UUID) (string, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// StoreProviders lists a store's active providers, default first, then by
// ascending priority.
func (r *repositoryImpl) StoreProviders(ctx context.Context, storeID uuid.UUID) ([]models.SMSProviderConfig, error) {
	var rows []models.SMSProviderConfig
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeID, true).
		Order("is_default DESC, priority ASC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

// PlatformProviders lists active providers shared by every store.
func (r *repositoryImpl) PlatformProviders(ctx context.Context) ([]models.SMSProviderConfig, error) {
	var rows []models.SMSProviderConfig
	err := r.db.WithContext(ctx).
		Where("store_id IS NULL AND is_active = ?", true).
		Order("is_default DESC, priority ASC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) LogMessage(ctx context.Context, msg *models.SMSMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *repositoryImpl) IncrementSent(ctx context.Context, providerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SMSProviderConfig{}).
		Where("id = ?", providerID).
		UpdateColumn("total_sent", gorm.Expr("total_sent + ?", 1)).Error
}

func (r *repositoryImpl) StoreName(ctx context.Context, storeID uuid.UUID) (string, error) {
	var name string
	err := r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", storeID).
		Select("name").
		Scan(&name).Error
	return name, err
}
