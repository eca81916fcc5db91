package stores

import (
	"github.com/google/uuid"

	"github.com/persiamall/storefront/pkg/db/models"
)

// StoreDTO is the tenant view handed to request handlers.
type StoreDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	OrderPrefix string    `json:"-"`
}

// FromModel converts a store row into its DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:          m.ID,
		Name:        m.Name,
		Domain:      m.Domain,
		Phone:       m.Phone,
		Email:       m.Email,
		OrderPrefix: m.OrderPrefix,
	}
}
