package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/persiamall/storefront/internal/cart"
)

type addItemRequest struct {
	ProductInstanceID uuid.UUID `json:"product_instance_id" validate:"required"`
	Quantity          *int      `json:"quantity,omitempty"`
}

func (r addItemRequest) toInput() cartsvc.AddItemInput {
	return cartsvc.AddItemInput{ProductInstanceID: r.ProductInstanceID, Quantity: r.Quantity}
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
