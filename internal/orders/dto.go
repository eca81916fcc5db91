package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
)

// CheckoutInput is the customer information collected at checkout.
type CheckoutInput struct {
	Name    string `json:"customer_name" validate:"required,max=200"`
	Phone   string `json:"customer_phone" validate:"required,ir_mobile"`
	Email   string `json:"customer_email" validate:"omitempty,email"`
	Address string `json:"shipping_address" validate:"required,max=2000"`
	Notes   string `json:"notes" validate:"max=2000"`
}

// OrderItemDTO is one frozen order line.
type OrderItemDTO struct {
	ProductInstanceID uuid.UUID       `json:"product_instance_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"price_at_order"`
	Quantity          int             `json:"quantity"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

// PaymentDTO summarises the latest payment attempt of an order.
type PaymentDTO struct {
	ID          uuid.UUID           `json:"id"`
	Status      enums.PaymentStatus `json:"status"`
	Gateway     string              `json:"gateway,omitempty"`
	ReferenceID string              `json:"reference_id,omitempty"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
}

type OrderDTO struct {
	ID              uuid.UUID                `json:"id"`
	OrderNumber     string                   `json:"order_number"`
	Status          enums.OrderStatus        `json:"status"`
	PaymentStatus   enums.OrderPaymentStatus `json:"payment_status"`
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	CustomerEmail   *string                  `json:"customer_email,omitempty"`
	ShippingAddress string                   `json:"shipping_address"`
	Notes           *string                  `json:"notes,omitempty"`
	Subtotal        decimal.Decimal          `json:"subtotal"`
	Total           decimal.Decimal          `json:"total"`
	Items           []OrderItemDTO           `json:"items"`
	Payment         *PaymentDTO              `json:"payment,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// CheckoutResult is returned once the order exists and a gateway accepted
// the payment request.
type CheckoutResult struct {
	Order       *OrderDTO `json:"order"`
	PaymentID   uuid.UUID `json:"payment_id"`
	RedirectURL string    `json:"redirect_url"`
}

// CallbackResult is the outcome shown on the payment result page.
type CallbackResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Order       *OrderDTO `json:"order"`
}

func orderFromModel(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	out := &OrderDTO{
		ID:              m.ID,
		OrderNumber:     m.OrderNumber,
		Status:          m.Status,
		PaymentStatus:   m.PaymentStatus,
		CustomerName:    m.CustomerName,
		CustomerPhone:   m.CustomerPhone,
		CustomerEmail:   m.CustomerEmail,
		ShippingAddress: m.ShippingAddress,
		Notes:           m.Notes,
		Subtotal:        m.Subtotal,
		Total:           m.Total,
		Items:           make([]OrderItemDTO, 0, len(m.Items)),
		CreatedAt:       m.CreatedAt,
	}
	for _, item := range m.Items {
		out.Items = append(out.Items, OrderItemDTO{
			ProductInstanceID: item.ProductInstanceID,
			SKU:               item.SKU,
			Name:              item.Name,
			UnitPrice:         item.UnitPrice,
			Quantity:          item.Quantity,
			LineTotal:         item.LineTotal,
		})
	}
	return out
}

func paymentFromModel(m *models.Payment) *PaymentDTO {
	if m == nil {
		return nil
	}
	out := &PaymentDTO{ID: m.ID, Status: m.Status, PaidAt: m.PaidAt}
	if m.GatewayKind != nil {
		out.Gateway = string(*m.GatewayKind)
	}
	if m.ReferenceID != nil {
		out.ReferenceID = *m.ReferenceID
	}
	return out
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
