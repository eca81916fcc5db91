package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/internal/catalog"
	"github.com/persiamall/storefront/pkg/db/models"
)

// ProductView is the live catalog snapshot shown next to a cart line.
type ProductView struct {
	ID            uuid.UUID       `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Image         *string         `json:"image"`
	StockQuantity int             `json:"stock_quantity"`
	Available     bool            `json:"is_available"`
}

// ItemView is one cart line priced at the current catalog price.
type ItemView struct {
	ID              uuid.UUID       `json:"id"`
	ProductInstance ProductView     `json:"product_instance"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// CartView is the full cart with totals computed at read time.
type CartView struct {
	CartID     uuid.UUID       `json:"cart_id"`
	Items      []ItemView      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// MutationResult is returned by every cart write.
type MutationResult struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	CartTotalItems int       `json:"cart_total_items"`
	Removed        bool      `json:"removed,omitempty"`
	Item           *ItemView `json:"item,omitempty"`
}

// AddItemInput is the add-to-cart payload. A nil Quantity means one.
type AddItemInput struct {
	ProductInstanceID uuid.UUID
	Quantity          *int
}

func newItemView(item models.CartItem, snap catalog.Snapshot) ItemView {
	unit := snap.Price
	return ItemView{
		ID: item.ID,
		ProductInstance: ProductView{
			ID:            snap.ID,
			SKU:           snap.SKU,
			Name:          snap.ProductName,
			Price:         unit,
			Image:         snap.ImageURL,
			StockQuantity: snap.Stock,
			Available:     snap.Active,
		},
		Quantity:   item.Quantity,
		UnitPrice:  unit,
		TotalPrice: unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}
}

// buildView joins cart lines with snapshots. A line whose instance left the
// store's catalog is kept as unavailable with a zero price, so total_items
// always matches the stored quantities.
func buildView(cartID uuid.UUID, items []models.CartItem, snaps map[uuid.UUID]catalog.Snapshot) *CartView {
	view := &CartView{CartID: cartID, Items: make([]ItemView, 0, len(items)), TotalPrice: decimal.Zero}
	for _, item := range items {
		snap, ok := snaps[item.ProductInstanceID]
		if !ok {
			snap = catalog.Snapshot{ID: item.ProductInstanceID, Price: decimal.Zero}
		}
		line := newItemView(item, snap)
		view.Items = append(view.Items, line)
		view.TotalItems += line.Quantity
		view.TotalPrice = view.TotalPrice.Add(line.TotalPrice)
	}
	return view
}
