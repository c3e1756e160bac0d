package dto

import "github.com/Rijughosh14/EShop/internal/domain"

// PlaceOrderRequest is the checkout payload. Every field is optional
// because the storefront posts whatever the cart holds.
type PlaceOrderRequest struct {
	Items    []domain.OrderItem     `json:"items"`
	Shipping domain.ShippingAddress `json:"shipping"`
	Total    float64                `json:"total"`
}

// Validate rejects negative prices and non-positive quantities
func (r *PlaceOrderRequest) Validate() (bool, string) {
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return false, "Item quantity must be positive"
		}
		if item.Price < 0 {
			return false, "Item price must not be negative"
		}
	}
	if r.Total < 0 {
		return false, "Order total must not be negative"
	}
	return true, ""
}

// OrderResponse mirrors what the storefront checkout expects
type OrderResponse struct {
	Success bool    `json:"success"`
	OrderID string  `json:"orderId,omitempty"`
	Message string  `json:"message"`
	Total   float64 `json:"total,omitempty"`
}
