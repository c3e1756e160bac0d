package domain

import "time"

// OrderStatus is the outcome of a mock checkout
type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "placed"
	OrderStatusFailed OrderStatus = "failed"
)

// OrderItem is one cart line
type OrderItem struct {
	ProductID int     `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// ShippingAddress is where the order goes
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order is a checkout attempt; it is never persisted
type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Items         []OrderItem     `json:"items"`
	Shipping      ShippingAddress `json:"shipping"`
	Total         float64         `json:"total"`
	Status        OrderStatus     `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Subtotal sums price times quantity over the items
func (o *Order) Subtotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// OrderEventType names what happened to an order
type OrderEventType string

const (
	OrderEventPlaced OrderEventType = "order.placed"
	OrderEventFailed OrderEventType = "order.failed"
)

// OrderEvent is published after each checkout attempt
type OrderEvent struct {
	EventID    string         `json:"event_id"`
	EventType  OrderEventType `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Order      *Order         `json:"order"`
}

// NewOrderEvent builds the event for order
func NewOrderEvent(eventType OrderEventType, order *Order, eventID string) *OrderEvent {
	return &OrderEvent{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Order:      order,
	}
}

// Key partitions events by user so one customer's orders stay ordered
func (e *OrderEvent) Key() string {
	return e.Order.UserID
}
