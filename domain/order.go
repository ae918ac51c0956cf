package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
)

type OrderItem struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	CheckoutToken   string      `json:"checkout_token"`
	CartID          string      `json:"cart_id"`
	CustomerID      string      `json:"customer_id"`
	Items           []OrderItem `json:"items"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	BillingAddress  *Address    `json:"billing_address,omitempty"`
	SubtotalCents   int64       `json:"subtotal_cents"`
	DiscountCents   int64       `json:"discount_cents"`
	TotalCents      int64       `json:"total_cents"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// EventOrderPlaced is the outbox event type of OrderPlacedEvent.
const EventOrderPlaced = "OrderPlaced"

// OrderPlacedEvent is the outbox payload published after placement.
type OrderPlacedEvent struct {
	OrderID    string      `json:"order_id"`
	CartID     string      `json:"cart_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
	TotalCents int64       `json:"total_cents"`
	Currency   string      `json:"currency"`
	PlacedAt   time.Time   `json:"placed_at"`
}
