package domain

import (
	"strings"
	"time"
)

type CartItem struct {
	ProductID      int64     `json:"product_id" bson:"product_id"`
	Name           string    `json:"name" bson:"name"`
	Quantity       int32     `json:"quantity" bson:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents" bson:"unit_price_cents"`
	AddedAt        time.Time `json:"added_at" bson:"added_at"`
}

func (i CartItem) SubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Cart is the checkout state of one customer session.
//
// Step, the address references, CheckoutToken and PlacedOrderID are written
// only by the checkout machine. Items and CouponCode belong to the cart
// view.
type Cart struct {
	ID                string     `json:"id" bson:"_id"`
	CustomerID        string     `json:"customer_id" bson:"customer_id"`
	Step              Step       `json:"step" bson:"step"`
	Items             []CartItem `json:"items" bson:"items"`
	ShippingAddressID int64      `json:"shipping_address_id,omitempty" bson:"shipping_address_id"`
	BillingAddressID  int64      `json:"billing_address_id,omitempty" bson:"billing_address_id"`
	CouponCode        string     `json:"coupon_code,omitempty" bson:"coupon_code"`
	CheckoutToken     string     `json:"checkout_token,omitempty" bson:"checkout_token"`
	PlacedOrderID     string     `json:"placed_order_id,omitempty" bson:"placed_order_id"`
	Version           int64      `json:"version" bson:"version"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

// NewCart returns a fresh cart that may enter the shipping step.
func NewCart(id, customerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:         id,
		CustomerID: customerID,
		Step:       StepShipping,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

const guestPrefix = "guest:"

// GuestCustomerID is the owner id given to an anonymous session.
func GuestCustomerID(sessionID string) string {
	return guestPrefix + sessionID
}

func IsGuest(customerID string) bool {
	return strings.HasPrefix(customerID, guestPrefix)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy so pure transitions never alias the caller's items.
func (c *Cart) Clone() *Cart {
	cp := *c
	if c.Items != nil {
		cp.Items = make([]CartItem, len(c.Items))
		copy(cp.Items, c.Items)
	}
	return &cp
}

// AddressRef returns the reference stored for the role.
func (c *Cart) AddressRef(role AddressRole) int64 {
	if role == RoleBilling {
		return c.BillingAddressID
	}
	return c.ShippingAddressID
}

// Totals are derived by the pricing collaborator.
type Totals struct {
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
}
