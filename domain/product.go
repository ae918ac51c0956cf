package domain

import "time"

type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	ImageURL    string `json:"image_url"`
}

// Coupon is a discount code. Either PercentOff or AmountOffCents is set.
type Coupon struct {
	Code           string     `json:"code"`
	PercentOff     int32      `json:"percent_off,omitempty"`
	AmountOffCents int64      `json:"amount_off_cents,omitempty"`
	MinTotalCents  int64      `json:"min_total_cents,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the coupon's expiry is at or before now. Coupons
// without an expiry never expire.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
