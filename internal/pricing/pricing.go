package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

var (
	ErrCouponNotApplicable = errors.New("coupon does not apply to this cart")
	ErrCouponExpired       = errors.New("coupon has expired")
)

type CouponSource interface {
	GetCoupon(ctx context.Context, code string) (*d.Coupon, error)
}

// Calculator derives cart totals. It never writes to the cart.
type Calculator struct {
	coupons  CouponSource
	currency string
	now      func() time.Time
}

type Option func(*Calculator)

// WithClock replaces time.Now for coupon expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

func NewCalculator(coupons CouponSource, currency string, opts ...Option) *Calculator {
	c := &Calculator{coupons: coupons, currency: currency, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Currency() string {
	return c.currency
}

// Totals prices the cart. A coupon that no longer resolves, has expired or
// stopped applying gives no discount; the validity check reports it separately.
func (c *Calculator) Totals(ctx context.Context, cart *d.Cart) (d.Totals, error) {
	t := d.Totals{SubtotalCents: Subtotal(cart.Items), Currency: c.currency}

	if cart.CouponCode != "" {
		coupon, err := c.coupons.GetCoupon(ctx, cart.CouponCode)
		switch {
		case errors.Is(err, d.ErrCouponNotFound):
		case err != nil:
			return d.Totals{}, fmt.Errorf("failed to get coupon: %w", err)
		case coupon.Expired(c.now()):
		default:
			t.DiscountCents, _ = Discount(t.SubtotalCents, coupon)
		}
	}

	t.TotalCents = t.SubtotalCents - t.DiscountCents
	return t, nil
}

// CheckCoupon resolves code and verifies it applies to cart.
func (c *Calculator) CheckCoupon(ctx context.Context, cart *d.Cart, code string) (*d.Coupon, error) {
	coupon, err := c.coupons.GetCoupon(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon.Expired(c.now()) {
		return nil, ErrCouponExpired
	}
	if _, err := Discount(Subtotal(cart.Items), coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func Subtotal(items []d.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.SubtotalCents()
	}
	return total
}

// Discount is the amount coupon takes off subtotal, capped at subtotal.
func Discount(subtotal int64, coupon *d.Coupon) (int64, error) {
	if subtotal < coupon.MinTotalCents {
		return 0, ErrCouponNotApplicable
	}

	var discount int64
	switch {
	case coupon.PercentOff > 0:
		if coupon.PercentOff > 100 {
			return 0, fmt.Errorf("coupon %s: percentage must be 0-100", coupon.Code)
		}
		discount = subtotal * int64(coupon.PercentOff) / 100
	case coupon.AmountOffCents > 0:
		discount = coupon.AmountOffCents
	}

	if discount > subtotal {
		discount = subtotal
	}
	return discount, nil
}
