package validity

import (
	"context"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/pricing"
)

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*d.Product, error)
}

type Stock interface {
	Available(productID int64) (int32, bool)
}

type CouponChecker interface {
	CheckCoupon(ctx context.Context, cart *d.Cart, code string) (*d.Coupon, error)
}

// Rule inspects one aspect of a cart. A nil verdict means the rule passed.
type Rule func(ctx context.Context, cart *d.Cart) (*d.Verdict, error)

// Checker runs its rules in order and returns the first failing verdict.
type Checker struct {
	rules []Rule
}

func NewChecker(catalog Catalog, stock Stock, coupons CouponChecker) *Checker {
	return &Checker{rules: []Rule{
		NotEmpty,
		ProductsCurrent(catalog),
		InStock(stock),
		CouponStillApplies(coupons),
	}}
}

// NewCheckerWithRules builds a checker over an explicit rule chain.
func NewCheckerWithRules(rules ...Rule) *Checker {
	return &Checker{rules: rules}
}

func (c *Checker) Check(ctx context.Context, cart *d.Cart) (d.Verdict, error) {
	for _, rule := range c.rules {
		v, err := rule(ctx, cart)
		if err != nil {
			return d.Verdict{}, err
		}
		if v != nil {
			return *v, nil
		}
	}
	return d.Valid(), nil
}

func invalid(redirect, reason string) *d.Verdict {
	v := d.Invalid(redirect, reason)
	return &v
}

func NotEmpty(_ context.Context, cart *d.Cart) (*d.Verdict, error) {
	if cart.IsEmpty() {
		return invalid(d.RedirectCartView, "cart is empty"), nil
	}
	return nil, nil
}

// ProductsCurrent fails when an item was removed from the catalog or its
// price moved since it was added.
func ProductsCurrent(catalog Catalog) Rule {
	return func(ctx context.Context, cart *d.Cart) (*d.Verdict, error) {
		for _, item := range cart.Items {
			p, err := catalog.GetProduct(ctx, item.ProductID)
			if errors.Is(err, d.ErrProductNotFound) {
				return invalid(d.RedirectCartView, fmt.Sprintf("product %d is no longer available", item.ProductID)), nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get product %d: %w", item.ProductID, err)
			}
			if p.PriceCents != item.UnitPriceCents {
				return invalid(d.RedirectCartView, fmt.Sprintf("price of product %d changed", item.ProductID)), nil
			}
		}
		return nil, nil
	}
}

// InStock fails when a tracked product has less stock than requested.
// Untracked products pass.
func InStock(stock Stock) Rule {
	return func(_ context.Context, cart *d.Cart) (*d.Verdict, error) {
		for _, item := range cart.Items {
			qty, tracked := stock.Available(item.ProductID)
			if tracked && qty < item.Quantity {
				return invalid(d.RedirectCartView, fmt.Sprintf("product %d has only %d in stock", item.ProductID, qty)), nil
			}
		}
		return nil, nil
	}
}

// CouponStillApplies reports a coupon that expired or stopped applying. The
// verdict carries no redirect: pricing drops the discount and checkout goes
// on.
func CouponStillApplies(coupons CouponChecker) Rule {
	return func(ctx context.Context, cart *d.Cart) (*d.Verdict, error) {
		if cart.CouponCode == "" {
			return nil, nil
		}
		_, err := coupons.CheckCoupon(ctx, cart, cart.CouponCode)
		switch {
		case errors.Is(err, d.ErrCouponNotFound), errors.Is(err, pricing.ErrCouponExpired),
			errors.Is(err, pricing.ErrCouponNotApplicable):
			return invalid("", fmt.Sprintf("coupon %s: %v", cart.CouponCode, err)), nil
		case err != nil:
			return nil, fmt.Errorf("failed to check coupon: %w", err)
		}
		return nil, nil
	}
}
