package domain

import "errors"

// Store-level errors shared by every backend.
var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrVersionConflict   = errors.New("cart was modified concurrently")
	ErrAddressNotFound   = errors.New("address not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotFound      = errors.New("item not found in cart")
	ErrCouponNotFound    = errors.New("coupon not found")
)

// Verdict is the answer of a cart validity check. An invalid verdict with an
// empty Redirect carries no instruction for the caller.
type Verdict struct {
	Valid    bool
	Redirect string
	Reason   string
}

func Valid() Verdict { return Verdict{Valid: true} }

func Invalid(redirect, reason string) Verdict {
	return Verdict{Valid: false, Redirect: redirect, Reason: reason}
}
