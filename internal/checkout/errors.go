package checkout

import "errors"

var (
	ErrInvalidRole          = errors.New("address role must be shipping or billing")
	ErrMissingCartID        = errors.New("cart id is required")
	ErrMissingCheckoutToken = errors.New("cart at order step has no checkout token")
)
