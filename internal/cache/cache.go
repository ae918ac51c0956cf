package cache

import (
	"context"
	"errors"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

type CartCache interface {
	Get(ctx context.Context, cartID string) (*d.Cart, error)
	// Set overwrites any cached value.
	Set(ctx context.Context, cart *d.Cart) error
	// Fill stores cart only when nothing is cached for it yet.
	Fill(ctx context.Context, cart *d.Cart) error
	Delete(ctx context.Context, cartID string) error
}

var ErrCacheMiss = errors.New("cache miss")
