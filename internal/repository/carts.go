package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

func (r *Repository) GetCart(ctx context.Context, id string) (*d.Cart, error) {
	query := `SELECT id, customer_id, step, items, shipping_address_id, billing_address_id,
	                 coupon_code, checkout_token, placed_order_id, version, created_at, updated_at
	          FROM carts WHERE id = $1`

	var cart d.Cart
	var itemsJSON []byte
	err := r.db.QueryRowContext(ctx, r.q(query), id).Scan(
		&cart.ID,
		&cart.CustomerID,
		&cart.Step,
		&itemsJSON,
		&cart.ShippingAddressID,
		&cart.BillingAddressID,
		&cart.CouponCode,
		&cart.CheckoutToken,
		&cart.PlacedOrderID,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	return &cart, nil
}

// SaveCart writes cart if the stored row is exactly one version older, or
// inserts it when no row exists. Anything else is ErrVersionConflict.
func (r *Repository) SaveCart(ctx context.Context, cart *d.Cart) error {
	items := cart.Items
	if items == nil {
		items = []d.CartItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}

	query := `INSERT INTO carts (id, customer_id, step, items, shipping_address_id, billing_address_id,
	                             coupon_code, checkout_token, placed_order_id, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          ON CONFLICT (id) DO UPDATE SET
	              customer_id = excluded.customer_id,
	              step = excluded.step,
	              items = excluded.items,
	              shipping_address_id = excluded.shipping_address_id,
	              billing_address_id = excluded.billing_address_id,
	              coupon_code = excluded.coupon_code,
	              checkout_token = excluded.checkout_token,
	              placed_order_id = excluded.placed_order_id,
	              version = excluded.version,
	              updated_at = excluded.updated_at
	          WHERE carts.version = excluded.version - 1`

	res, err := r.db.ExecContext(ctx, r.q(query),
		cart.ID,
		cart.CustomerID,
		int(cart.Step),
		string(itemsJSON),
		cart.ShippingAddressID,
		cart.BillingAddressID,
		cart.CouponCode,
		cart.CheckoutToken,
		cart.PlacedOrderID,
		cart.Version,
		cart.CreatedAt.UTC(),
		cart.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert cart rows affected: %w", err)
	}
	if n == 0 {
		return d.ErrVersionConflict
	}
	return nil
}

func (r *Repository) DeleteCart(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM carts WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart rows affected: %w", err)
	}
	if n == 0 {
		return d.ErrCartNotFound
	}
	return nil
}
