package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

func (r *Repository) GetAllProducts(ctx context.Context) ([]*d.Product, error) {
	query := `
		SELECT id, name, description, price_cents, image_url
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*d.Product
	for rows.Next() {
		p := &d.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*d.Product, error) {
	query := `
		SELECT id, name, description, price_cents, image_url
		FROM products
		WHERE id = $1
	`

	p := &d.Product{}
	err := r.db.QueryRowContext(ctx, r.q(query), id).Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

// GetCoupon looks a code up case-insensitively; inactive coupons are not
// returned. Expired ones are, with ExpiresAt set.
func (r *Repository) GetCoupon(ctx context.Context, code string) (*d.Coupon, error) {
	query := `
		SELECT code, percent_off, amount_off_cents, min_total_cents, expires_at
		FROM coupons
		WHERE code = $1 AND active
	`

	c := &d.Coupon{}
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, r.q(query), strings.ToUpper(strings.TrimSpace(code))).
		Scan(&c.Code, &c.PercentOff, &c.AmountOffCents, &c.MinTotalCents, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		c.ExpiresAt = &t
	}
	return c, nil
}
