package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

const addressColumns = `id, customer_id, first_name, last_name, address1, address2, city, state, zip, country, phone, created_at`

func scanAddress(row interface{ Scan(...any) error }) (*d.Address, error) {
	var a d.Address
	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.FirstName,
		&a.LastName,
		&a.Address1,
		&a.Address2,
		&a.City,
		&a.State,
		&a.Zip,
		&a.Country,
		&a.Phone,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAddress returns the address only when it belongs to customerID.
func (r *Repository) GetAddress(ctx context.Context, customerID string, id int64) (*d.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND customer_id = $2`

	a, err := scanAddress(r.db.QueryRowContext(ctx, r.q(query), id, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return a, nil
}

func (r *Repository) CreateAddress(ctx context.Context, a *d.Address) (int64, error) {
	query := `INSERT INTO addresses (customer_id, first_name, last_name, address1, address2, city, state, zip, country, phone, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.q(query),
		a.CustomerID,
		a.FirstName,
		a.LastName,
		a.Address1,
		a.Address2,
		a.City,
		a.State,
		a.Zip,
		a.Country,
		a.Phone,
		a.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}
	return id, nil
}

func (r *Repository) DeleteAddress(ctx context.Context, customerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM addresses WHERE id = $1 AND customer_id = $2`), id, customerID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete address rows affected: %w", err)
	}
	if n == 0 {
		return d.ErrAddressNotFound
	}
	return nil
}

// ReassignAddresses moves the given addresses from one owner to another.
// Addresses not owned by from are left alone, so repeating a call is a no-op.
func (r *Repository) ReassignAddresses(ctx context.Context, from, to string, ids ...int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.q(`UPDATE addresses SET customer_id = $1 WHERE id = $2 AND customer_id = $3`)
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, to, id, from); err != nil {
			return fmt.Errorf("reassign address %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reassign: %w", err)
	}
	return nil
}

func (r *Repository) ListAddresses(ctx context.Context, customerID string) ([]*d.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE customer_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.q(query), customerID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*d.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addresses, nil
}
