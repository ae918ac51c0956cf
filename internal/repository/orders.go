package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, checkout_token, cart_id, customer_id, items, shipping_address, billing_address,
	subtotal_cents, discount_cents, total_cents, currency, status, created_at`

// OutboxEvent is a row of the transactional outbox.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// CreateOrder inserts the order and its outbox event in one transaction.
// A second order for the same checkout token yields ErrDuplicateCheckout.
func (r *Repository) CreateOrder(ctx context.Context, order *d.Order, event *OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal billing address: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO orders (id, checkout_token, cart_id, customer_id, items, shipping_address, billing_address,
	                              subtotal_cents, discount_cents, total_cents, currency, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.ExecContext(ctx, r.q(query),
		order.ID.String(),
		order.CheckoutToken,
		order.CartID,
		order.CustomerID,
		string(itemsJSON),
		string(shippingJSON),
		string(billingJSON),
		order.SubtotalCents,
		order.DiscountCents,
		order.TotalCents,
		order.Currency,
		string(order.Status),
		order.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return d.ErrDuplicateCheckout
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if event != nil {
		if err := r.insertOutbox(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) insertOutbox(ctx context.Context, ex execer, event *OutboxEvent) error {
	query := `INSERT INTO outbox (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`
	_, err := ex.ExecContext(ctx, r.q(query),
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOrder(ctx, query, id.String())
}

func (r *Repository) GetOrderByCheckoutToken(ctx context.Context, token string) (*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_token = $1`
	return r.getOrder(ctx, query, token)
}

func (r *Repository) getOrder(ctx context.Context, query string, arg any) (*d.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, r.q(query), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, d.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*d.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.q(query), customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by customer id: %w", err)
	}
	defer rows.Close()

	var orders []*d.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func scanOrder(row interface{ Scan(...any) error }) (*d.Order, error) {
	var (
		order                    d.Order
		id                       string
		status                   string
		items, shipping, billing []byte
	)
	err := row.Scan(
		&id,
		&order.CheckoutToken,
		&order.CartID,
		&order.CustomerID,
		&items,
		&shipping,
		&billing,
		&order.SubtotalCents,
		&order.DiscountCents,
		&order.TotalCents,
		&order.Currency,
		&status,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if order.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse order id: %w", err)
	}
	order.Status = d.OrderStatus(status)
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return &order, nil
}
