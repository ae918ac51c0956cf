package address

import (
	"context"
	"fmt"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

type Store interface {
	GetAddress(ctx context.Context, customerID string, id int64) (*d.Address, error)
	CreateAddress(ctx context.Context, a *d.Address) (int64, error)
	DeleteAddress(ctx context.Context, customerID string, id int64) error
	ReassignAddresses(ctx context.Context, from, to string, ids ...int64) error
	ListAddresses(ctx context.Context, customerID string) ([]*d.Address, error)
}

// Book is a customer's set of saved addresses. Every lookup is scoped to
// the owning customer; another customer's address reads as not found.
type Book struct {
	store Store
}

func NewBook(store Store) *Book {
	return &Book{store: store}
}

func (b *Book) Get(ctx context.Context, customerID string, id int64) (*d.Address, error) {
	if id <= 0 {
		return nil, d.ErrAddressNotFound
	}
	return b.store.GetAddress(ctx, customerID, id)
}

func (b *Book) Create(ctx context.Context, customerID string, fields d.AddressFields) (int64, error) {
	if err := fields.Validate(); err != nil {
		return 0, err
	}
	id, err := b.store.CreateAddress(ctx, fields.ToAddress(customerID))
	if err != nil {
		return 0, fmt.Errorf("failed to save address: %w", err)
	}
	return id, nil
}

func (b *Book) Delete(ctx context.Context, customerID string, id int64) error {
	if id <= 0 {
		return d.ErrAddressNotFound
	}
	return b.store.DeleteAddress(ctx, customerID, id)
}

// Reassign hands the addresses from owns over to to. Ids from does not own
// are skipped.
func (b *Book) Reassign(ctx context.Context, from, to string, ids ...int64) error {
	if from == to || len(ids) == 0 {
		return nil
	}
	if err := b.store.ReassignAddresses(ctx, from, to, ids...); err != nil {
		return fmt.Errorf("failed to reassign addresses: %w", err)
	}
	return nil
}

func (b *Book) ListForCustomer(ctx context.Context, customerID string) ([]*d.Address, error) {
	addresses, err := b.store.ListAddresses(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	if addresses == nil {
		addresses = []*d.Address{}
	}
	return addresses, nil
}
