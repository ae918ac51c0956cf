package address

import (
	"context"
	"testing"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBook(t *testing.T) *Book {
	repo, err := repository.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { _ = repo.Close() })
	return NewBook(repo)
}

var validFields = d.AddressFields{
	FirstName: " Ada ", LastName: "Lovelace", Address1: "1 Main St",
	City: "London", Zip: "N1", Country: "GB",
}

func TestCreateAndGet(t *testing.T) {
	book := setupBook(t)
	ctx := context.Background()

	id, err := book.Create(ctx, "customer-1", validFields)
	require.NoError(t, err)

	a, err := book.Get(ctx, "customer-1", id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", a.FirstName)
	assert.Equal(t, "customer-1", a.CustomerID)
}

func TestCreate_Incomplete(t *testing.T) {
	book := setupBook(t)

	_, err := book.Create(context.Background(), "customer-1", d.AddressFields{FirstName: "Ada"})
	assert.ErrorIs(t, err, d.ErrIncompleteAddress)
}

func TestGet_OtherCustomer(t *testing.T) {
	book := setupBook(t)
	ctx := context.Background()

	id, err := book.Create(ctx, "customer-1", validFields)
	require.NoError(t, err)

	_, err = book.Get(ctx, "customer-2", id)
	assert.ErrorIs(t, err, d.ErrAddressNotFound)
}

func TestGet_ZeroID(t *testing.T) {
	book := setupBook(t)
	_, err := book.Get(context.Background(), "customer-1", 0)
	assert.ErrorIs(t, err, d.ErrAddressNotFound)
}

func TestDeleteAndList(t *testing.T) {
	book := setupBook(t)
	ctx := context.Background()

	empty, err := book.ListForCustomer(ctx, "customer-1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	id1, err := book.Create(ctx, "customer-1", validFields)
	require.NoError(t, err)
	_, err = book.Create(ctx, "customer-1", validFields)
	require.NoError(t, err)

	assert.ErrorIs(t, book.Delete(ctx, "customer-2", id1), d.ErrAddressNotFound)
	require.NoError(t, book.Delete(ctx, "customer-1", id1))
	assert.ErrorIs(t, book.Delete(ctx, "customer-1", id1), d.ErrAddressNotFound)

	list, err := book.ListForCustomer(ctx, "customer-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReassign(t *testing.T) {
	book := setupBook(t)
	ctx := context.Background()

	guest := d.GuestCustomerID("session-1")
	shipping, err := book.Create(ctx, guest, validFields)
	require.NoError(t, err)
	billing, err := book.Create(ctx, guest, validFields)
	require.NoError(t, err)
	foreign, err := book.Create(ctx, "customer-2", validFields)
	require.NoError(t, err)

	require.NoError(t, book.Reassign(ctx, guest, "customer-1", shipping, billing, foreign, 0))
	// repeating is harmless
	require.NoError(t, book.Reassign(ctx, guest, "customer-1", shipping, billing))

	for _, id := range []int64{shipping, billing} {
		a, err := book.Get(ctx, "customer-1", id)
		require.NoError(t, err)
		assert.Equal(t, "customer-1", a.CustomerID)
		_, err = book.Get(ctx, guest, id)
		assert.ErrorIs(t, err, d.ErrAddressNotFound)
	}

	_, err = book.Get(ctx, "customer-2", foreign)
	assert.NoError(t, err)
}
