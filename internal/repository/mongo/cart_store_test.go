package mongo

import (
	"context"
	"testing"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongo(t *testing.T) *CartStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "checkout_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Disconnect(ctx, db) })

	store := NewCartStore(db)
	require.NoError(t, store.CreateIndexes(ctx))
	return store
}

func TestCartStore(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetCart(ctx, "missing")
		assert.ErrorIs(t, err, d.ErrCartNotFound)
		assert.ErrorIs(t, store.DeleteCart(ctx, "missing"), d.ErrCartNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		cart := d.NewCart("cart-1", "customer-1")
		cart.Step = d.StepConfirm
		cart.ShippingAddressID = 3
		cart.BillingAddressID = 4
		cart.Items = []d.CartItem{{ProductID: 1, Name: "Laptop", Quantity: 1, UnitPriceCents: 129999}}
		cart.Version = 1
		require.NoError(t, store.SaveCart(ctx, cart))

		got, err := store.GetCart(ctx, "cart-1")
		require.NoError(t, err)
		assert.Equal(t, d.StepConfirm, got.Step)
		assert.Equal(t, int64(3), got.ShippingAddressID)
		assert.Equal(t, int64(4), got.BillingAddressID)
		require.Len(t, got.Items, 1)
		assert.Equal(t, int64(129999), got.Items[0].UnitPriceCents)
	})

	t.Run("version check", func(t *testing.T) {
		cart := d.NewCart("cart-2", "customer-1")
		cart.Version = 1
		require.NoError(t, store.SaveCart(ctx, cart))

		next := cart.Clone()
		next.Version = 2
		next.Step = d.StepBilling
		require.NoError(t, store.SaveCart(ctx, next))

		stale := cart.Clone()
		stale.Version = 2
		stale.Step = d.StepOrder
		assert.ErrorIs(t, store.SaveCart(ctx, stale), d.ErrVersionConflict)

		got, err := store.GetCart(ctx, "cart-2")
		require.NoError(t, err)
		assert.Equal(t, d.StepBilling, got.Step)
	})

	t.Run("delete", func(t *testing.T) {
		cart := d.NewCart("cart-3", "customer-1")
		cart.Version = 1
		require.NoError(t, store.SaveCart(ctx, cart))
		require.NoError(t, store.DeleteCart(ctx, "cart-3"))

		_, err := store.GetCart(ctx, "cart-3")
		assert.ErrorIs(t, err, d.ErrCartNotFound)
	})
}
