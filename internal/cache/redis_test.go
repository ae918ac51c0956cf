package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return cache, mr, cleanup
}

func testCart(id string) *d.Cart {
	cart := d.NewCart(id, "customer-1")
	cart.Items = []d.CartItem{
		{ProductID: 1, Quantity: 2, UnitPriceCents: 1999},
		{ProductID: 2, Quantity: 3, UnitPriceCents: 500},
	}
	cart.Step = d.StepBilling
	cart.ShippingAddressID = 7
	cart.Version = 3
	return cart
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cart := testCart("cart-1")
	cartJSON, _ := json.Marshal(cart)
	require.NoError(t, mr.Set(cacheKey("cart-1"), string(cartJSON)))

	result, err := cache.Get(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, "cart-1", result.ID)
	assert.Equal(t, d.StepBilling, result.Step)
	assert.Equal(t, int64(7), result.ShippingAddressID)
	assert.Equal(t, int64(3), result.Version)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, int64(1), result.Items[0].ProductID)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cartJSON, err := json.Marshal(testCart("cart-1"))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("cart-1"), string(cartJSON[0:10])))

	_, cacheError := cache.Get(context.Background(), "cart-1")
	require.ErrorContains(t, cacheError, "unmarshal cart failed")
}

func TestSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), testCart("cart-2")))

	stored, err := mr.Get(cacheKey("cart-2"))
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	var storedCart d.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &storedCart))
	assert.Equal(t, "cart-2", storedCart.ID)
	assert.Len(t, storedCart.Items, 2)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), d.NewCart("cart-3", "")))

	ttl := mr.TTL(cacheKey("cart-3"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl < 20*time.Minute, "TTL should be below base + max jitter")
}

func TestSet_Overwrites(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	cart := testCart("cart-4")
	require.NoError(t, cache.Set(ctx, cart))
	cart.Version = 4
	require.NoError(t, cache.Set(ctx, cart))

	got, err := cache.Get(ctx, "cart-4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
}

func TestFill_KeepsExistingValue(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	newer := testCart("cart-5")
	newer.Version = 9
	require.NoError(t, cache.Set(ctx, newer))

	older := testCart("cart-5")
	older.Version = 2
	require.NoError(t, cache.Fill(ctx, older))

	got, err := cache.Get(ctx, "cart-5")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Version)
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	cartJSON, _ := json.Marshal(testCart("cart-6"))
	require.NoError(t, mr.Set(cacheKey("cart-6"), string(cartJSON)))
	assert.True(t, mr.Exists(cacheKey("cart-6")))

	require.NoError(t, cache.Delete(context.Background(), "cart-6"))
	assert.False(t, mr.Exists(cacheKey("cart-6")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
