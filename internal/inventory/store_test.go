package inventory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/stretchr/testify/assert"
)

func setupStore(t *testing.T) *MemoryStore {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStore_SetStock_And_GetStock(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	store.SetStock(2, 200)

	stocks := store.GetStock([]int64{1, 2, 3})
	assert.Len(t, stocks, 2)

	qty, ok := store.Available(1)
	assert.True(t, ok)
	assert.Equal(t, int32(100), qty)

	_, ok = store.Available(3)
	assert.False(t, ok)
}

func TestMemoryStore_Deduct(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 10)
	store.SetStock(2, 5)

	applied, short := store.Deduct("order-1", []d.OrderItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 5},
		{ProductID: 99, Quantity: 1},
	})
	assert.True(t, applied)
	assert.Empty(t, short)

	qty, _ := store.Available(1)
	assert.Equal(t, int32(7), qty)
	qty, _ = store.Available(2)
	assert.Equal(t, int32(0), qty)
}

func TestMemoryStore_Deduct_Idempotent(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 10)
	items := []d.OrderItem{{ProductID: 1, Quantity: 4}}

	applied, _ := store.Deduct("order-1", items)
	assert.True(t, applied)
	applied, _ = store.Deduct("order-1", items)
	assert.False(t, applied)

	qty, _ := store.Available(1)
	assert.Equal(t, int32(6), qty)
}

func TestMemoryStore_Deduct_ClampsAtZero(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 2)

	applied, short := store.Deduct("order-1", []d.OrderItem{{ProductID: 1, Quantity: 5}})
	assert.True(t, applied)
	assert.Equal(t, []int64{1}, short)

	qty, _ := store.Available(1)
	assert.Equal(t, int32(0), qty)
}

func TestMemoryStore_ForgetApplied(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 10)
	items := []d.OrderItem{{ProductID: 1, Quantity: 1}}

	store.Deduct("order-1", items)
	store.forgetApplied(time.Now().Add(time.Second))

	applied, _ := store.Deduct("order-1", items)
	assert.True(t, applied)
}

func TestMemoryStore_ConcurrentDeducts(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Deduct(fmt.Sprintf("order-%d", i), []d.OrderItem{{ProductID: 1, Quantity: 1}})
		}(i)
	}
	wg.Wait()

	qty, _ := store.Available(1)
	assert.Equal(t, int32(900), qty)
}
