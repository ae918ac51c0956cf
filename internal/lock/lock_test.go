package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "cart-1")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, m.Len())
}

func setupRedisLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLock(client, 5*time.Second, zap.NewNop()), mr
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	l, mr := setupRedisLock(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "cart-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:cart:cart-1"))
	assert.Equal(t, 5*time.Second, mr.TTL("lock:cart:cart-1"))

	unlock()
	assert.False(t, mr.Exists("lock:cart:cart-1"))
}

func TestRedisLock_BlocksUntilReleased(t *testing.T) {
	l, _ := setupRedisLock(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "cart-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(ctx, "cart-1")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(60 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestRedisLock_TimesOut(t *testing.T) {
	l, _ := setupRedisLock(t)

	unlock, err := l.Lock(context.Background(), "cart-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "cart-1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestRedisLock_ReleaseKeepsForeignLease(t *testing.T) {
	l, mr := setupRedisLock(t)

	unlock, err := l.Lock(context.Background(), "cart-1")
	require.NoError(t, err)

	// lease expired and someone else took it
	require.NoError(t, mr.Set("lock:cart:cart-1", "other-holder"))
	unlock()

	v, err := mr.Get("lock:cart:cart-1")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", v)
}
