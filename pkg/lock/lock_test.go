package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coupon_rush/pkg/redis"
)

func TestTryLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryStore()

	a := New(store, "order:1")
	b := New(store, "order:1")

	won, err := a.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	won, err = b.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.False(t, won)

	require.NoError(t, a.Unlock(ctx))

	won, err = b.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, won)
}

func TestTryLockConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryStore()

	const n = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := New(store, "hot")
			won, err := mu.TryLock(ctx, time.Minute)
			require.NoError(t, err)
			if won {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 1, count)
}

func TestUnlockOnlyByHolder(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryStore()

	holder := New(store, "order:2")
	won, _ := holder.TryLock(ctx, time.Minute)
	require.True(t, won)

	// 非持有者释放是 no-op，锁仍然在
	other := New(store, "order:2")
	require.NoError(t, other.Unlock(ctx))

	won, _ = other.TryLock(ctx, time.Minute)
	require.False(t, won)

	require.NoError(t, holder.Unlock(ctx))
	won, _ = other.TryLock(ctx, time.Minute)
	require.True(t, won)
}

func TestLockExpiry(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryStore()

	a := New(store, "order:3")
	won, _ := a.TryLock(ctx, 20*time.Millisecond)
	require.True(t, won)

	time.Sleep(30 * time.Millisecond)

	// TTL 兜底后别人可以拿锁
	b := New(store, "order:3")
	won, _ = b.TryLock(ctx, time.Minute)
	require.True(t, won)

	// 过期的旧持有者释放不会误删新锁
	require.NoError(t, a.Unlock(ctx))
	c := New(store, "order:3")
	won, _ = c.TryLock(ctx, time.Minute)
	require.False(t, won)
}
