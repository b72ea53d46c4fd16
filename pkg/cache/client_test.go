package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coupon_rush/pkg/redis"
)

type testShop struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// countingLoader 统计回源次数的 LoadFunc，data 为 nil 表示源头不存在。
func countingLoader(calls *int64, delay time.Duration, data map[uint64]*testShop) LoadFunc[testShop] {
	return func(ctx context.Context, id uint64) (*testShop, error) {
		atomic.AddInt64(calls, 1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return data[id], nil
	}
}

func newTestClient() (*Client, *redis.MemoryStore, *RebuildPool) {
	store := redis.NewMemoryStore()
	pool := NewRebuildPool(4, 16)
	return New(store, pool), store, pool
}

func TestPassThroughHitMissAndSentinel(t *testing.T) {
	ctx := context.Background()
	c, store, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 0, map[uint64]*testShop{
		1: {ID: 1, Name: "茶百道"},
	})

	// 未命中 → 回源并写缓存
	got, err := QueryPassThrough(ctx, c, "shop:", 1, time.Minute, load)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "茶百道", got.Name)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))

	// 命中 → 不回源
	got, err = QueryPassThrough(ctx, c, "shop:", 1, time.Minute, load)
	require.NoError(t, err)
	require.Equal(t, "茶百道", got.Name)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))

	// 源头不存在 → 第一次回源后写空值哨兵
	got, err = QueryPassThrough(ctx, c, "shop:", 404, time.Minute, load)
	require.NoError(t, err)
	require.Nil(t, got)
	require.EqualValues(t, 2, atomic.LoadInt64(&calls))

	raw, ok, _ := store.Get(ctx, Key("shop:", 404))
	require.True(t, ok)
	require.Equal(t, "", raw)

	// 第二次命中哨兵，不再回源
	got, err = QueryPassThrough(ctx, c, "shop:", 404, time.Minute, load)
	require.NoError(t, err)
	require.Nil(t, got)
	require.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestMutexConcurrentMissSingleLoad(t *testing.T) {
	ctx := context.Background()
	c, _, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 30*time.Millisecond, map[uint64]*testShop{
		7: {ID: 7, Name: "蜀大侠"},
	})

	const n = 20
	var wg sync.WaitGroup
	results := make([]*testShop, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = QueryWithMutex(ctx, c, "shop:", 7, time.Minute, load)
		}(i)
	}
	wg.Wait()

	// 只有抢到重建锁的那个调用回源，其余退避后读缓存
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		require.Equal(t, "蜀大侠", results[i].Name)
	}
}

func TestMutexNotFoundWritesSentinel(t *testing.T) {
	ctx := context.Background()
	c, _, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 0, nil)

	got, err := QueryWithMutex(ctx, c, "shop:", 9, time.Minute, load)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = QueryWithMutex(ctx, c, "shop:", 9, time.Minute, load)
	require.NoError(t, err)
	require.Nil(t, got)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestLogicalExpireColdKeyReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	c, _, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 0, map[uint64]*testShop{1: {ID: 1}})

	// 未预热的 key 直接返回不存在，不回源
	got, err := QueryLogicalExpire(ctx, c, "shop:", 1, time.Minute, load)
	require.NoError(t, err)
	require.Nil(t, got)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestLogicalExpireFreshFastPath(t *testing.T) {
	ctx := context.Background()
	c, _, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 0, nil)

	require.NoError(t, c.SetLogical(ctx, Key("shop:", 2), &testShop{ID: 2, Name: "老字号"}, time.Minute))

	got, err := QueryLogicalExpire(ctx, c, "shop:", 2, time.Minute, load)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "老字号", got.Name)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))
}

func TestLogicalExpireConcurrentStaleSingleRebuild(t *testing.T) {
	ctx := context.Background()
	c, _, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 50*time.Millisecond, map[uint64]*testShop{
		3: {ID: 3, Name: "新招牌"},
	})

	// 预热一个已经逻辑过期的条目
	require.NoError(t, c.SetLogical(ctx, Key("shop:", 3), &testShop{ID: 3, Name: "旧招牌"}, -time.Second))

	const n = 50
	var wg sync.WaitGroup
	results := make([]*testShop, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = QueryLogicalExpire(ctx, c, "shop:", 3, time.Minute, load)
		}(i)
	}
	wg.Wait()

	// 所有读者立刻拿到值（旧值或刚重建好的新值），零阻塞
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
	}

	// 本轮过期恰好触发一次重建
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) == 1
	}, time.Second, 10*time.Millisecond)

	// 重建完成后读到新值
	require.Eventually(t, func() bool {
		got, err := QueryLogicalExpire(ctx, c, "shop:", 3, time.Minute, load)
		return err == nil && got != nil && got.Name == "新招牌"
	}, time.Second, 10*time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestLogicalExpireRebuildDeletesVanishedEntity(t *testing.T) {
	ctx := context.Background()
	c, store, pool := newTestClient()
	defer pool.Close()

	var calls int64
	load := countingLoader(&calls, 0, nil) // 源头已删除

	key := Key("shop:", 5)
	require.NoError(t, c.SetLogical(ctx, key, &testShop{ID: 5, Name: "已注销"}, -time.Second))

	// 过期读返回旧值，同时触发后台重建
	got, err := QueryLogicalExpire(ctx, c, "shop:", 5, time.Minute, load)
	require.NoError(t, err)
	require.NotNil(t, got)

	// 重建发现源头不存在，主动清掉逻辑过期的 key
	require.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, key)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLogicalExpireSaturatedPoolReleasesLock(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryStore()
	pool := NewRebuildPool(1, 1)
	defer pool.Close()
	c := New(store, pool)

	// 占满池子：1 个在跑 + 1 个排队
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	require.True(t, pool.Submit(func() {}))

	var calls int64
	load := countingLoader(&calls, 0, map[uint64]*testShop{6: {ID: 6}})
	require.NoError(t, c.SetLogical(ctx, Key("shop:", 6), &testShop{ID: 6, Name: "旧"}, -time.Second))

	// 池子饱和：读者仍拿到旧值，重建机会被放弃
	got, err := QueryLogicalExpire(ctx, c, "shop:", 6, time.Minute, load)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.EqualValues(t, 0, atomic.LoadInt64(&calls))

	// 锁必须已被释放：下一个读者能重新抢到重建权
	_, ok, _ := store.Get(ctx, "coupon_rush:lock:rebuild:shop:6")
	require.False(t, ok)
}
