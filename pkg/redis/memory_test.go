package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", val)

	// 空串是合法值（空值哨兵依赖这一点）
	require.NoError(t, s.Set(ctx, "empty", "", time.Minute))
	val, ok, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "", val)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "v", 20*time.Millisecond))
	_, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok, _ = s.Get(ctx, "k")
	require.False(t, ok)
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.SetNX(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.SetNX(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, created)

	val, _, _ := s.Get(ctx, "k")
	require.Equal(t, "a", val)
}

func TestMemoryStoreSetNXAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, _ := s.SetNX(ctx, "k", "a", 20*time.Millisecond)
	require.True(t, created)

	time.Sleep(30 * time.Millisecond)
	created, _ = s.SetNX(ctx, "k", "b", time.Minute)
	require.True(t, created)
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := int64(1); i <= 5; i++ {
		n, err := s.Incr(ctx, "counter")
		require.NoError(t, err)
		require.Equal(t, i, n)
	}
}

func TestMemoryStoreDelIfEquals(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", "token-a", 0))

	deleted, err := s.DelIfEquals(ctx, "k", "token-b")
	require.NoError(t, err)
	require.False(t, deleted)
	_, ok, _ := s.Get(ctx, "k")
	require.True(t, ok)

	deleted, err = s.DelIfEquals(ctx, "k", "token-a")
	require.NoError(t, err)
	require.True(t, deleted)
	_, ok, _ = s.Get(ctx, "k")
	require.False(t, ok)

	// key 不存在时是安全的 no-op
	deleted, err = s.DelIfEquals(ctx, "k", "token-a")
	require.NoError(t, err)
	require.False(t, deleted)
}
