package redis

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	val      string
	expireAt time.Time // 零值表示永不过期
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && e.expireAt.Before(now)
}

// MemoryStore 进程内 Store 实现，语义对齐 Redis：
// 惰性过期、SETNX、按值删除均在同一把锁下完成（等价于 Lua 的原子性）。
// 主要给单测和 demo 用，不做后台清理。
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

// getLocked 读取并顺手清掉已过期的 key，调用方持锁。
func (s *MemoryStore) getLocked(key string) (memoryEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.getLocked(key)
	if !ok {
		return "", false, nil
	}
	return e.val, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, val string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{val: val}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, val string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.getLocked(key); ok {
		return false, nil
	}
	e := memoryEntry{val: val}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if e, ok := s.getLocked(key); ok {
		parsed, err := strconv.ParseInt(e.val, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	// INCR 不改变原有过期时间
	e := s.data[key]
	e.val = strconv.FormatInt(n, 10)
	s.data[key] = e
	return n, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) DelIfEquals(_ context.Context, key, val string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.getLocked(key)
	if !ok || e.val != val {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}
