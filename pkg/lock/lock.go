// Package lock 提供基于共享缓存存储的分布式互斥锁。
// 锁值是每个持有者独有的 token，只有写入 token 的一方才能释放，
// 避免「自己的锁超时后误删别人刚拿到的锁」。
package lock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"coupon_rush/pkg/redis"
)

const keyPrefix = "coupon_rush:lock:"

// Mutex 绑定一个锁名的分布式互斥锁。
// 同名锁在任意时刻最多有一个未过期的持有者；TTL 只是持有者崩溃后的
// 兜底，正常路径必须显式 Unlock。
type Mutex struct {
	store redis.Store
	key   string
	token string
}

// New 创建一个锁实例。token 在创建时生成，同一个 Mutex 的多次
// TryLock/Unlock 共享同一 token。
func New(store redis.Store, name string) *Mutex {
	return &Mutex{
		store: store,
		key:   keyPrefix + name,
		token: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// TryLock 单次尝试加锁，不阻塞、不重试。
// 返回 false 表示锁被别人持有，这不是错误，由调用方决定快速失败还是退避重试。
func (m *Mutex) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return m.store.SetNX(ctx, m.key, m.token, ttl)
}

// Unlock 释放锁。比较 token 和删除在存储端是同一个原子操作，
// 锁已过期或被他人持有时是安全的 no-op。
func (m *Mutex) Unlock(ctx context.Context) error {
	_, err := m.store.DelIfEquals(ctx, m.key, m.token)
	return err
}

// Key 返回锁在存储中的完整键名。
func (m *Mutex) Key() string {
	return m.key
}
