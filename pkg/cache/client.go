// Package cache 实现通用的读穿透缓存客户端，支持三种一致性策略：
//   - QueryPassThrough：缓存空值解决缓存穿透
//   - QueryWithMutex：互斥锁重建解决缓存击穿（读侧短暂退避）
//   - QueryLogicalExpire：逻辑过期 + 异步重建解决缓存击穿（读侧零阻塞）
//
// 序列化统一为 JSON 字符串。某个 key 用哪种写入编码由首次写入路径决定，
// 读取方必须使用配套的查询策略。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"coupon_rush/pkg/lock"
	"coupon_rush/pkg/redis"
)

const (
	// nullTTL 空值哨兵的存储层过期时间，吸收对不存在 key 的重复穿透。
	nullTTL = 2 * time.Minute

	// rebuildLockTTL 重建锁的兜底过期时间，正常路径总是显式释放。
	rebuildLockTTL = 10 * time.Second

	// mutexRetryDelay / mutexMaxRetries 互斥锁策略中败者的退避参数：
	// 睡一小段时间后重读缓存，而不是自己再去回源。
	mutexRetryDelay = 50 * time.Millisecond
	mutexMaxRetries = 40
)

// ErrRebuildContention 表示互斥锁重建在重试上限内始终没等到缓存被填好。
var ErrRebuildContention = errors.New("cache: rebuild contention, retries exhausted")

// LoadFunc 回源函数：从数据源加载实体，不存在时返回 (nil, nil)。
// 可能被多个调用方对同一个 id 并发调用，要求幂等、无副作用。
type LoadFunc[T any] func(ctx context.Context, id uint64) (*T, error)

// logicalEnvelope 逻辑过期编码：过期时间戳内嵌在值里，
// 存储层不设 TTL，key 永不物理过期。
type logicalEnvelope struct {
	ExpireAt time.Time       `json:"expire_at"`
	Data     json.RawMessage `json:"data"`
}

// Client 读穿透缓存客户端。泛型查询入口是包级函数
// （方法不能带类型参数），Client 承载存储、重建池和写入原语。
type Client struct {
	store redis.Store
	pool  *RebuildPool
}

func New(store redis.Store, pool *RebuildPool) *Client {
	if pool == nil {
		pool = NewRebuildPool(10, 40)
	}
	return &Client{store: store, pool: pool}
}

// Key 拼出实体缓存的完整键名。
func Key(prefix string, id uint64) string {
	return redis.CacheKeyPrefix + prefix + strconv.FormatUint(id, 10)
}

// Set 原生编码写入：JSON 序列化后带存储层 TTL。
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.store.Set(ctx, key, string(b), ttl)
}

// SetLogical 逻辑过期编码写入：过期时间内嵌在值里，不设存储层 TTL。
func (c *Client) SetLogical(ctx context.Context, key string, value any, logicalTTL time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	env := logicalEnvelope{
		ExpireAt: time.Now().Add(logicalTTL),
		Data:     b,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache marshal envelope: %w", err)
	}
	return c.store.Set(ctx, key, string(payload), 0)
}

// Delete 删除缓存键，写路径更新数据源后用来失效旧缓存。
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.store.Del(ctx, key)
}

// QueryPassThrough 读穿透查询，用缓存空值解决缓存穿透：
// 回源查不到时写入短 TTL 的空串哨兵，后续对同一 id 的未命中
// 直接吃哨兵返回「不存在」，不再打到数据源。
// 并发的未命中之间不做互斥，低成本回源可以接受同时多次 load。
func QueryPassThrough[T any](ctx context.Context, c *Client, prefix string, id uint64, ttl time.Duration, load LoadFunc[T]) (*T, error) {
	key := Key(prefix, id)

	// 1 查缓存
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		// 命中空值哨兵：key 存在但值为空，直接返回不存在
		if raw == "" {
			return nil, nil
		}
		return decode[T](raw)
	}

	// 2 未命中，回源
	v, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		// 3 源头也没有：写空值哨兵防穿透
		if err := c.store.Set(ctx, key, "", nullTTL); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// 4 写回缓存
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

// QueryWithMutex 在穿透保护的基础上，用互斥锁解决缓存击穿：
// 未命中时只有抢到重建锁的调用方回源，其余调用方小睡后重读缓存。
// 抢到锁后会再查一次缓存（double-check），避免拿锁前一刻别人刚重建完。
func QueryWithMutex[T any](ctx context.Context, c *Client, prefix string, id uint64, ttl time.Duration, load LoadFunc[T]) (*T, error) {
	key := Key(prefix, id)

	for attempt := 0; ; attempt++ {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			if raw == "" {
				return nil, nil
			}
			return decode[T](raw)
		}

		mu := lock.New(c.store, "rebuild:"+prefix+strconv.FormatUint(id, 10))
		won, err := mu.TryLock(ctx, rebuildLockTTL)
		if err != nil {
			return nil, err
		}
		if won {
			return rebuildWithMutex(ctx, c, mu, key, id, ttl, load)
		}

		// 没抢到锁：小睡后重读缓存，不递归重建
		if attempt >= mutexMaxRetries {
			return nil, ErrRebuildContention
		}
		select {
		case <-time.After(mutexRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// rebuildWithMutex 持锁重建缓存，所有出口路径都会释放锁。
func rebuildWithMutex[T any](ctx context.Context, c *Client, mu *lock.Mutex, key string, id uint64, ttl time.Duration, load LoadFunc[T]) (*T, error) {
	defer func() {
		if err := mu.Unlock(ctx); err != nil {
			logrus.Warnf("cache: release rebuild lock %s: %v", mu.Key(), err)
		}
	}()

	// double-check：锁释放到本协程拿锁之间，缓存可能已被填好
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		if raw == "" {
			return nil, nil
		}
		return decode[T](raw)
	}

	v, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if err := c.store.Set(ctx, key, "", nullTTL); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

// QueryLogicalExpire 逻辑过期查询，读侧永不阻塞：
//   - key 不存在直接返回不存在（该策略假设缓存已由预热写入，不自带穿透保护）
//   - 未过期直接返回
//   - 已过期先把旧值返回给调用方（短暂脏读换取零阻塞），同时尝试抢重建锁；
//     抢到则把「回源 → SetLogical → 释放锁」作为任务丢给后台池，
//     没抢到说明重建已在路上，直接返回旧值，不做二次新鲜度检查。
func QueryLogicalExpire[T any](ctx context.Context, c *Client, prefix string, id uint64, rebuildTTL time.Duration, load LoadFunc[T]) (*T, error) {
	key := Key(prefix, id)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var env logicalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("cache decode envelope: %w", err)
	}
	v, err := decode[T](string(env.Data))
	if err != nil {
		return nil, err
	}

	if env.ExpireAt.After(time.Now()) {
		return v, nil
	}

	// 已过期：尝试成为本轮唯一的重建者
	mu := lock.New(c.store, "rebuild:"+prefix+strconv.FormatUint(id, 10))
	won, err := mu.TryLock(ctx, rebuildLockTTL)
	if err != nil {
		// 存储抖动时退化成纯脏读，旧值依然可用
		logrus.Warnf("cache: try rebuild lock %s: %v", mu.Key(), err)
		return v, nil
	}
	if won {
		submitted := c.pool.Submit(func() {
			rebuildLogical(c, key, id, rebuildTTL, load, mu)
		})
		if !submitted {
			// 池子饱和，放弃本次重建机会；锁必须立刻还回去，
			// 否则后续读者在锁 TTL 内都无法触发重建
			if err := mu.Unlock(ctx); err != nil {
				logrus.Warnf("cache: release rebuild lock %s: %v", mu.Key(), err)
			}
		}
	}
	return v, nil
}

// rebuildLogical 后台重建任务体。请求上下文随调用方结束，
// 这里使用独立的 Background 上下文，锁在任何结局下都会释放。
func rebuildLogical[T any](c *Client, key string, id uint64, rebuildTTL time.Duration, load LoadFunc[T], mu *lock.Mutex) {
	ctx := context.Background()
	defer func() {
		if err := mu.Unlock(ctx); err != nil {
			logrus.Warnf("cache: release rebuild lock %s: %v", mu.Key(), err)
		}
	}()

	fresh, err := load(ctx, id)
	if err != nil {
		logrus.Warnf("cache: rebuild load key=%s: %v", key, err)
		return
	}
	if fresh == nil {
		// 源头数据已被删除，逻辑过期的 key 不会自己消失，这里主动清掉
		if err := c.store.Del(ctx, key); err != nil {
			logrus.Warnf("cache: rebuild delete key=%s: %v", key, err)
		}
		return
	}
	if err := c.SetLogical(ctx, key, fresh, rebuildTTL); err != nil {
		logrus.Warnf("cache: rebuild write key=%s: %v", key, err)
	}
}

func decode[T any](raw string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &v, nil
}
