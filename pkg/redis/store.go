package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Store 抽象缓存存储需要的原子原语集合。
// 核心组件（缓存客户端、分布式锁、ID 生成器）只依赖这个接口，
// 线上走 Redis，单测可以换成进程内实现。
type Store interface {
	// Get 读取字符串值。key 不存在时 ok=false 且 err=nil。
	Get(ctx context.Context, key string) (val string, ok bool, err error)

	// Set 写入字符串值。ttl<=0 表示不设置存储层过期时间。
	Set(ctx context.Context, key, val string, ttl time.Duration) error

	// SetNX 仅当 key 不存在时写入，返回本次调用是否创建了该 key。
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error)

	// Incr 原子自增并返回自增后的值。
	Incr(ctx context.Context, key string) (int64, error)

	// Del 删除 key。key 不存在时不算错误。
	Del(ctx context.Context, key string) error

	// DelIfEquals 仅当存储值等于 val 时删除，整个比较+删除必须是
	// 单次原子操作。返回是否真的删除了。
	DelIfEquals(ctx context.Context, key, val string) (bool, error)
}

// luaDelIfEquals 仅当值匹配时才删除，避免误删他人持有的 key。
const luaDelIfEquals = `
local key = KEYS[1]
local expected = ARGV[1]
if redis.call('GET', key) == expected then
  return redis.call('DEL', key)
end
return 0
`

// RedisStore 基于 go-redis 的 Store 实现。
type RedisStore struct {
	rdb *rd.Client
}

var _ Store = (*RedisStore)(nil)

// NewStore 包装一个 go-redis 客户端。
func NewStore(rdb *rd.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, val, ttl).Result()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) DelIfEquals(ctx context.Context, key, val string) (bool, error) {
	n, err := s.rdb.Eval(ctx, luaDelIfEquals, []string{key}, val).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
