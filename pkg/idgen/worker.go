// Package idgen 生成全局唯一、随时间递增的 64 位 ID。
// 布局：高 32 位是相对自定义纪元的秒级时间戳，低 32 位是
// Redis 自增序列号，序列号按「业务 key + 日期」分桶。
package idgen

import (
	"context"
	"fmt"
	"time"

	"coupon_rush/pkg/redis"
)

const (
	// epochSecond 自定义纪元 2022-01-01T00:00:00Z。
	epochSecond int64 = 1640995200

	// sequenceBits 序列号占用的低位位数。
	sequenceBits = 32

	// dateLayout 计数器分桶用的日期格式，顺便支持按天统计单量。
	dateLayout = "2006:01:02"
)

// Worker 分布式 ID 生成器。多个进程共用同一个计数器，
// 唯一性由存储端的原子自增保证。
type Worker struct {
	store redis.Store
}

func NewWorker(store redis.Store) *Worker {
	return &Worker{store: store}
}

// NextID 为指定业务 key 生成下一个 ID。
// 时钟回拨时不保证唯一（已知限制，这里不做补偿）。
func (w *Worker) NextID(ctx context.Context, bizKey string) (uint64, error) {
	now := time.Now().UTC()
	timestamp := now.Unix() - epochSecond

	// 按日期分桶自增，单个 key 的计数量被限制在一天的单量内，
	// 现实吞吐下不会涨满低 32 位。
	seq, err := w.store.Incr(ctx, redis.CounterKey(bizKey, now.Format(dateLayout)))
	if err != nil {
		return 0, fmt.Errorf("idgen incr: %w", err)
	}

	return uint64(timestamp)<<sequenceBits | uint64(seq), nil
}

// Timestamp 从 ID 还原出生成时刻（秒精度），排查问题用。
func Timestamp(id uint64) time.Time {
	return time.Unix(int64(id>>sequenceBits)+epochSecond, 0).UTC()
}
