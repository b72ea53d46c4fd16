// Package voucher 优惠券的展示查询与创建。
// 详情查询走读穿透 + 空值缓存；注意缓存里的 Stock 只用于展示，
// 秒杀准入永远直连数据库读新鲜库存。
package voucher

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"coupon_rush/internal/model"
	"coupon_rush/pkg/cache"
	rediskey "coupon_rush/pkg/redis"
)

type Service struct {
	db    *gorm.DB
	cache *cache.Client
	ttl   time.Duration
}

func NewService(db *gorm.DB, c *cache.Client, ttl time.Duration) *Service {
	return &Service{db: db, cache: c, ttl: ttl}
}

// QueryByID 读穿透查询券详情，不存在的 id 会被空值哨兵吸收。
func (s *Service) QueryByID(ctx context.Context, id uint) (*model.Voucher, error) {
	return cache.QueryPassThrough(ctx, s.cache, rediskey.VoucherCachePrefix, uint64(id), s.ttl, s.load)
}

func (s *Service) load(ctx context.Context, id uint64) (*model.Voucher, error) {
	var v model.Voucher
	if err := s.db.WithContext(ctx).First(&v, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// Create 新建秒杀券，并清掉可能存在的空值哨兵，
// 否则哨兵 TTL 内新券会查不到。
func (s *Service) Create(ctx context.Context, v *model.Voucher) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return err
	}
	return s.cache.Delete(ctx, cache.Key(rediskey.VoucherCachePrefix, uint64(v.ID)))
}
