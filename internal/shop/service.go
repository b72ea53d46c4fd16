// Package shop 商铺查询服务，是缓存客户端的主要使用方。
// 读路径走逻辑过期策略（热点 key、读多写少），写路径先更新数据库
// 再删缓存。
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"coupon_rush/internal/model"
	"coupon_rush/pkg/cache"
	rediskey "coupon_rush/pkg/redis"
)

var ErrShopNotFound = errors.New("店铺不存在")

type Service struct {
	db         *gorm.DB
	cache      *cache.Client
	logicalTTL time.Duration
}

func NewService(db *gorm.DB, c *cache.Client, logicalTTL time.Duration) *Service {
	return &Service{db: db, cache: c, logicalTTL: logicalTTL}
}

// QueryByID 逻辑过期查询：过期返回旧值 + 后台异步重建，读侧不阻塞。
// 该策略要求 key 已被 WarmUp 预热，未预热的 id 一律视为不存在。
func (s *Service) QueryByID(ctx context.Context, id uint) (*model.Shop, error) {
	return cache.QueryLogicalExpire(ctx, s.cache, rediskey.ShopCachePrefix, uint64(id), s.logicalTTL, s.load)
}

// QueryByIDWithMutex 互斥锁策略的查询入口，自带穿透保护，
// 适合没有预热流程的低频路径。
func (s *Service) QueryByIDWithMutex(ctx context.Context, id uint) (*model.Shop, error) {
	return cache.QueryWithMutex(ctx, s.cache, rediskey.ShopCachePrefix, uint64(id), s.logicalTTL, s.load)
}

// load 回源函数：从数据库加载，不存在返回 (nil, nil)。
func (s *Service) load(ctx context.Context, id uint64) (*model.Shop, error) {
	var shop model.Shop
	if err := s.db.WithContext(ctx).First(&shop, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// WarmUp 把店铺数据带逻辑过期时间写入缓存，供逻辑过期策略读取。
func (s *Service) WarmUp(ctx context.Context, id uint) error {
	shop, err := s.load(ctx, uint64(id))
	if err != nil {
		return err
	}
	if shop == nil {
		return ErrShopNotFound
	}
	key := cache.Key(rediskey.ShopCachePrefix, uint64(id))
	return s.cache.SetLogical(ctx, key, shop, s.logicalTTL)
}

// Update 更新店铺：先写库再删缓存，下一次读触发重建。
func (s *Service) Update(ctx context.Context, shop *model.Shop) error {
	if shop.ID == 0 {
		return fmt.Errorf("shop id is required")
	}
	if err := s.db.WithContext(ctx).Model(&model.Shop{ID: shop.ID}).Updates(shop).Error; err != nil {
		return err
	}
	return s.cache.Delete(ctx, cache.Key(rediskey.ShopCachePrefix, uint64(shop.ID)))
}

// Create 新建店铺。
func (s *Service) Create(ctx context.Context, shop *model.Shop) error {
	return s.db.WithContext(ctx).Create(shop).Error
}
