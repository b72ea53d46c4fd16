// Package seckill 实现秒杀下单的准入控制：
// 时间窗校验 → 库存快查 → 一人一单分布式锁 → 事务内
// 「查重 + 条件扣减 + 建单」→ 提交后释放锁。
//
// 不超卖的正确性完全由条件更新 stock = stock - 1 WHERE stock > 0 保证，
// 锁只负责同一用户的串行化，所以锁粒度可以收窄到 userID，
// 不同用户抢同一张券依然全并发。
package seckill

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coupon_rush/internal/model"
	"coupon_rush/internal/queue"
	"coupon_rush/pkg/idgen"
	"coupon_rush/pkg/lock"
	rediskey "coupon_rush/pkg/redis"
)

// 业务拒绝原因。全部是预期内的终态，调用方用 errors.Is 区分后
// 映射成用户可见的提示，不做自动重试。
var (
	ErrVoucherNotFound  = errors.New("优惠券不存在")
	ErrNotStarted       = errors.New("秒杀尚未开始")
	ErrEnded            = errors.New("秒杀已经结束")
	ErrSoldOut          = errors.New("库存不足")
	ErrDuplicateRequest = errors.New("已有下单请求在处理中，请勿重复提交")
	ErrAlreadyPurchased = errors.New("该券限购一张，不可重复下单")
)

// userLockTTL 一人一单锁的兜底过期时间。正常路径在事务提交后显式释放，
// TTL 只覆盖进程崩溃的场景。
const userLockTTL = 10 * time.Second

// orderBizKey ID 生成器的业务 key。
const orderBizKey = "order"

// EventPublisher 下单成功后的事件出口（Redis Stream outbox）。
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, msg queue.OrderMessage) error
}

// Service 秒杀订单协调器。每次请求完整重算一遍状态机，不保存会话状态。
type Service struct {
	db     *gorm.DB
	store  rediskey.Store
	ids    *idgen.Worker
	events EventPublisher // 可为 nil（测试或未接事件管道时）
}

func NewService(db *gorm.DB, store rediskey.Store, ids *idgen.Worker, events EventPublisher) *Service {
	return &Service{db: db, store: store, ids: ids, events: events}
}

// SeckillVoucher 秒杀下单，成功返回新订单 ID。
// 用户身份由调用方从请求 context 显式取出后传入。
func (s *Service) SeckillVoucher(ctx context.Context, userID int64, voucherID uint) (uint64, error) {
	// 1 实时读库存源头。这里不走通用缓存：库存正确性要求新鲜读。
	var voucher model.Voucher
	if err := s.db.WithContext(ctx).First(&voucher, voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrVoucherNotFound
		}
		return 0, err
	}

	// 2/3 时间窗校验
	now := time.Now()
	if now.Before(voucher.BeginTime) {
		return 0, ErrNotStarted
	}
	if now.After(voucher.EndTime) {
		return 0, ErrEnded
	}

	// 4 库存快查。只是提前拦截，权威判定在事务里的条件扣减。
	if voucher.Stock < 1 {
		return 0, ErrSoldOut
	}

	// 5 一人一单锁，单次尝试不排队：秒杀场景下重复提交直接拒绝，
	// 避免请求在锁上堆积拉长尾延迟。
	mu := lock.New(s.store, rediskey.OrderLockName(userID))
	won, err := mu.TryLock(ctx, userLockTTL)
	if err != nil {
		return 0, err
	}
	if !won {
		return 0, ErrDuplicateRequest
	}
	// 锁必须在事务提交之后才释放：先放锁会让同一用户的下一个请求
	// 在本事务的插入可见之前通过查重，破坏一人一单。
	// defer 在 createOrder 返回（事务已提交或回滚）后才执行，顺序正确。
	defer func() {
		if err := mu.Unlock(ctx); err != nil {
			logrus.Warnf("seckill: release order lock user=%d: %v", userID, err)
		}
	}()

	// 6/7 事务内完成查重、扣减、建单
	orderID, err := s.createOrder(ctx, userID, &voucher)
	if err != nil {
		return 0, err
	}

	// 8 提交成功后异步广播事件，失败只记日志，不影响下单结果
	s.publishOrderCreated(ctx, orderID, userID, &voucher)
	return orderID, nil
}

// createOrder 在单个数据库事务内执行查重、条件扣减与订单插入，
// 三者要么全部生效要么全部回滚，崩溃不会留下「扣了库存没订单」。
func (s *Service) createOrder(ctx context.Context, userID int64, voucher *model.Voucher) (uint64, error) {
	var orderID uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 6a 一人一单查重
		var count int64
		if err := tx.Model(&model.VoucherOrder{}).
			Where("user_id = ? AND voucher_id = ?", userID, voucher.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyPurchased
		}

		// 6b 条件扣减，WHERE stock > 0 是防超卖的唯一权威机制。
		// 影响 0 行说明库存在快查之后被并发抢空，属预期竞态，不是缺陷。
		res := tx.Model(&model.Voucher{}).
			Where("id = ? AND stock > 0", voucher.ID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSoldOut
		}

		// 6c 生成订单 ID 并落单
		id, err := s.ids.NextID(ctx, orderBizKey)
		if err != nil {
			return err
		}
		order := &model.VoucherOrder{
			ID:        id,
			UserID:    userID,
			VoucherID: voucher.ID,
			PayValue:  voucher.PayValue,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

func (s *Service) publishOrderCreated(ctx context.Context, orderID uint64, userID int64, voucher *model.Voucher) {
	if s.events == nil {
		return
	}
	msg := queue.OrderMessage{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucher.ID,
		PayValue:  voucher.PayValue,
	}
	if err := s.events.PublishOrderCreated(ctx, msg); err != nil {
		logrus.Warnf("seckill: publish order created order=%d: %v", orderID, err)
	}
}

// GetOrder 按订单 ID 查询。不存在时返回 (nil, nil)。
func (s *Service) GetOrder(ctx context.Context, orderID uint64) (*model.VoucherOrder, error) {
	var order model.VoucherOrder
	err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetStock 实时读取券的剩余库存（直连 DB，不走缓存）。
func (s *Service) GetStock(ctx context.Context, voucherID uint) (int64, error) {
	var voucher model.Voucher
	if err := s.db.WithContext(ctx).Select("stock").First(&voucher, voucherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrVoucherNotFound
		}
		return 0, err
	}
	return voucher.Stock, nil
}
