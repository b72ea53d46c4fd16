package model

import "time"

// VoucherOrder 秒杀订单。主键由 ID 生成器分配，不用自增。
// (user_id, voucher_id) 唯一索引是「一人一单」的最后一道防线，
// 即使应用层校验被并发绕过，数据库也会拒绝第二单。
// 订单只创建，不更新、不删除。
type VoucherOrder struct {
	ID        uint64    `gorm:"primarykey;autoIncrement:false" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID    int64 `gorm:"not null;uniqueIndex:idx_user_voucher" json:"user_id"`
	VoucherID uint  `gorm:"not null;uniqueIndex:idx_user_voucher" json:"voucher_id"`
	PayValue  int64 `gorm:"not null" json:"pay_value"` // 成交价，单位：分
}

func (VoucherOrder) TableName() string { return "voucher_orders" }
