package model

import (
	"time"

	"gorm.io/gorm"
)

// Voucher 秒杀优惠券：限量库存 + 秒杀时间窗。
// Stock 只允许通过条件更新 stock = stock - 1 WHERE stock > 0 扣减，
// 禁止应用层读出来再写回去。
type Voucher struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ShopID      uint      `gorm:"not null;index" json:"shop_id"`
	Title       string    `gorm:"size:128;not null" json:"title"`
	PayValue    int64     `gorm:"not null" json:"pay_value"`    // 秒杀价，单位：分
	ActualValue int64     `gorm:"not null" json:"actual_value"` // 券面值，单位：分
	Stock       int64     `gorm:"not null;default:0" json:"stock"`
	BeginTime   time.Time `gorm:"not null" json:"begin_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
}

func (Voucher) TableName() string { return "vouchers" }
