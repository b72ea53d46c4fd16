package model

import "time"

// OrderEvent 下单事件的审计落库，由 Kafka 消费者写入。
// order_id 唯一索引保证消息重复投递时幂等。
type OrderEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID   uint64 `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID    int64  `gorm:"not null;index" json:"user_id"`
	VoucherID uint   `gorm:"not null;index" json:"voucher_id"`
}

func (OrderEvent) TableName() string { return "order_events" }
