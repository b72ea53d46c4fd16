package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coupon_rush/internal/model"
)

// Consumer 消费下单事件并写入审计表 order_events。
type Consumer struct {
	r  *kafka.Reader
	db *gorm.DB
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db: db,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg OrderMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			logrus.Warnf("consumer unmarshal: %v", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			logrus.Warnf("consumer invalid message: %v", err)
			continue
		}

		event := &model.OrderEvent{
			OrderID:   msg.OrderID,
			UserID:    msg.UserID,
			VoucherID: msg.VoucherID,
		}

		if err := c.db.Create(event).Error; err != nil {
			// 幂等：重复消息导致 UNIQUE 冲突，直接当作成功
			if errorsLikeUnique(err) {
				continue
			}
			logrus.Warnf("consumer db create: %v", err)
			continue
		}
	}
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}
