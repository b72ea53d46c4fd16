package queue

import (
	"context"
	"strconv"

	rd "github.com/redis/go-redis/v9"
)

// StreamPublisher 把下单事件写进 Redis Stream（outbox）。
// 请求路径上只付一次 XADD 的代价，转发 Kafka 的重活交给 Relay。
type StreamPublisher struct {
	rdb    *rd.Client
	stream string
}

func NewStreamPublisher(rdb *rd.Client, stream string) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: stream}
}

// PublishOrderCreated 追加一条下单事件。
func (p *StreamPublisher) PublishOrderCreated(ctx context.Context, msg OrderMessage) error {
	return p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"order_id":   strconv.FormatUint(msg.OrderID, 10),
			"user_id":    strconv.FormatInt(msg.UserID, 10),
			"voucher_id": strconv.FormatUint(uint64(msg.VoucherID), 10),
			"pay_value":  strconv.FormatInt(msg.PayValue, 10),
		},
	}).Err()
}
