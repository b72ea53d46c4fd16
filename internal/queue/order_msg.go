package queue

import "fmt"

// OrderMessage 是订单创建成功后发出的事件。
// 订单本身在请求内同步落库，这条消息只做事后广播（审计、通知等）。
type OrderMessage struct {
	OrderID   uint64 `json:"order_id"`
	UserID    int64  `json:"user_id"`
	VoucherID uint   `json:"voucher_id"`
	PayValue  int64  `json:"pay_value"` // 分
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m OrderMessage) Validate() error {
	if m.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if m.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if m.VoucherID == 0 {
		return fmt.Errorf("voucher_id is required")
	}
	if m.PayValue < 0 {
		return fmt.Errorf("pay_value must be >= 0")
	}
	return nil
}
