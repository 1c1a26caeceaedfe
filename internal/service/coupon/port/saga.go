package port

import (
	"context"
	"time"
)

// OrderInfo 是订单服务在下单链路中传递的优惠券信息。
// CouponCode 为空表示本单未使用优惠券。
type OrderInfo struct {
	OrderID      string  `json:"orderId"`
	ConsumerID   int64   `json:"consumerId"`
	CouponCode   *string `json:"couponCode,omitempty"`
	CouponAmount int64   `json:"couponAmount"`
	TotalAmount  int64   `json:"totalAmount"`
}

// OrderCancelInfo 是取消订单链路中传递的优惠券信息。
type OrderCancelInfo struct {
	OrderID      string  `json:"orderId"`
	ConsumerID   int64   `json:"consumerId"`
	CouponCode   *string `json:"couponCode,omitempty"`
	CouponAmount int64   `json:"couponAmount"`
	TotalAmount  int64   `json:"totalAmount"`
}

// SubscriptionPaymentInfo 是订阅扣款成功的事件。
type SubscriptionPaymentInfo struct {
	ConsumerID  int64     `json:"consumerId"`
	SuccessedAt time.Time `json:"successedAt"`
}

// SagaPublisher 是编排式 SAGA 的出站端口：
// 扣券成功后推进到下一步，失败时通知上一步补偿。
type SagaPublisher interface {
	Forward(ctx context.Context, order *OrderInfo) error
	Compensate(ctx context.Context, order *OrderInfo, reason error) error
}
