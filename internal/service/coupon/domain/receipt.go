package domain

import (
	"fmt"
	"time"
)

// ReceiptKey 是领取记录的复合主键。
// 优惠券通过 code 查询，而不是以指针形式嵌入。
type ReceiptKey struct {
	CouponCode string
	ConsumerID int64
}

func (k ReceiptKey) String() string {
	return fmt.Sprintf("%s/%d", k.CouponCode, k.ConsumerID)
}

// ReceiptState 是领取记录在状态机中的状态。
type ReceiptState string

const (
	StateAvailable ReceiptState = "AVAILABLE"
	StateUsed      ReceiptState = "USED"
)

// CouponReceipt 记录某个消费者持有某张优惠券。
type CouponReceipt struct {
	Key       ReceiptKey
	IsUse     bool
	CreatedAt time.Time
}

// NewReceipt 创建一张可用的领取记录。
func NewReceipt(couponCode string, consumerID int64, at time.Time) *CouponReceipt {
	return &CouponReceipt{
		Key:       ReceiptKey{CouponCode: couponCode, ConsumerID: consumerID},
		IsUse:     false,
		CreatedAt: at,
	}
}

func (r *CouponReceipt) State() ReceiptState {
	if r.IsUse {
		return StateUsed
	}
	return StateAvailable
}

// Deduct 将记录置为已使用，已使用的记录不能再次扣减。
func (r *CouponReceipt) Deduct() error {
	if r.IsUse {
		return ErrAlreadyUsedCoupon
	}
	r.IsUse = true
	return nil
}

// Rollback 无条件恢复为可用，用于订单失败或取消后的补偿。
func (r *CouponReceipt) Rollback() {
	r.IsUse = false
}

// Recover 无条件恢复为已使用，用于取消订单失败后的补偿。
func (r *CouponReceipt) Recover() {
	r.IsUse = true
}
