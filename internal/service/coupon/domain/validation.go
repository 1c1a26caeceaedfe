package domain

import "time"

// Validate 判断一张领取记录能否用于当前订单。
// 规则按固定顺序执行，第一个失败的规则决定返回的错误：
//  1. 已使用
//  2. 已过期（仅当 now < ExpiredAt 时有效）
//  3. 声明的折扣金额与优惠券不一致
//  4. 订单金额低于最低消费
//
// 该函数没有副作用，也不做任何 I/O。
func Validate(receipt *CouponReceipt, coupon *Coupon, orderAmount, claimedDiscount int64, now time.Time) error {
	if receipt.IsUse {
		return ErrAlreadyUsedCoupon
	}
	if !coupon.IsValidAt(now) {
		return ErrCouponExpired
	}
	if claimedDiscount != coupon.DiscountAmount {
		return ErrDiscountAmountMismatch
	}
	if orderAmount < coupon.MinOrderPrice {
		return ErrInsufficientOrderAmount
	}
	return nil
}
