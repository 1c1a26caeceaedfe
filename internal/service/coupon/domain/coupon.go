// internal/service/coupon/domain/coupon.go
package domain

import "time"

// CouponKind 定义了优惠券的类别。
type CouponKind string

const (
	KindWelcome           CouponKind = "WELCOME"
	KindPromotion         CouponKind = "PROMOTION"
	KindSubscriptionTierA CouponKind = "SUBSCRIPTION_TIER_A" // 订阅小额券
	KindSubscriptionTierB CouponKind = "SUBSCRIPTION_TIER_B" // 订阅大额券
)

// Coupon 是一张优惠券的模板。
// 发放后只有 IssueLimit 会变化，其余字段视为不可变。
type Coupon struct {
	Code           string
	Kind           CouponKind
	DiscountAmount int64
	IssueLimit     int64
	IssuedAt       time.Time
	ExpiredAt      time.Time
	MinOrderPrice  int64
}

// IsValidAt 当且仅当 at 严格早于 ExpiredAt 时返回 true。
func (c *Coupon) IsValidAt(at time.Time) bool {
	return at.Before(c.ExpiredAt)
}

// IsSoldOut 表示可发放库存已经耗尽。
func (c *Coupon) IsSoldOut() bool {
	return c.IssueLimit <= 0
}

// IssuedOn 判断优惠券是否在 at 所在的自然日内发放（按 at 的时区）。
func (c *Coupon) IssuedOn(at time.Time) bool {
	y1, m1, d1 := c.IssuedAt.In(at.Location()).Date()
	y2, m2, d2 := at.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
