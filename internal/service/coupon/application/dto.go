package application

import (
	"time"

	"nexus-coupon/internal/service/coupon/domain"
)

// CouponInfo 是单张优惠券的查询结果
type CouponInfo struct {
	CouponCode     string            `json:"couponCode"`
	CouponName     domain.CouponKind `json:"couponName"`
	DiscountAmount int64             `json:"discountAmount"`
	ExpiredAt      time.Time         `json:"expiredAt"`
	MinOrderPrice  int64             `json:"minOrderPrice"`
}

func toCouponInfo(c *domain.Coupon) CouponInfo {
	return CouponInfo{
		CouponCode:     c.Code,
		CouponName:     c.Kind,
		DiscountAmount: c.DiscountAmount,
		ExpiredAt:      c.ExpiredAt,
		MinOrderPrice:  c.MinOrderPrice,
	}
}

// CouponPage 是分页后的优惠券列表
type CouponPage struct {
	Content       []CouponInfo `json:"content"`
	Page          int          `json:"page"`
	Size          int          `json:"size"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
}

// AvailableCouponsSummary 是下单时可用优惠券的数量与明细
type AvailableCouponsSummary struct {
	AvailableCount int          `json:"availableCount"`
	Coupons        []CouponInfo `json:"coupons"`
}

// SubscriptionBenefit 是会员累计使用优惠券获得的优惠总额
type SubscriptionBenefit struct {
	CouponUse int64 `json:"couponUse"`
}

// PromotionStatus 是预检查结果的对外形态
type PromotionStatus struct {
	IsSoldOut  bool `json:"isSoldOut"`
	IsOpen     bool `json:"isOpen"`
	IsReceived bool `json:"isReceived"`
}

func ToPromotionStatus(s domain.PrecheckStatus) *PromotionStatus {
	return &PromotionStatus{IsSoldOut: s.SoldOut, IsOpen: s.Open, IsReceived: s.AlreadyReceived}
}

// GrantResult 是领取促销券的结果
type GrantResult struct {
	Outcome    string `json:"outcome"`
	CouponCode string `json:"couponCode,omitempty"`
}
