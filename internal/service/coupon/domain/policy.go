package domain

import (
	"fmt"
	"time"
)

// 订阅奖励的固定发放策略：5 张小额券 + 1 张大额券。
const (
	SubscriptionSmallCount = 5
	SubscriptionLargeCount = 1
)

// CouponTerms 描述一类优惠券的面额、门槛与有效期。
type CouponTerms struct {
	DiscountAmount int64
	MinOrderPrice  int64
	ValidMonths    int
	ValidDays      int
}

// ExpiryFrom 计算从 at 开始的过期时间。
func (t CouponTerms) ExpiryFrom(at time.Time) time.Time {
	return at.AddDate(0, t.ValidMonths, t.ValidDays)
}

func (t CouponTerms) validate(name string) error {
	if t.DiscountAmount < 0 || t.MinOrderPrice < 0 {
		return fmt.Errorf("%s: amounts must be non-negative", name)
	}
	if t.ValidMonths < 0 || t.ValidDays < 0 || t.ValidMonths+t.ValidDays == 0 {
		return fmt.Errorf("%s: validity period must be positive", name)
	}
	return nil
}

// IssuePolicy 汇总了所有发放路径使用的规则。
type IssuePolicy struct {
	Welcome           CouponTerms
	Promotion         CouponTerms
	PromotionSupply   int64
	SubscriptionSmall CouponTerms
	SubscriptionLarge CouponTerms
}

// DefaultIssuePolicy 返回默认发放规则。
func DefaultIssuePolicy() IssuePolicy {
	return IssuePolicy{
		Welcome:           CouponTerms{DiscountAmount: 3000, MinOrderPrice: 15000, ValidDays: 30},
		Promotion:         CouponTerms{DiscountAmount: 3000, MinOrderPrice: 20000, ValidDays: 7},
		PromotionSupply:   100,
		SubscriptionSmall: CouponTerms{DiscountAmount: 1000, MinOrderPrice: 10000, ValidMonths: 1},
		SubscriptionLarge: CouponTerms{DiscountAmount: 5000, MinOrderPrice: 20000, ValidMonths: 1},
	}
}

// Validate 在启动时校验配置出来的规则。
func (p IssuePolicy) Validate() error {
	if p.PromotionSupply <= 0 {
		return fmt.Errorf("promotion supply must be positive, got %d", p.PromotionSupply)
	}
	for name, t := range map[string]CouponTerms{
		"welcome":            p.Welcome,
		"promotion":          p.Promotion,
		"subscription_small": p.SubscriptionSmall,
		"subscription_large": p.SubscriptionLarge,
	} {
		if err := t.validate(name); err != nil {
			return err
		}
	}
	return nil
}

// NewCoupon 按给定规则构造一张优惠券。
func NewCoupon(code string, kind CouponKind, terms CouponTerms, issueLimit int64, issuedAt time.Time) *Coupon {
	return &Coupon{
		Code:           code,
		Kind:           kind,
		DiscountAmount: terms.DiscountAmount,
		IssueLimit:     issueLimit,
		IssuedAt:       issuedAt,
		ExpiredAt:      terms.ExpiryFrom(issuedAt),
		MinOrderPrice:  terms.MinOrderPrice,
	}
}
