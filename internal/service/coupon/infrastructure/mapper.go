package infrastructure

import "nexus-coupon/internal/service/coupon/domain"

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(m *CouponModel) *domain.Coupon {
	if m == nil {
		return nil
	}
	return &domain.Coupon{
		Code:           m.CouponCode,
		Kind:           m.CouponName,
		DiscountAmount: m.DiscountAmount,
		IssueLimit:     m.IssueLimit,
		IssuedAt:       m.IssuedAt,
		ExpiredAt:      m.ExpiredAt,
		MinOrderPrice:  m.MinOrderPrice,
	}
}

// FromDomainCoupon 将领域模型转换为数据库模型
func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	return &CouponModel{
		CouponCode:     c.Code,
		CouponName:     c.Kind,
		DiscountAmount: c.DiscountAmount,
		IssueLimit:     c.IssueLimit,
		IssuedAt:       c.IssuedAt,
		ExpiredAt:      c.ExpiredAt,
		MinOrderPrice:  c.MinOrderPrice,
	}
}

func ToDomainReceipt(m *CouponReceiptModel) *domain.CouponReceipt {
	if m == nil {
		return nil
	}
	return &domain.CouponReceipt{
		Key:       domain.ReceiptKey{CouponCode: m.CouponCode, ConsumerID: m.ConsumerID},
		IsUse:     m.IsUse,
		CreatedAt: m.CreatedAt,
	}
}

func FromDomainReceipt(r *domain.CouponReceipt) *CouponReceiptModel {
	return &CouponReceiptModel{
		CouponCode: r.Key.CouponCode,
		ConsumerID: r.Key.ConsumerID,
		IsUse:      r.IsUse,
		CreatedAt:  r.CreatedAt,
	}
}

// toReceiptView 需要 Coupon 关联已被预加载
func toReceiptView(m *CouponReceiptModel) domain.ReceiptView {
	return domain.ReceiptView{
		Receipt: *ToDomainReceipt(m),
		Coupon:  *ToDomainCoupon(&m.Coupon),
	}
}
