package interfaces

import (
	"context"

	"nexus-coupon/internal/service/coupon/application"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// CouponCommands 是入站适配器依赖的写侧用例，由 application.LifecycleService 实现
type CouponCommands interface {
	IssueWelcome(ctx context.Context, consumerID int64) (*domain.Coupon, error)
	IssueWelcomeCouponByJoin(ctx context.Context, consumerID int64) error
	IssuePromotionCoupons(ctx context.Context) error
	GiveRegularPaymentsCoupon(ctx context.Context, payment *port.SubscriptionPaymentInfo) error

	DeductCoupon(ctx context.Context, order *port.OrderInfo) error
	RollbackCouponUsage(ctx context.Context, order *port.OrderInfo) error
	RefundCouponByOrderCancel(ctx context.Context, cancel *port.OrderCancelInfo) error
	RecoverCouponByFailedOrderCancel(ctx context.Context, cancel *port.OrderCancelInfo) error

	PrecheckPromotion(ctx context.Context, consumerID int64) (domain.PrecheckStatus, error)
	ClaimPromotion(ctx context.Context, consumerID int64) (string, domain.GrantOutcome, error)
}

// CouponQueries 是读侧用例，由 application.QueryService 实现
type CouponQueries interface {
	History(ctx context.Context, consumerID int64, page, size int, search string) (*application.CouponPage, error)
	AvailableForOrder(ctx context.Context, consumerID int64, totalAmount int64) (*application.AvailableCouponsSummary, error)
	SubscriptionBenefit(ctx context.Context, consumerID int64) (*application.SubscriptionBenefit, error)
}

var (
	_ CouponCommands = (*application.LifecycleService)(nil)
	_ CouponQueries  = (*application.QueryService)(nil)
)
