package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// IssueWelcome 为新注册的消费者发放欢迎券，优惠券与领取记录在同一个事务中创建
func (s *LifecycleService) IssueWelcome(ctx context.Context, consumerID int64) (coupon *domain.Coupon, err error) {
	ctx, span := s.tracer.Start(ctx, "service.IssueWelcome")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "issue_welcome", start, err) }()

	span.SetAttributes(attribute.Int64("consumer.id", consumerID))

	err = s.uow.Do(ctx, func(ctx context.Context, stores domain.Stores) error {
		var err error
		coupon, err = s.issueWithReceipt(ctx, stores, consumerID, domain.KindWelcome, s.policy.Welcome, s.clock())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("coupon_code", coupon.Code).Int64("consumer_id", consumerID).Msg("welcome coupon issued")
	return coupon, nil
}

// IssueWelcomeCouponByJoin 处理会员注册事件
func (s *LifecycleService) IssueWelcomeCouponByJoin(ctx context.Context, consumerID int64) error {
	_, err := s.IssueWelcome(ctx, consumerID)
	return err
}

// IssuePromotionBatch 创建一张带固定库存的促销券，不创建领取记录
func (s *LifecycleService) IssuePromotionBatch(ctx context.Context) (coupon *domain.Coupon, err error) {
	ctx, span := s.tracer.Start(ctx, "service.IssuePromotionBatch")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "issue_promotion_batch", start, err) }()

	err = s.uow.Do(ctx, func(ctx context.Context, stores domain.Stores) error {
		var err error
		coupon, err = s.issueCoupon(ctx, stores, domain.KindPromotion, s.policy.Promotion, s.policy.PromotionSupply, s.clock())
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("coupon.code", coupon.Code), attribute.Int64("coupon.issue_limit", coupon.IssueLimit))

	// 预占池只用于削峰，初始化失败时领取流程会直接走数据库
	if s.gate != nil {
		ttl := coupon.ExpiredAt.Sub(coupon.IssuedAt)
		if perr := s.gate.Prime(ctx, coupon.Code, coupon.IssueLimit, ttl); perr != nil {
			logger.Ctx(ctx).Warn().Err(perr).Str("coupon_code", coupon.Code).Msg("failed to prime promotion gate")
		}
	}

	logger.Ctx(ctx).Info().Str("coupon_code", coupon.Code).Int64("issue_limit", coupon.IssueLimit).Msg("promotion coupon batch issued")
	return coupon, nil
}

// IssuePromotionCoupons 是对外的促销批次发放入口
func (s *LifecycleService) IssuePromotionCoupons(ctx context.Context) error {
	_, err := s.IssuePromotionBatch(ctx)
	return err
}

// EnsureDailyPromotion 当天尚未发放促销券时发放一批，返回是否发生了发放
func (s *LifecycleService) EnsureDailyPromotion(ctx context.Context) (bool, error) {
	today := s.clock().In(s.location)
	latest, err := s.coupons.FindLatestByKind(ctx, domain.KindPromotion)
	switch {
	case err == nil && latest.IssuedOn(today):
		return false, nil
	case err != nil && !errors.Is(err, domain.ErrCouponNotFound):
		return false, err
	}
	if _, err := s.IssuePromotionBatch(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// IssueSubscriptionReward 为订阅扣款成功的会员发放 5 张小额券和 1 张大额券，
// 所有优惠券以订阅生效时间为起点
func (s *LifecycleService) IssueSubscriptionReward(ctx context.Context, consumerID int64, effectiveAt time.Time) (coupons []*domain.Coupon, err error) {
	ctx, span := s.tracer.Start(ctx, "service.IssueSubscriptionReward")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "issue_subscription_reward", start, err) }()

	span.SetAttributes(
		attribute.Int64("consumer.id", consumerID),
		attribute.String("subscription.effective_at", effectiveAt.Format(time.RFC3339)),
	)

	plan := []struct {
		kind  domain.CouponKind
		terms domain.CouponTerms
		count int
	}{
		{domain.KindSubscriptionTierA, s.policy.SubscriptionSmall, domain.SubscriptionSmallCount},
		{domain.KindSubscriptionTierB, s.policy.SubscriptionLarge, domain.SubscriptionLargeCount},
	}

	err = s.uow.Do(ctx, func(ctx context.Context, stores domain.Stores) error {
		coupons = coupons[:0]
		for _, p := range plan {
			for i := 0; i < p.count; i++ {
				c, err := s.issueWithReceipt(ctx, stores, consumerID, p.kind, p.terms, effectiveAt)
				if err != nil {
					return err
				}
				coupons = append(coupons, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("consumer_id", consumerID).Int("count", len(coupons)).Msg("subscription reward coupons issued")
	return coupons, nil
}

// GiveRegularPaymentsCoupon 处理订阅扣款成功事件
func (s *LifecycleService) GiveRegularPaymentsCoupon(ctx context.Context, payment *port.SubscriptionPaymentInfo) error {
	effectiveAt := payment.SuccessedAt
	if effectiveAt.IsZero() {
		effectiveAt = s.clock()
	}
	_, err := s.IssueSubscriptionReward(ctx, payment.ConsumerID, effectiveAt.UTC())
	return err
}
