package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/pkg/metrics"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// PrecheckPromotion 在领取前报告活动是否开放、是否售罄、该消费者是否已领取
func (s *LifecycleService) PrecheckPromotion(ctx context.Context, consumerID int64) (status domain.PrecheckStatus, err error) {
	ctx, span := s.tracer.Start(ctx, "service.PrecheckPromotion")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "precheck_promotion", start, err) }()

	span.SetAttributes(attribute.Int64("consumer.id", consumerID))

	now := s.clock()
	open, err := s.window.IsOpen(now)
	if err != nil {
		return status, err
	}

	coupon, err := s.coupons.FindLatestByKind(ctx, domain.KindPromotion)
	if errors.Is(err, domain.ErrCouponNotFound) {
		// 还没有发放过促销券，视为未开放
		return status, nil
	}
	if err != nil {
		return status, err
	}

	status.Open = open && coupon.IsValidAt(now)
	status.SoldOut = coupon.IsSoldOut()

	_, err = s.receipts.FindByKey(ctx, domain.ReceiptKey{CouponCode: coupon.Code, ConsumerID: consumerID})
	switch {
	case err == nil:
		status.AlreadyReceived = true
	case errors.Is(err, domain.ErrReceiptNotFound):
	default:
		return domain.PrecheckStatus{}, err
	}

	span.SetAttributes(
		attribute.Bool("promotion.open", status.Open),
		attribute.Bool("promotion.sold_out", status.SoldOut),
		attribute.Bool("promotion.already_received", status.AlreadyReceived),
	)
	return status, nil
}

// currentPromotion 返回当前开放中的促销券，不开放时返回 ErrPromotionNotOpen
func (s *LifecycleService) currentPromotion(ctx context.Context) (*domain.Coupon, error) {
	now := s.clock()
	open, err := s.window.IsOpen(now)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, domain.ErrPromotionNotOpen
	}
	coupon, err := s.coupons.FindLatestByKind(ctx, domain.KindPromotion)
	if errors.Is(err, domain.ErrCouponNotFound) {
		return nil, domain.ErrPromotionNotOpen
	}
	if err != nil {
		return nil, err
	}
	if !coupon.IsValidAt(now) {
		return nil, domain.ErrPromotionNotOpen
	}
	return coupon, nil
}

// ClaimPromotion 为消费者领取当前的促销券
func (s *LifecycleService) ClaimPromotion(ctx context.Context, consumerID int64) (string, domain.GrantOutcome, error) {
	coupon, err := s.currentPromotion(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("consumer_id", consumerID).Msg("promotion claim rejected")
		return "", 0, err
	}
	outcome, err := s.GrantPromotionUnit(ctx, coupon.Code, consumerID)
	return coupon.Code, outcome, err
}

// GrantPromotionUnit 是竞争最激烈的路径：原子地扣减一个库存并创建领取记录。
// 结果以 GrantOutcome 返回，非成功结果同时返回对应的领域错误。
func (s *LifecycleService) GrantPromotionUnit(ctx context.Context, couponCode string, consumerID int64) (outcome domain.GrantOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "service.GrantPromotionUnit")
	defer span.End()
	start := time.Now()
	defer func() {
		s.finish(ctx, span, "grant_promotion_unit", start, err)
		if outcome != 0 {
			metrics.ObservePromotionGrant(outcome.String())
			span.SetAttributes(attribute.String("grant.outcome", outcome.String()))
		}
	}()

	span.SetAttributes(attribute.Int64("consumer.id", consumerID), attribute.String("coupon.code", couponCode))

	// 1. Redis 预占：在进入数据库前挡掉已售罄和重复领取的请求
	admitted := false
	if s.gate != nil {
		result, gerr := s.gate.Admit(ctx, couponCode, consumerID)
		switch {
		case gerr != nil:
			logger.Ctx(ctx).Warn().Err(gerr).Str("coupon_code", couponCode).Msg("promotion gate unavailable, falling back to store")
		case result == port.GateSoldOut:
			// 预占名额可能因释放失败而泄漏，以数据库库存为准
			if s.storeSoldOut(ctx, couponCode) {
				return domain.GrantSoldOut, domain.ErrSoldOut
			}
			logger.Ctx(ctx).Warn().Str("coupon_code", couponCode).Msg("promotion gate reports sold out while stock remains, falling back to store")
		case result == port.GateAlreadyClaimed:
			return domain.GrantDuplicate, domain.ErrAlreadyReceivedPromotion
		case result == port.GateAdmitted:
			admitted = true
		}
	}

	// 2. 数据库原子扣减是最终的判定
	outcome, err = s.granter.GrantUnit(ctx, couponCode, consumerID, s.clock())
	if admitted && (err != nil || outcome != domain.GrantGranted) {
		if rerr := s.gate.Release(ctx, couponCode, consumerID); rerr != nil {
			logger.Ctx(ctx).Error().Err(rerr).Str("coupon_code", couponCode).Int64("consumer_id", consumerID).Msg("failed to release promotion gate admission")
		}
	}
	if err != nil {
		return 0, err
	}
	if err = outcome.Err(); err != nil {
		return outcome, err
	}

	logger.Ctx(ctx).Info().Str("coupon_code", couponCode).Int64("consumer_id", consumerID).Msg("promotion coupon granted")
	return outcome, nil
}

// storeSoldOut 查询数据库中的剩余库存，查询失败时按售罄处理
func (s *LifecycleService) storeSoldOut(ctx context.Context, couponCode string) bool {
	coupon, err := s.coupons.FindByCode(ctx, couponCode)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("coupon_code", couponCode).Msg("failed to confirm promotion stock")
		return true
	}
	return coupon.IsSoldOut()
}
