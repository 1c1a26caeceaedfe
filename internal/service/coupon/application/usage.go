package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// Deduct 是下单时的扣券逻辑：校验通过后把领取记录从 AVAILABLE 变为 USED
func (s *LifecycleService) Deduct(ctx context.Context, consumerID int64, couponCode string, orderAmount, claimedDiscount int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "service.Deduct")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "deduct", start, err) }()

	span.SetAttributes(
		attribute.Int64("consumer.id", consumerID),
		attribute.String("coupon.code", couponCode),
		attribute.Int64("order.amount", orderAmount),
		attribute.Int64("coupon.claimed_discount", claimedDiscount),
	)

	key := domain.ReceiptKey{CouponCode: couponCode, ConsumerID: consumerID}
	err = s.uow.Do(ctx, func(ctx context.Context, stores domain.Stores) error {
		coupon, err := stores.Coupons.FindByCode(ctx, couponCode)
		if err != nil {
			return err
		}
		// 加行锁，同一张券的并发扣减在这里串行化
		receipt, err := stores.Receipts.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		if err := domain.Validate(receipt, coupon, orderAmount, claimedDiscount, s.clock()); err != nil {
			return err
		}
		changed, err := stores.Receipts.MarkUsed(ctx, key)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrAlreadyUsedCoupon
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Ctx(ctx).Info().Str("coupon_code", couponCode).Int64("consumer_id", consumerID).Msg("coupon deducted")
	span.AddEvent("Receipt transitioned to USED")
	return nil
}

// Rollback 是 Deduct 的补偿：无条件恢复为 AVAILABLE，不重新校验
func (s *LifecycleService) Rollback(ctx context.Context, consumerID int64, couponCode string) (err error) {
	ctx, span := s.tracer.Start(ctx, "service.Rollback (Compensation)")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "rollback", start, err) }()

	span.SetAttributes(attribute.Int64("consumer.id", consumerID), attribute.String("coupon.code", couponCode))

	err = s.compensate(ctx, consumerID, couponCode, (*domain.CouponReceipt).Rollback)
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Str("coupon_code", couponCode).Int64("consumer_id", consumerID).Msg("Compensation: coupon rolled back to AVAILABLE")
	span.AddEvent("Receipt rolled back to AVAILABLE")
	return nil
}

// Recover 是取消订单失败时的补偿：无条件恢复为 USED
func (s *LifecycleService) Recover(ctx context.Context, consumerID int64, couponCode string) (err error) {
	ctx, span := s.tracer.Start(ctx, "service.Recover (Compensation)")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "recover", start, err) }()

	span.SetAttributes(attribute.Int64("consumer.id", consumerID), attribute.String("coupon.code", couponCode))

	err = s.compensate(ctx, consumerID, couponCode, (*domain.CouponReceipt).Recover)
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Str("coupon_code", couponCode).Int64("consumer_id", consumerID).Msg("Compensation: coupon recovered to USED")
	span.AddEvent("Receipt recovered to USED")
	return nil
}

// compensate 在事务中锁定领取记录并执行无条件的状态变更
func (s *LifecycleService) compensate(ctx context.Context, consumerID int64, couponCode string, apply func(*domain.CouponReceipt)) error {
	return s.uow.Do(ctx, func(ctx context.Context, stores domain.Stores) error {
		if _, err := stores.Coupons.FindByCode(ctx, couponCode); err != nil {
			return err
		}
		receipt, err := stores.Receipts.LockByKey(ctx, domain.ReceiptKey{CouponCode: couponCode, ConsumerID: consumerID})
		if err != nil {
			return err
		}
		apply(receipt)
		return stores.Receipts.Save(ctx, receipt)
	})
}

// DeductCoupon 处理订单服务的扣券请求，未使用优惠券时直接返回
func (s *LifecycleService) DeductCoupon(ctx context.Context, order *port.OrderInfo) error {
	if order.CouponCode == nil {
		return nil
	}
	return s.Deduct(ctx, order.ConsumerID, *order.CouponCode, order.TotalAmount, order.CouponAmount)
}

// RollbackCouponUsage 在下单失败时回滚扣券
func (s *LifecycleService) RollbackCouponUsage(ctx context.Context, order *port.OrderInfo) error {
	if order.CouponCode == nil {
		return nil
	}
	return s.Rollback(ctx, order.ConsumerID, *order.CouponCode)
}

// RefundCouponByOrderCancel 在取消订单时退还优惠券
func (s *LifecycleService) RefundCouponByOrderCancel(ctx context.Context, cancel *port.OrderCancelInfo) error {
	if cancel.CouponCode == nil {
		return nil
	}
	return s.Rollback(ctx, cancel.ConsumerID, *cancel.CouponCode)
}

// RecoverCouponByFailedOrderCancel 在取消订单失败时恢复优惠券的使用状态
func (s *LifecycleService) RecoverCouponByFailedOrderCancel(ctx context.Context, cancel *port.OrderCancelInfo) error {
	if cancel.CouponCode == nil {
		return nil
	}
	return s.Recover(ctx, cancel.ConsumerID, *cancel.CouponCode)
}
