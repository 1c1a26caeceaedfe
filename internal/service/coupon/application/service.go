package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/pkg/metrics"
	"nexus-coupon/internal/pkg/tracing"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// 生成的券码与已有券码冲突时最多重试的次数
const maxCodeAttempts = 5

// LifecycleService 负责优惠券的发放、扣减、回滚与恢复，是领取记录状态机的唯一持有者
type LifecycleService struct {
	uow      domain.UnitOfWork
	coupons  domain.CouponRepository
	receipts domain.ReceiptRepository
	granter  domain.PromotionGranter
	codes    *domain.CodeGenerator
	policy   domain.IssuePolicy
	tracer   trace.Tracer

	gate     port.PromotionGate
	window   port.PromotionWindow
	clock    func() time.Time
	location *time.Location
}

// Option 用于配置 LifecycleService 的可选依赖
type Option func(*LifecycleService)

// WithPromotionGate 启用 Redis 预占闸门
func WithPromotionGate(gate port.PromotionGate) Option {
	return func(s *LifecycleService) { s.gate = gate }
}

// WithPromotionWindow 启用促销活动时间窗口
func WithPromotionWindow(window port.PromotionWindow) Option {
	return func(s *LifecycleService) { s.window = window }
}

func WithClock(clock func() time.Time) Option {
	return func(s *LifecycleService) { s.clock = clock }
}

// WithLocation 指定"每日"促销批次所使用的时区
func WithLocation(loc *time.Location) Option {
	return func(s *LifecycleService) { s.location = loc }
}

// NewLifecycleService 创建一个新的优惠券生命周期服务实例
func NewLifecycleService(
	uow domain.UnitOfWork,
	coupons domain.CouponRepository,
	receipts domain.ReceiptRepository,
	granter domain.PromotionGranter,
	codes *domain.CodeGenerator,
	policy domain.IssuePolicy,
	tracer trace.Tracer,
	opts ...Option,
) *LifecycleService {
	s := &LifecycleService{
		uow:      uow,
		coupons:  coupons,
		receipts: receipts,
		granter:  granter,
		codes:    codes,
		policy:   policy,
		tracer:   tracer,
		window:   port.AlwaysOpen{},
		clock:    func() time.Time { return time.Now().UTC() },
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// finish 统一处理一次用例结束时的指标、span 状态与日志
func (s *LifecycleService) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.FailureCodeOf(err))
		tracing.RecordError(span, err)
		if domain.IsDomainError(err) {
			logger.Ctx(ctx).Warn().Err(err).Str("operation", operation).Msg("coupon operation rejected")
		} else {
			logger.Ctx(ctx).Error().Err(err).Str("operation", operation).Msg("coupon operation failed")
		}
	}
	metrics.ObserveOperation(operation, outcome, start)
}

// issueCoupon 生成券码并写入优惠券，券码冲突时重新生成
func (s *LifecycleService) issueCoupon(ctx context.Context, stores domain.Stores, kind domain.CouponKind, terms domain.CouponTerms, issueLimit int64, issuedAt time.Time) (*domain.Coupon, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, err
		}
		coupon := domain.NewCoupon(code, kind, terms, issueLimit, issuedAt)
		err = stores.Coupons.Create(ctx, coupon)
		if err == nil {
			return coupon, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCouponCode) {
			return nil, err
		}
		lastErr = err
		logger.Ctx(ctx).Warn().Str("coupon_code", code).Int("attempt", attempt+1).Msg("coupon code collision, regenerating")
	}
	return nil, lastErr
}

// issueWithReceipt 发放一张优惠券并为消费者创建可用的领取记录
func (s *LifecycleService) issueWithReceipt(ctx context.Context, stores domain.Stores, consumerID int64, kind domain.CouponKind, terms domain.CouponTerms, issuedAt time.Time) (*domain.Coupon, error) {
	coupon, err := s.issueCoupon(ctx, stores, kind, terms, 0, issuedAt)
	if err != nil {
		return nil, err
	}
	if err := stores.Receipts.Create(ctx, domain.NewReceipt(coupon.Code, consumerID, s.clock())); err != nil {
		return nil, err
	}
	return coupon, nil
}
