package application

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"nexus-coupon/internal/pkg/tracing"
	"nexus-coupon/internal/service/coupon/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// QueryService 提供只读投影：优惠券历史、下单可用券、会员累计优惠
type QueryService struct {
	query    domain.ReceiptQuery
	receipts domain.ReceiptRepository
	tracer   trace.Tracer
	clock    func() time.Time
}

func NewQueryService(query domain.ReceiptQuery, receipts domain.ReceiptRepository, tracer trace.Tracer, clock func() time.Time) *QueryService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &QueryService{query: query, receipts: receipts, tracer: tracer, clock: clock}
}

// History 按领取时间倒序分页返回消费者的优惠券。
// search 为 "available" 时返回可用券，为 "used" 时返回已使用或已过期的券，其他值返回空列表。
// TotalElements 始终是该消费者的全部领取记录数。
func (q *QueryService) History(ctx context.Context, consumerID int64, page, size int, search string) (*CouponPage, error) {
	ctx, span := q.tracer.Start(ctx, "query.History")
	defer span.End()

	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	span.SetAttributes(
		attribute.Int64("consumer.id", consumerID),
		attribute.String("search", search),
		attribute.Int("page", page),
		attribute.Int("size", size),
	)

	total, err := q.receipts.CountByConsumer(ctx, consumerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	result := &CouponPage{
		Content:       []CouponInfo{},
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
	}

	bucket := domain.HistoryBucket(search)
	if bucket != domain.BucketAvailable && bucket != domain.BucketUsed {
		return result, nil
	}
	// page*size 溢出时偏移量必然超过记录数
	if page > math.MaxInt/size {
		return result, nil
	}

	views, err := q.query.PageByBucket(ctx, consumerID, bucket, q.clock(), page*size, size)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	for i := range views {
		result.Content = append(result.Content, toCouponInfo(&views[i].Coupon))
	}
	return result, nil
}

// AvailableForOrder 返回针对某个订单金额可以使用的优惠券。
// 已过期的券不计入总数，未达到最低消费的券计为不可用。
func (q *QueryService) AvailableForOrder(ctx context.Context, consumerID int64, totalAmount int64) (*AvailableCouponsSummary, error) {
	ctx, span := q.tracer.Start(ctx, "query.AvailableForOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("consumer.id", consumerID), attribute.Int64("order.total_amount", totalAmount))

	views, err := q.query.ListUnused(ctx, consumerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	now := q.clock()
	totalValid := len(views)
	unavailable := 0
	coupons := make([]CouponInfo, 0, len(views))
	for i := range views {
		c := &views[i].Coupon
		if !c.IsValidAt(now) {
			totalValid--
			continue
		}
		if totalAmount < c.MinOrderPrice {
			unavailable++
			continue
		}
		coupons = append(coupons, toCouponInfo(c))
	}

	return &AvailableCouponsSummary{
		AvailableCount: totalValid - unavailable,
		Coupons:        coupons,
	}, nil
}

// SubscriptionBenefit 汇总消费者已使用优惠券的折扣金额
func (q *QueryService) SubscriptionBenefit(ctx context.Context, consumerID int64) (*SubscriptionBenefit, error) {
	ctx, span := q.tracer.Start(ctx, "query.SubscriptionBenefit")
	defer span.End()
	span.SetAttributes(attribute.Int64("consumer.id", consumerID))

	total, err := q.query.SumUsedDiscount(ctx, consumerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return &SubscriptionBenefit{CouponUse: total}, nil
}
