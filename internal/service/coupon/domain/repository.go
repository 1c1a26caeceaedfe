package domain

import (
	"context"
	"time"
)

// CouponRepository 定义了优惠券模板的持久化接口。
type CouponRepository interface {
	// Create 插入一张新优惠券，code 冲突时返回 ErrDuplicateCouponCode。
	Create(ctx context.Context, coupon *Coupon) error
	// Save 只覆盖已存在优惠券的 IssueLimit。
	Save(ctx context.Context, coupon *Coupon) error
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// FindLatestByKind 返回某类别最近发放的优惠券，用于定位"当前"促销。
	FindLatestByKind(ctx context.Context, kind CouponKind) (*Coupon, error)
}

// ReceiptRepository 定义了领取记录的持久化接口。
type ReceiptRepository interface {
	// Create 插入新领取记录，(couponCode, consumerId) 冲突时返回 ErrDuplicateReceipt。
	Create(ctx context.Context, receipt *CouponReceipt) error
	// Save 覆盖已存在记录的 IsUse。
	Save(ctx context.Context, receipt *CouponReceipt) error
	FindByKey(ctx context.Context, key ReceiptKey) (*CouponReceipt, error)
	// LockByKey 在事务中加行锁读取记录。
	LockByKey(ctx context.Context, key ReceiptKey) (*CouponReceipt, error)
	// MarkUsed 仅当记录当前未使用时置为已使用，返回是否发生了变更。
	MarkUsed(ctx context.Context, key ReceiptKey) (bool, error)
	FindByConsumer(ctx context.Context, consumerID int64) ([]*CouponReceipt, error)
	FindByConsumerAndUsage(ctx context.Context, consumerID int64, isUse bool) ([]*CouponReceipt, error)
	CountByConsumer(ctx context.Context, consumerID int64) (int64, error)
}

// HistoryBucket 区分"可用"与"已使用或已过期"两类领取记录。
type HistoryBucket string

const (
	BucketAvailable HistoryBucket = "available"
	BucketUsed      HistoryBucket = "used"
)

// ReceiptView 是领取记录与其优惠券的联合视图，供查询使用。
type ReceiptView struct {
	Receipt CouponReceipt
	Coupon  Coupon
}

// ReceiptQuery 是读侧查询接口，返回联表后的视图。
type ReceiptQuery interface {
	// PageByBucket 按领取时间倒序分页查询某个桶内的记录。
	PageByBucket(ctx context.Context, consumerID int64, bucket HistoryBucket, now time.Time, offset, limit int) ([]ReceiptView, error)
	// ListUnused 返回消费者所有未使用的记录。
	ListUnused(ctx context.Context, consumerID int64) ([]ReceiptView, error)
	// SumUsedDiscount 汇总已使用记录的折扣金额。
	SumUsedDiscount(ctx context.Context, consumerID int64) (int64, error)
}

// Stores 是事务内可用的仓储集合。
type Stores struct {
	Coupons  CouponRepository
	Receipts ReceiptRepository
}

// UnitOfWork 在一个事务中执行 fn，fn 返回错误时整体回滚。
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// PromotionGranter 是促销券"原子扣减库存 + 创建领取记录"的端口。
// 实现必须保证 IssueLimit 永不为负，发放成功次数不超过初始库存。
type PromotionGranter interface {
	GrantUnit(ctx context.Context, couponCode string, consumerID int64, at time.Time) (GrantOutcome, error)
}
