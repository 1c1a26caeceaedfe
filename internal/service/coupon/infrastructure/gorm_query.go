package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"nexus-coupon/internal/service/coupon/domain"
)

const joinCoupon = "JOIN coupon ON coupon.coupon_code = coupon_receipt.coupon_code"

// GormReceiptQuery 是读侧查询的 GORM 实现，直接联表，不经过领域仓储
type GormReceiptQuery struct {
	db *gorm.DB
}

func NewGormReceiptQuery(db *gorm.DB) *GormReceiptQuery {
	return &GormReceiptQuery{db: db}
}

func (q *GormReceiptQuery) PageByBucket(ctx context.Context, consumerID int64, bucket domain.HistoryBucket, now time.Time, offset, limit int) ([]domain.ReceiptView, error) {
	tx := q.db.WithContext(ctx).
		Preload("Coupon").
		Joins(joinCoupon).
		Where("coupon_receipt.consumer_id = ?", consumerID)

	switch bucket {
	case domain.BucketAvailable:
		tx = tx.Where("coupon_receipt.is_use = ? AND coupon.expired_at > ?", false, now)
	case domain.BucketUsed:
		tx = tx.Where("(coupon_receipt.is_use = ? OR coupon.expired_at <= ?)", true, now)
	default:
		return nil, nil
	}

	var models []CouponReceiptModel
	err := tx.Order("coupon_receipt.created_at DESC").
		Order("coupon_receipt.coupon_code").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "page %s receipts of consumer %d", bucket, consumerID)
	}
	return toReceiptViews(models), nil
}

func (q *GormReceiptQuery) ListUnused(ctx context.Context, consumerID int64) ([]domain.ReceiptView, error) {
	var models []CouponReceiptModel
	err := q.db.WithContext(ctx).
		Preload("Coupon").
		Where("consumer_id = ? AND is_use = ?", consumerID, false).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list unused receipts of consumer %d", consumerID)
	}
	return toReceiptViews(models), nil
}

func (q *GormReceiptQuery) SumUsedDiscount(ctx context.Context, consumerID int64) (int64, error) {
	var total int64
	err := q.db.WithContext(ctx).Model(&CouponReceiptModel{}).
		Select("COALESCE(SUM(coupon.discount_amount), 0)").
		Joins(joinCoupon).
		Where("coupon_receipt.consumer_id = ? AND coupon_receipt.is_use = ?", consumerID, true).
		Scan(&total).Error
	if err != nil {
		return 0, errors.Wrapf(err, "sum used discount of consumer %d", consumerID)
	}
	return total, nil
}

func toReceiptViews(models []CouponReceiptModel) []domain.ReceiptView {
	views := make([]domain.ReceiptView, 0, len(models))
	for i := range models {
		views = append(views, toReceiptView(&models[i]))
	}
	return views
}
