package infrastructure

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"nexus-coupon/internal/service/coupon/domain"
)

// errGrantRejected 用于在事务中途中止并回滚，真实结果通过 outcome 带出
var errGrantRejected = stderrors.New("grant rejected")

// GormPromotionGranter 用一条带条件的 UPDATE 完成"库存大于 0 才扣减"，
// 与领取记录的插入放在同一个事务里。
type GormPromotionGranter struct {
	db *gorm.DB
}

func NewGormPromotionGranter(db *gorm.DB) *GormPromotionGranter {
	return &GormPromotionGranter{db: db}
}

func (g *GormPromotionGranter) GrantUnit(ctx context.Context, couponCode string, consumerID int64, at time.Time) (domain.GrantOutcome, error) {
	var outcome domain.GrantOutcome

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 已领取过的直接拒绝，避免无谓地扣减库存
		var existing int64
		if err := tx.Model(&CouponReceiptModel{}).
			Where("coupon_code = ? AND consumer_id = ?", couponCode, consumerID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			outcome = domain.GrantDuplicate
			return errGrantRejected
		}

		// 2. 原子扣减：UPDATE coupon SET issue_limit = issue_limit - 1 WHERE ... AND issue_limit > 0
		res := tx.Model(&CouponModel{}).
			Where("coupon_code = ? AND issue_limit > ?", couponCode, 0).
			UpdateColumn("issue_limit", gorm.Expr("issue_limit - ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var found int64
			if err := tx.Model(&CouponModel{}).Where("coupon_code = ?", couponCode).Count(&found).Error; err != nil {
				return err
			}
			if found == 0 {
				return domain.ErrCouponNotFound
			}
			outcome = domain.GrantSoldOut
			return errGrantRejected
		}

		// 3. 插入领取记录，联合主键兜底并发重复领取
		receipt := FromDomainReceipt(domain.NewReceipt(couponCode, consumerID, at))
		if err := tx.Omit(clause.Associations).Create(receipt).Error; err != nil {
			return err
		}
		outcome = domain.GrantGranted
		return nil
	})

	switch {
	case err == nil:
		return outcome, nil
	case stderrors.Is(err, errGrantRejected):
		return outcome, nil
	case stderrors.Is(err, domain.ErrCouponNotFound):
		return 0, err
	case isDuplicateKey(err):
		return domain.GrantDuplicate, nil
	case isTransientConflict(err):
		return domain.GrantConflict, nil
	default:
		return 0, errors.Wrapf(err, "grant %s to consumer %d", couponCode, consumerID)
	}
}
