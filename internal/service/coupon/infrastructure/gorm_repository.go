package infrastructure

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"nexus-coupon/internal/service/coupon/domain"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository 创建一个新的 GORM 仓储实例
func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

func (r *GormCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	err := r.db.WithContext(ctx).Create(FromDomainCoupon(coupon)).Error
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateCouponCode
		}
		return errors.Wrapf(err, "create coupon %s", coupon.Code)
	}
	return nil
}

// Save 只更新 issue_limit，模板字段发放后不可变
func (r *GormCouponRepository) Save(ctx context.Context, coupon *domain.Coupon) error {
	res := r.db.WithContext(ctx).Model(&CouponModel{}).
		Where("coupon_code = ?", coupon.Code).
		Update("issue_limit", coupon.IssueLimit)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "save coupon %s", coupon.Code)
	}
	if res.RowsAffected == 0 {
		// MySQL 在值未变化时也会返回 0，需要再确认一次记录是否存在
		if _, err := r.FindByCode(ctx, coupon.Code); err != nil {
			return err
		}
	}
	return nil
}

// FindByCode 使用 GORM 从数据库中查找优惠券
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).Where("coupon_code = ?", code).Take(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %s", code)
	}
	return ToDomainCoupon(&model), nil
}

func (r *GormCouponRepository) FindLatestByKind(ctx context.Context, kind domain.CouponKind) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).
		Where("coupon_name = ?", kind).
		Order("issued_at DESC").
		Take(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find latest %s coupon", kind)
	}
	return ToDomainCoupon(&model), nil
}

// GormReceiptRepository 是 ReceiptRepository 的 GORM 实现
type GormReceiptRepository struct {
	db *gorm.DB
}

func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

func (r *GormReceiptRepository) byKey(ctx context.Context, key domain.ReceiptKey) *gorm.DB {
	return r.db.WithContext(ctx).Model(&CouponReceiptModel{}).
		Where("coupon_code = ? AND consumer_id = ?", key.CouponCode, key.ConsumerID)
}

func (r *GormReceiptRepository) Create(ctx context.Context, receipt *domain.CouponReceipt) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(FromDomainReceipt(receipt)).Error
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateReceipt
		}
		return errors.Wrapf(err, "create receipt %s", receipt.Key)
	}
	return nil
}

func (r *GormReceiptRepository) Save(ctx context.Context, receipt *domain.CouponReceipt) error {
	res := r.byKey(ctx, receipt.Key).Update("is_use", receipt.IsUse)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "save receipt %s", receipt.Key)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByKey(ctx, receipt.Key); err != nil {
			return err
		}
	}
	return nil
}

func (r *GormReceiptRepository) FindByKey(ctx context.Context, key domain.ReceiptKey) (*domain.CouponReceipt, error) {
	return r.take(r.byKey(ctx, key), key)
}

// LockByKey 使用 SELECT ... FOR UPDATE，必须在事务中调用
func (r *GormReceiptRepository) LockByKey(ctx context.Context, key domain.ReceiptKey) (*domain.CouponReceipt, error) {
	return r.take(r.byKey(ctx, key).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *GormReceiptRepository) take(q *gorm.DB, key domain.ReceiptKey) (*domain.CouponReceipt, error) {
	var model CouponReceiptModel
	if err := q.Take(&model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, errors.Wrapf(err, "find receipt %s", key)
	}
	return ToDomainReceipt(&model), nil
}

// MarkUsed 是带条件的更新：只有 is_use = false 的记录会被修改。
// 并发扣减同一张券时，只有一个请求能拿到 RowsAffected == 1。
func (r *GormReceiptRepository) MarkUsed(ctx context.Context, key domain.ReceiptKey) (bool, error) {
	res := r.byKey(ctx, key).Where("is_use = ?", false).Update("is_use", true)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "mark receipt %s used", key)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormReceiptRepository) FindByConsumer(ctx context.Context, consumerID int64) ([]*domain.CouponReceipt, error) {
	var models []CouponReceiptModel
	err := r.db.WithContext(ctx).
		Where("consumer_id = ?", consumerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list receipts of consumer %d", consumerID)
	}
	return toDomainReceipts(models), nil
}

func (r *GormReceiptRepository) FindByConsumerAndUsage(ctx context.Context, consumerID int64, isUse bool) ([]*domain.CouponReceipt, error) {
	var models []CouponReceiptModel
	err := r.db.WithContext(ctx).
		Where("consumer_id = ? AND is_use = ?", consumerID, isUse).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list receipts of consumer %d", consumerID)
	}
	return toDomainReceipts(models), nil
}

func (r *GormReceiptRepository) CountByConsumer(ctx context.Context, consumerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CouponReceiptModel{}).
		Where("consumer_id = ?", consumerID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(err, "count receipts of consumer %d", consumerID)
	}
	return count, nil
}

func toDomainReceipts(models []CouponReceiptModel) []*domain.CouponReceipt {
	receipts := make([]*domain.CouponReceipt, 0, len(models))
	for i := range models {
		receipts = append(receipts, ToDomainReceipt(&models[i]))
	}
	return receipts
}

// GormUnitOfWork 在一个数据库事务中执行多个仓储操作
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s domain.Stores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, domain.Stores{
			Coupons:  NewGormCouponRepository(tx),
			Receipts: NewGormReceiptRepository(tx),
		})
	})
}
