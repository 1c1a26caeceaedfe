package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexus-coupon/internal/service/coupon/domain"
)

func TestCouponRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCouponRepository(db)
	ctx := t.Context()

	seeded := seedCoupon(t, db, "AAAA-BBBB-CCCC-DD", domain.KindWelcome, 0, baseTime)

	found, err := repo.FindByCode(ctx, seeded.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.KindWelcome, found.Kind)
	assert.Equal(t, int64(1000), found.DiscountAmount)
	assert.Equal(t, int64(10000), found.MinOrderPrice)
	assert.True(t, found.ExpiredAt.Equal(seeded.ExpiredAt))

	_, err = repo.FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)

	err = repo.Create(ctx, seeded)
	assert.ErrorIs(t, err, domain.ErrDuplicateCouponCode)
}

func TestCouponRepository_FindLatestByKind(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCouponRepository(db)

	_, err := repo.FindLatestByKind(t.Context(), domain.KindPromotion)
	require.ErrorIs(t, err, domain.ErrCouponNotFound)

	seedCoupon(t, db, "old0-old0-old0-00", domain.KindPromotion, 100, baseTime)
	seedCoupon(t, db, "new0-new0-new0-00", domain.KindPromotion, 100, baseTime.AddDate(0, 0, 1))
	seedCoupon(t, db, "wel0-wel0-wel0-00", domain.KindWelcome, 0, baseTime.AddDate(0, 0, 2))

	latest, err := repo.FindLatestByKind(t.Context(), domain.KindPromotion)
	require.NoError(t, err)
	assert.Equal(t, "new0-new0-new0-00", latest.Code)
}

func TestCouponRepository_SaveOnlyTouchesIssueLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormCouponRepository(db)
	ctx := t.Context()

	c := seedCoupon(t, db, "save-save-save-00", domain.KindPromotion, 10, baseTime)
	c.IssueLimit = 3
	c.DiscountAmount = 99999
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByCode(ctx, c.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.IssueLimit)
	assert.Equal(t, int64(1000), found.DiscountAmount)

	err = repo.Save(ctx, &domain.Coupon{Code: "nope", IssueLimit: 1})
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestReceiptRepository_UniqueKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormReceiptRepository(db)
	ctx := t.Context()
	c := seedCoupon(t, db, "uniq-uniq-uniq-00", domain.KindWelcome, 0, baseTime)

	require.NoError(t, repo.Create(ctx, domain.NewReceipt(c.Code, 7, baseTime)))
	err := repo.Create(ctx, domain.NewReceipt(c.Code, 7, baseTime))
	assert.ErrorIs(t, err, domain.ErrDuplicateReceipt)

	// 同一张券可以被不同消费者持有
	require.NoError(t, repo.Create(ctx, domain.NewReceipt(c.Code, 8, baseTime)))

	count, err := repo.CountByConsumer(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReceiptRepository_MarkUsedIsConditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormReceiptRepository(db)
	ctx := t.Context()
	c := seedCoupon(t, db, "mark-mark-mark-00", domain.KindWelcome, 0, baseTime)
	key := domain.ReceiptKey{CouponCode: c.Code, ConsumerID: 1}
	require.NoError(t, repo.Create(ctx, domain.NewReceipt(c.Code, 1, baseTime)))

	changed, err := repo.MarkUsed(ctx, key)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkUsed(ctx, key)
	require.NoError(t, err)
	assert.False(t, changed)

	r, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, r.IsUse)

	// Save 覆盖 is_use，用于回滚
	r.Rollback()
	require.NoError(t, repo.Save(ctx, r))
	r, err = repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, r.IsUse)

	_, err = repo.FindByKey(ctx, domain.ReceiptKey{CouponCode: c.Code, ConsumerID: 99})
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}

func TestReceiptRepository_FindByConsumerAndUsage(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormReceiptRepository(db)
	ctx := t.Context()

	a := seedCoupon(t, db, "aaaa-aaaa-aaaa-00", domain.KindWelcome, 0, baseTime)
	b := seedCoupon(t, db, "bbbb-bbbb-bbbb-00", domain.KindWelcome, 0, baseTime)
	require.NoError(t, repo.Create(ctx, domain.NewReceipt(a.Code, 5, baseTime)))
	require.NoError(t, repo.Create(ctx, domain.NewReceipt(b.Code, 5, baseTime.Add(time.Hour))))
	_, err := repo.MarkUsed(ctx, domain.ReceiptKey{CouponCode: a.Code, ConsumerID: 5})
	require.NoError(t, err)

	all, err := repo.FindByConsumer(ctx, 5)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.Code, all[0].Key.CouponCode, "newest first")

	used, err := repo.FindByConsumerAndUsage(ctx, 5, true)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, a.Code, used[0].Key.CouponCode)
}

func TestGormUnitOfWork_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	uow := NewGormUnitOfWork(db)
	ctx := t.Context()
	c := seedCoupon(t, db, "txtx-txtx-txtx-00", domain.KindWelcome, 0, baseTime)

	err := uow.Do(ctx, func(ctx context.Context, s domain.Stores) error {
		if err := s.Receipts.Create(ctx, domain.NewReceipt(c.Code, 1, baseTime)); err != nil {
			return err
		}
		return domain.ErrCouponExpired
	})
	require.ErrorIs(t, err, domain.ErrCouponExpired)

	_, err = NewGormReceiptRepository(db).FindByKey(ctx, domain.ReceiptKey{CouponCode: c.Code, ConsumerID: 1})
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}
