package infrastructure

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"nexus-coupon/internal/service/coupon/domain"
)

var baseTime = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

// newTestDB 为每个测试创建独立的内存 sqlite，单连接以串行化并发事务
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	db, err := gorm.Open(sqlite.Open(dsn), NewGormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, code string, kind domain.CouponKind, limit int64, issuedAt time.Time) *domain.Coupon {
	t.Helper()
	c := &domain.Coupon{
		Code:           code,
		Kind:           kind,
		DiscountAmount: 1000,
		IssueLimit:     limit,
		IssuedAt:       issuedAt,
		ExpiredAt:      issuedAt.AddDate(0, 0, 7),
		MinOrderPrice:  10000,
	}
	require.NoError(t, NewGormCouponRepository(db).Create(t.Context(), c))
	return c
}
