package application_test

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"nexus-coupon/internal/service/coupon/application"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/infrastructure"
	"nexus-coupon/internal/service/coupon/port"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	coupons  *infrastructure.GormCouponRepository
	receipts *infrastructure.GormReceiptRepository
	svc      *application.LifecycleService
	query    *application.QueryService
}

type fixtureConfig struct {
	random io.Reader
	opts   []application.Option
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)), infrastructure.NewGormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infrastructure.AutoMigrate(db))

	random := cfg.random
	if random == nil {
		random = rand.New(rand.NewSource(42))
	}

	clock := &fakeClock{now: baseTime}
	coupons := infrastructure.NewGormCouponRepository(db)
	receipts := infrastructure.NewGormReceiptRepository(db)
	tracer := otel.Tracer("coupon-test")

	opts := append([]application.Option{application.WithClock(clock.Now)}, cfg.opts...)
	svc := application.NewLifecycleService(
		infrastructure.NewGormUnitOfWork(db),
		coupons,
		receipts,
		infrastructure.NewGormPromotionGranter(db),
		domain.NewCodeGenerator(random),
		domain.DefaultIssuePolicy(),
		tracer,
		opts...,
	)
	query := application.NewQueryService(infrastructure.NewGormReceiptQuery(db), receipts, tracer, clock.Now)

	return &fixture{db: db, clock: clock, coupons: coupons, receipts: receipts, svc: svc, query: query}
}

// seedHeldCoupon 直接写入一张优惠券和该消费者的可用领取记录
func (f *fixture) seedHeldCoupon(t *testing.T, code string, consumerID, discount, minOrder int64, expiredAt time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.coupons.Create(ctx, &domain.Coupon{
		Code:           code,
		Kind:           domain.KindWelcome,
		DiscountAmount: discount,
		IssuedAt:       baseTime.Add(-time.Hour),
		ExpiredAt:      expiredAt,
		MinOrderPrice:  minOrder,
	}))
	require.NoError(t, f.receipts.Create(ctx, domain.NewReceipt(code, consumerID, f.clock.Now())))
}

func (f *fixture) receipt(t *testing.T, code string, consumerID int64) *domain.CouponReceipt {
	t.Helper()
	r, err := f.receipts.FindByKey(context.Background(), domain.ReceiptKey{CouponCode: code, ConsumerID: consumerID})
	require.NoError(t, err)
	return r
}

// stubGate 是可编程的预占闸门
type stubGate struct {
	mu       sync.Mutex
	result   port.GateResult
	err      error
	primed   map[string]int64
	released []int64
}

func newStubGate(result port.GateResult) *stubGate {
	return &stubGate{result: result, primed: map[string]int64{}}
}

func (g *stubGate) Prime(_ context.Context, code string, supply int64, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed[code] = supply
	return nil
}

func (g *stubGate) Admit(context.Context, string, int64) (port.GateResult, error) {
	return g.result, g.err
}

func (g *stubGate) Release(_ context.Context, _ string, consumerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, consumerID)
	return nil
}

// closedWindow 模拟时间窗口关闭
type closedWindow struct{}

func (closedWindow) IsOpen(time.Time) (bool, error) { return false, nil }

func strPtr(s string) *string { return &s }
