package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"nexus-coupon/internal/service/coupon/application"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// fakeCommands 记录调用并返回预设的错误
type fakeCommands struct {
	mu    sync.Mutex
	calls []string
	err   error

	orders   []*port.OrderInfo
	cancels  []*port.OrderCancelInfo
	payments []*port.SubscriptionPaymentInfo
	welcomed []int64

	precheck domain.PrecheckStatus
	outcome  domain.GrantOutcome
}

func (f *fakeCommands) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeCommands) IssueWelcome(_ context.Context, consumerID int64) (*domain.Coupon, error) {
	f.record("IssueWelcome")
	f.welcomed = append(f.welcomed, consumerID)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Coupon{
		Code:           "wwww-wwww-wwww-ww",
		Kind:           domain.KindWelcome,
		DiscountAmount: 3000,
		ExpiredAt:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		MinOrderPrice:  15000,
	}, nil
}

func (f *fakeCommands) IssueWelcomeCouponByJoin(_ context.Context, consumerID int64) error {
	f.record("IssueWelcomeCouponByJoin")
	f.welcomed = append(f.welcomed, consumerID)
	return f.err
}

func (f *fakeCommands) IssuePromotionCoupons(context.Context) error {
	f.record("IssuePromotionCoupons")
	return f.err
}

func (f *fakeCommands) GiveRegularPaymentsCoupon(_ context.Context, p *port.SubscriptionPaymentInfo) error {
	f.record("GiveRegularPaymentsCoupon")
	f.payments = append(f.payments, p)
	return f.err
}

func (f *fakeCommands) DeductCoupon(_ context.Context, o *port.OrderInfo) error {
	f.record("DeductCoupon")
	f.orders = append(f.orders, o)
	return f.err
}

func (f *fakeCommands) RollbackCouponUsage(_ context.Context, o *port.OrderInfo) error {
	f.record("RollbackCouponUsage")
	f.orders = append(f.orders, o)
	return f.err
}

func (f *fakeCommands) RefundCouponByOrderCancel(_ context.Context, c *port.OrderCancelInfo) error {
	f.record("RefundCouponByOrderCancel")
	f.cancels = append(f.cancels, c)
	return f.err
}

func (f *fakeCommands) RecoverCouponByFailedOrderCancel(_ context.Context, c *port.OrderCancelInfo) error {
	f.record("RecoverCouponByFailedOrderCancel")
	f.cancels = append(f.cancels, c)
	return f.err
}

func (f *fakeCommands) PrecheckPromotion(context.Context, int64) (domain.PrecheckStatus, error) {
	f.record("PrecheckPromotion")
	return f.precheck, f.err
}

func (f *fakeCommands) ClaimPromotion(context.Context, int64) (string, domain.GrantOutcome, error) {
	f.record("ClaimPromotion")
	if f.err != nil {
		return "", 0, f.err
	}
	return "pppp-pppp-pppp-pp", f.outcome, nil
}

type fakeQueries struct {
	consumerID  int64
	page, size  int
	search      string
	totalAmount int64
}

func (f *fakeQueries) History(_ context.Context, consumerID int64, page, size int, search string) (*application.CouponPage, error) {
	f.consumerID, f.page, f.size, f.search = consumerID, page, size, search
	return &application.CouponPage{Content: []application.CouponInfo{}, Page: page, Size: size, TotalElements: 3, TotalPages: 1}, nil
}

func (f *fakeQueries) AvailableForOrder(_ context.Context, consumerID int64, totalAmount int64) (*application.AvailableCouponsSummary, error) {
	f.consumerID, f.totalAmount = consumerID, totalAmount
	return &application.AvailableCouponsSummary{AvailableCount: 2, Coupons: []application.CouponInfo{}}, nil
}

func (f *fakeQueries) SubscriptionBenefit(_ context.Context, consumerID int64) (*application.SubscriptionBenefit, error) {
	f.consumerID = consumerID
	return &application.SubscriptionBenefit{CouponUse: 6000}, nil
}

type sagaCall struct {
	direction string
	order     *port.OrderInfo
	reason    error
}

type fakeSaga struct {
	calls []sagaCall
	err   error
}

func (s *fakeSaga) Forward(_ context.Context, o *port.OrderInfo) error {
	s.calls = append(s.calls, sagaCall{direction: "forward", order: o})
	return s.err
}

func (s *fakeSaga) Compensate(_ context.Context, o *port.OrderInfo, reason error) error {
	s.calls = append(s.calls, sagaCall{direction: "compensate", order: o, reason: reason})
	return s.err
}

// fakeReader 依次返回预置的消息，之后阻塞直到 ctx 结束
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.msgs) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// recordingWriter 记录写入成功的消息，前 failures 次写入返回 err
type recordingWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	attempts int
	failures int
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.failures > 0 {
		w.failures--
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}
