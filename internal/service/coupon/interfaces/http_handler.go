package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/application"
	"nexus-coupon/internal/service/coupon/port"
)

// HeaderConsumerID 由网关在鉴权后写入
const HeaderConsumerID = "X-Consumer-Id"

var (
	errMissingConsumer   = errors.New("missing or invalid " + HeaderConsumerID + " header")
	errInvalidConsumerID = errors.New("consumerId must be a positive integer")
)

// CouponHandler 封装了优惠券服务的 HTTP 处理器
type CouponHandler struct {
	commands CouponCommands
	queries  CouponQueries
}

// NewCouponHandler 创建一个新的 HTTP 处理器实例
func NewCouponHandler(commands CouponCommands, queries CouponQueries) *CouponHandler {
	return &CouponHandler{commands: commands, queries: queries}
}

// RegisterRoutes 在 ServeMux 上注册所有路由，每个处理器都经过 logger.Middleware
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, logger.Middleware(fn))
	}

	// 面向消费者
	handle("GET /api/consumers/coupons", h.handleHistory)
	handle("GET /api/coupons/available", h.handleAvailable)
	handle("GET /api/coupons/promotion/precheck", h.handlePrecheck)
	handle("POST /api/coupons/promotion", h.handleClaimPromotion)
	handle("GET /api/consumers/coupons/subscription-benefit", h.handleSubscriptionBenefit)

	// 服务间调用
	handle("POST /internal/coupons/welcome", h.handleIssueWelcome)
	handle("POST /internal/coupons/deduct", h.handleDeduct)
	handle("POST /internal/coupons/rollback", h.handleRollback)
	handle("POST /internal/coupons/refund", h.handleRefund)
	handle("POST /internal/coupons/recover", h.handleRecover)
	handle("POST /internal/coupons/regular-payments", h.handleRegularPayments)
	handle("POST /internal/coupons/promotion/issue", h.handleIssuePromotion)
}

func consumerIDFrom(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.Header.Get(HeaderConsumerID), 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingConsumer
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("consumer.id", id))
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func (h *CouponHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	consumerID, err := consumerIDFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	page, err := h.queries.History(r.Context(), consumerID, queryInt(r, "page", 0), queryInt(r, "size", 0), r.URL.Query().Get("search"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CouponHandler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	consumerID, err := consumerIDFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	totalAmount, err := strconv.ParseInt(r.URL.Query().Get("totalAmount"), 10, 64)
	if err != nil || totalAmount < 0 {
		writeError(w, r, http.StatusBadRequest, errors.New("totalAmount must be a non-negative integer"))
		return
	}
	summary, err := h.queries.AvailableForOrder(r.Context(), consumerID, totalAmount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *CouponHandler) handlePrecheck(w http.ResponseWriter, r *http.Request) {
	consumerID, err := consumerIDFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	status, err := h.commands.PrecheckPromotion(r.Context(), consumerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToPromotionStatus(status))
}

func (h *CouponHandler) handleClaimPromotion(w http.ResponseWriter, r *http.Request) {
	consumerID, err := consumerIDFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	code, outcome, err := h.commands.ClaimPromotion(r.Context(), consumerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, application.GrantResult{Outcome: outcome.String(), CouponCode: code})
}

func (h *CouponHandler) handleSubscriptionBenefit(w http.ResponseWriter, r *http.Request) {
	consumerID, err := consumerIDFrom(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	benefit, err := h.queries.SubscriptionBenefit(r.Context(), consumerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, benefit)
}

type welcomeRequest struct {
	ConsumerID int64 `json:"consumerId"`
}

func (h *CouponHandler) handleIssueWelcome(w http.ResponseWriter, r *http.Request) {
	var req welcomeRequest
	if !decodeInternal(w, r, &req, &req.ConsumerID) {
		return
	}
	coupon, err := h.commands.IssueWelcome(r.Context(), req.ConsumerID)
	if err != nil {
		writeEnvelope(w, r, nil, err)
		return
	}
	writeEnvelope(w, r, application.CouponInfo{
		CouponCode:     coupon.Code,
		CouponName:     coupon.Kind,
		DiscountAmount: coupon.DiscountAmount,
		ExpiredAt:      coupon.ExpiredAt,
		MinOrderPrice:  coupon.MinOrderPrice,
	}, nil)
}

func (h *CouponHandler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	var order port.OrderInfo
	if !decodeInternal(w, r, &order, &order.ConsumerID) {
		return
	}
	writeEnvelope(w, r, nil, h.commands.DeductCoupon(r.Context(), &order))
}

func (h *CouponHandler) handleRollback(w http.ResponseWriter, r *http.Request) {
	var order port.OrderInfo
	if !decodeInternal(w, r, &order, &order.ConsumerID) {
		return
	}
	writeEnvelope(w, r, nil, h.commands.RollbackCouponUsage(r.Context(), &order))
}

func (h *CouponHandler) handleRefund(w http.ResponseWriter, r *http.Request) {
	var cancel port.OrderCancelInfo
	if !decodeInternal(w, r, &cancel, &cancel.ConsumerID) {
		return
	}
	writeEnvelope(w, r, nil, h.commands.RefundCouponByOrderCancel(r.Context(), &cancel))
}

func (h *CouponHandler) handleRecover(w http.ResponseWriter, r *http.Request) {
	var cancel port.OrderCancelInfo
	if !decodeInternal(w, r, &cancel, &cancel.ConsumerID) {
		return
	}
	writeEnvelope(w, r, nil, h.commands.RecoverCouponByFailedOrderCancel(r.Context(), &cancel))
}

func (h *CouponHandler) handleRegularPayments(w http.ResponseWriter, r *http.Request) {
	var payment port.SubscriptionPaymentInfo
	if !decodeInternal(w, r, &payment, &payment.ConsumerID) {
		return
	}
	writeEnvelope(w, r, nil, h.commands.GiveRegularPaymentsCoupon(r.Context(), &payment))
}

func (h *CouponHandler) handleIssuePromotion(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, nil, h.commands.IssuePromotionCoupons(r.Context()))
}

// decodeInternal 解析内部接口的请求体，consumerID 指向其中的消费者字段，必须为正数
func decodeInternal(w http.ResponseWriter, r *http.Request, v any, consumerID *int64) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	if *consumerID <= 0 {
		writeError(w, r, http.StatusBadRequest, errInvalidConsumerID)
		return false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("consumer.id", *consumerID))
	return true
}
