package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/domain"
)

// Envelope 是服务间接口的统一返回体，HTTP 状态码始终为 200，
// 业务失败通过 failure 字段表达
type Envelope struct {
	Code    int                `json:"code"`
	Message string             `json:"message"`
	Data    any                `json:"data"`
	Failure domain.FailureCode `json:"failure,omitempty"`
}

type errorBody struct {
	Code    int                `json:"code"`
	Message string             `json:"message"`
	Failure domain.FailureCode `json:"failure,omitempty"`
}

// StatusOf 把错误映射为面向消费者接口的 HTTP 状态码
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrCouponNotFound),
		errors.Is(err, domain.ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyUsedCoupon),
		errors.Is(err, domain.ErrAlreadyReceivedPromotion),
		errors.Is(err, domain.ErrSoldOut),
		errors.Is(err, domain.ErrDuplicateReceipt):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrDiscountAmountMismatch),
		errors.Is(err, domain.ErrInsufficientOrderAmount),
		errors.Is(err, domain.ErrPromotionNotOpen):
		return http.StatusForbidden // 请求有效，但业务规则拒绝执行
	case errors.Is(err, domain.ErrGrantConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger.Ctx(r.Context()).Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	writeJSON(w, status, errorBody{Code: status, Message: err.Error()})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	body := errorBody{Code: status, Message: err.Error(), Failure: domain.FailureCodeOf(err)}
	if status == http.StatusInternalServerError {
		// 内部错误不把细节暴露给调用方
		body.Message = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Message: "success", Data: data})
		return
	}
	failure := domain.FailureCodeOf(err)
	message := err.Error()
	if failure == domain.FailureInternal {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("internal coupon request failed")
		message = http.StatusText(http.StatusInternalServerError)
	}
	writeJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Message: message, Data: data, Failure: failure})
}
