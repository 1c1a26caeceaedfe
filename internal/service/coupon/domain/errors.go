package domain

import "errors"

// 定义领域错误，所有错误都对调用方可见，且不会导致进程退出。
var (
	ErrCouponNotFound           = errors.New("coupon not found")
	ErrReceiptNotFound          = errors.New("coupon receipt not found")
	ErrAlreadyUsedCoupon        = errors.New("coupon already used")
	ErrCouponExpired            = errors.New("coupon expired")
	ErrDiscountAmountMismatch   = errors.New("claimed discount does not match coupon")
	ErrInsufficientOrderAmount  = errors.New("order amount below coupon minimum")
	ErrAlreadyReceivedPromotion = errors.New("promotion coupon already received")
	ErrPromotionNotOpen         = errors.New("promotion coupon event is not open")
	ErrSoldOut                  = errors.New("promotion coupon sold out")
	ErrDuplicateReceipt         = errors.New("duplicate coupon receipt")

	// ErrGrantConflict 表示发放时遇到瞬时竞争（死锁、锁等待超时），调用方可以重试。
	ErrGrantConflict = errors.New("promotion grant conflict, retry")

	// ErrDuplicateCouponCode 表示生成的券码已存在，发放流程会重新生成。
	ErrDuplicateCouponCode = errors.New("coupon code already exists")
)

// FailureCode 是跨服务返回的稳定失败码。
type FailureCode string

const (
	FailureNone              FailureCode = ""
	FailureCouponNotFound    FailureCode = "NOT_FOUND_COUPON"
	FailureReceiptNotFound   FailureCode = "NOT_FOUND_COUPON_RECEIPT"
	FailureAlreadyUsedCoupon FailureCode = "ALREADY_USE_COUPON"
	FailureCouponExpired     FailureCode = "EXPIRED_COUPON"
	FailureDiscountMismatch  FailureCode = "INCORRECT_COUPON_DISCOUNT_AMOUNT"
	FailureInsufficientOrder FailureCode = "INSUFFICIENT_MIN_ORDER_PRICE"
	FailureAlreadyReceived   FailureCode = "ALREADY_RECEIVE_PROMOTION_COUPON"
	FailurePromotionNotOpen  FailureCode = "NOT_OPEN_PROMOTION_COUPON_EVENT"
	FailureSoldOut           FailureCode = "COUPON_SOLD_OUT"
	FailureDuplicateReceipt  FailureCode = "DUPLICATE_COUPON_RECEIPT"
	FailureGrantConflict     FailureCode = "PROMOTION_GRANT_CONFLICT"
	FailureInternal          FailureCode = "INTERNAL_ERROR"
)

var failureCodes = []struct {
	err  error
	code FailureCode
}{
	{ErrCouponNotFound, FailureCouponNotFound},
	{ErrReceiptNotFound, FailureReceiptNotFound},
	{ErrAlreadyUsedCoupon, FailureAlreadyUsedCoupon},
	{ErrCouponExpired, FailureCouponExpired},
	{ErrDiscountAmountMismatch, FailureDiscountMismatch},
	{ErrInsufficientOrderAmount, FailureInsufficientOrder},
	{ErrAlreadyReceivedPromotion, FailureAlreadyReceived},
	{ErrPromotionNotOpen, FailurePromotionNotOpen},
	{ErrSoldOut, FailureSoldOut},
	{ErrDuplicateReceipt, FailureDuplicateReceipt},
	{ErrGrantConflict, FailureGrantConflict},
}

// FailureCodeOf 把错误映射为失败码，无法识别的错误统一视为内部错误。
func FailureCodeOf(err error) FailureCode {
	if err == nil {
		return FailureNone
	}
	for _, fc := range failureCodes {
		if errors.Is(err, fc.err) {
			return fc.code
		}
	}
	return FailureInternal
}

// IsDomainError 判断错误是否属于业务拒绝，而非基础设施故障。
func IsDomainError(err error) bool {
	code := FailureCodeOf(err)
	return code != FailureNone && code != FailureInternal
}
