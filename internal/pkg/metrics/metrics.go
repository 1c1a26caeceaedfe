package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coupon",
		Name:      "operations_total",
		Help:      "Coupon lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coupon",
		Name:      "operation_duration_seconds",
		Help:      "Latency of coupon lifecycle operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	promotionGrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coupon",
		Name:      "promotion_grants_total",
		Help:      "Promotion grant attempts by outcome.",
	}, []string{"outcome"})
)

// ObserveOperation 记录一次操作的耗时与结果，outcome 为 "ok" 或失败码
func ObserveOperation(operation, outcome string, start time.Time) {
	operationsTotal.WithLabelValues(operation, strings.ToLower(outcome)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObservePromotionGrant 记录促销券发放结果
func ObservePromotionGrant(outcome string) {
	promotionGrantsTotal.WithLabelValues(outcome).Inc()
}
