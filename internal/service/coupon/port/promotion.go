package port

import (
	"context"
	"time"
)

// GateResult 是促销券快速预占的结果。
type GateResult int

const (
	GateAdmitted GateResult = iota + 1
	GateSoldOut
	GateAlreadyClaimed
	GateBypass // 预占库存未初始化，直接交给数据库判定
)

// PromotionGate 是促销券领取前的快速闸门（出站端口）。
// 它只用于削峰，数据库中的原子扣减仍然是最终的判定依据。
type PromotionGate interface {
	// Prime 以给定库存初始化某张促销券的预占池。
	Prime(ctx context.Context, couponCode string, supply int64, ttl time.Duration) error
	// Admit 尝试为消费者预占一个名额。
	Admit(ctx context.Context, couponCode string, consumerID int64) (GateResult, error)
	// Release 是 Admit 的补偿操作。
	Release(ctx context.Context, couponCode string, consumerID int64) error
}

// PromotionWindow 判断某个时刻促销活动是否开放。
type PromotionWindow interface {
	IsOpen(at time.Time) (bool, error)
}

// AlwaysOpen 是未启用时间窗口时使用的实现。
type AlwaysOpen struct{}

func (AlwaysOpen) IsOpen(time.Time) (bool, error) { return true, nil }
