package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// Topics 是优惠券服务订阅与发布的主题
type Topics struct {
	IssueWelcome         string
	ReduceCoupon         string
	RollbackCoupon       string
	CancelOrderCoupon    string
	RecoverCoupon        string
	IssueRegularPayments string

	ReduceStock   string
	RollbackPoint string
}

func DefaultTopics() Topics {
	return Topics{
		IssueWelcome:         "issue-welcome-coupon",
		ReduceCoupon:         "reduce-coupon",
		RollbackCoupon:       "rollback-coupon",
		CancelOrderCoupon:    "cancel-order-coupon",
		RecoverCoupon:        "recover-coupon",
		IssueRegularPayments: "issue-regular-payments-coupon",
		ReduceStock:          "reduce-stock",
		RollbackPoint:        "rollback-point",
	}
}

// memberJoined 是会员注册事件
type memberJoined struct {
	ConsumerID int64 `json:"consumerId"`
}

// EventHandlers 把各主题的消息翻译成应用服务调用
type EventHandlers struct {
	commands CouponCommands
	saga     port.SagaPublisher
}

func NewEventHandlers(commands CouponCommands, saga port.SagaPublisher) *EventHandlers {
	return &EventHandlers{commands: commands, saga: saga}
}

// Routes 返回 主题 -> 处理器 的映射，只包含需要消费的主题
func (h *EventHandlers) Routes(topics Topics) map[string]MessageHandler {
	return map[string]MessageHandler{
		topics.IssueWelcome:         h.HandleIssueWelcome,
		topics.ReduceCoupon:         h.HandleReduceCoupon,
		topics.RollbackCoupon:       h.HandleRollbackCoupon,
		topics.CancelOrderCoupon:    h.HandleCancelOrderCoupon,
		topics.RecoverCoupon:        h.HandleRecoverCoupon,
		topics.IssueRegularPayments: h.HandleRegularPayments,
	}
}

// errDecode 标记消息体无法解析
var errDecode = errors.New("malformed message payload")

func decode(msg kafka.Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	return nil
}

func (h *EventHandlers) HandleIssueWelcome(ctx context.Context, msg kafka.Message) error {
	var event memberJoined
	if err := decode(msg, &event); err != nil {
		return err
	}
	return h.commands.IssueWelcomeCouponByJoin(ctx, event.ConsumerID)
}

// HandleReduceCoupon 是下单 SAGA 中的扣券步骤：
// 成功则推进到扣库存，业务失败则通知上一步回滚积分。
// 推进消息发送失败时先回滚扣券再返回错误。
func (h *EventHandlers) HandleReduceCoupon(ctx context.Context, msg kafka.Message) error {
	var order port.OrderInfo
	if err := decode(msg, &order); err != nil {
		return err
	}

	err := h.commands.DeductCoupon(ctx, &order)
	switch {
	case err == nil:
		ferr := h.saga.Forward(ctx, &order)
		if ferr == nil {
			return nil
		}
		// 下游收不到扣库存消息时撤销本次扣券，重放时可以重新扣减
		if rerr := h.commands.RollbackCouponUsage(ctx, &order); rerr != nil {
			logger.Ctx(ctx).Error().Err(rerr).Str("order_id", order.OrderID).Msg("failed to roll back coupon after forward failure")
			return fmt.Errorf("forward order %s: %w (rollback: %v)", order.OrderID, ferr, rerr)
		}
		logger.Ctx(ctx).Warn().Err(ferr).Str("order_id", order.OrderID).Msg("saga forward failed, coupon deduction rolled back")
		return ferr
	case domain.IsDomainError(err):
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.OrderID).Msg("coupon deduction rejected, compensating")
		return h.saga.Compensate(ctx, &order, err)
	default:
		return err
	}
}

func (h *EventHandlers) HandleRollbackCoupon(ctx context.Context, msg kafka.Message) error {
	var order port.OrderInfo
	if err := decode(msg, &order); err != nil {
		return err
	}
	return h.commands.RollbackCouponUsage(ctx, &order)
}

func (h *EventHandlers) HandleCancelOrderCoupon(ctx context.Context, msg kafka.Message) error {
	var cancel port.OrderCancelInfo
	if err := decode(msg, &cancel); err != nil {
		return err
	}
	return h.commands.RefundCouponByOrderCancel(ctx, &cancel)
}

func (h *EventHandlers) HandleRecoverCoupon(ctx context.Context, msg kafka.Message) error {
	var cancel port.OrderCancelInfo
	if err := decode(msg, &cancel); err != nil {
		return err
	}
	return h.commands.RecoverCouponByFailedOrderCancel(ctx, &cancel)
}

func (h *EventHandlers) HandleRegularPayments(ctx context.Context, msg kafka.Message) error {
	var payment port.SubscriptionPaymentInfo
	if err := decode(msg, &payment); err != nil {
		return err
	}
	return h.commands.GiveRegularPaymentsCoupon(ctx, &payment)
}
