package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"nexus-coupon/internal/pkg/mq"
	"nexus-coupon/internal/service/coupon/domain"
	"nexus-coupon/internal/service/coupon/port"
)

// SagaEvent 是扣券步骤向下游（扣库存）或上游（回滚积分）发出的消息
type SagaEvent struct {
	EventID     string          `json:"eventId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Order       *port.OrderInfo `json:"order"`
	FailureCode string          `json:"failureCode,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// SagaKafkaPublisher 实现了 port.SagaPublisher
type SagaKafkaPublisher struct {
	writer          mq.MessageWriter
	forwardTopic    string
	compensateTopic string
	clock           func() time.Time
}

// NewSagaKafkaPublisher 的 writer 不能绑定 Topic，两个方向的主题由参数指定
func NewSagaKafkaPublisher(writer mq.MessageWriter, forwardTopic, compensateTopic string) *SagaKafkaPublisher {
	return &SagaKafkaPublisher{
		writer:          writer,
		forwardTopic:    forwardTopic,
		compensateTopic: compensateTopic,
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

// Forward 扣券成功，把订单推进到扣库存
func (p *SagaKafkaPublisher) Forward(ctx context.Context, order *port.OrderInfo) error {
	return p.publish(ctx, p.forwardTopic, order, nil)
}

// Compensate 扣券失败，通知上一步回滚
func (p *SagaKafkaPublisher) Compensate(ctx context.Context, order *port.OrderInfo, reason error) error {
	return p.publish(ctx, p.compensateTopic, order, reason)
}

func (p *SagaKafkaPublisher) publish(ctx context.Context, topic string, order *port.OrderInfo, reason error) error {
	event := SagaEvent{
		EventID:    uuid.NewString(),
		OccurredAt: p.clock(),
		Order:      order,
	}
	if reason != nil {
		event.FailureCode = string(domain.FailureCodeOf(reason))
		event.Reason = reason.Error()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal saga event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(order.ConsumerID, 10)),
		Value: body,
	}
	mq.InjectTraceContext(ctx, &msg.Headers)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish saga event to %s: %w", topic, err)
	}
	return nil
}
