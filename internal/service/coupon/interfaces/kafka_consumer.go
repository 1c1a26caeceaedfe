// internal/service/coupon/interfaces/kafka_consumer.go
package interfaces

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/pkg/mq"
	"nexus-coupon/internal/pkg/tracing"
	"nexus-coupon/internal/service/coupon/domain"
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageHandler 处理一条消息，返回的错误决定消息的去向
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// ConsumerAdapter 是一个驱动适配器，它监听一个 Kafka 主题并驱动应用服务。
// 领域错误只记录日志，其余错误交给 FailureHandler 转入死信队列。
type ConsumerAdapter struct {
	topic          string
	reader         MessageReader
	handle         MessageHandler
	failureHandler *mq.FailureHandler
	tracer         trace.Tracer
	retryBackoff   time.Duration
}

// NewConsumerAdapter 创建消费者，failureHandler 为 nil 时失败的消息只记录日志。
// 死信写入失败时不提交 offset，按 retryBackoff 重试同一条消息。
func NewConsumerAdapter(topic string, reader MessageReader, handle MessageHandler, failureHandler *mq.FailureHandler) *ConsumerAdapter {
	return &ConsumerAdapter{
		topic:          topic,
		reader:         reader,
		handle:         handle,
		failureHandler: failureHandler,
		tracer:         otel.Tracer("coupon-consumer"),
		retryBackoff:   time.Second,
	}
}

func (a *ConsumerAdapter) Topic() string {
	return a.topic
}

// Run 持续消费直到 ctx 结束，ctx 取消时返回 nil
func (a *ConsumerAdapter) Run(ctx context.Context) error {
	defer a.reader.Close()
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ Kafka Consumer Adapter started.")
	for {
		// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("🛑 Kafka Consumer Adapter shutting down.")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Str("topic", a.topic).Msg("could not read message, retrying")
			select {
			case <-time.After(a.retryBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// 处理成功或已移交死信队列才提交 offset，否则原地重试同一条消息
		for !a.process(ctx, msg) {
			logger.Ctx(ctx).Warn().Str("topic", a.topic).Int64("offset", msg.Offset).Msg("message not handed off, retrying")
			select {
			case <-time.After(a.retryBackoff):
			case <-ctx.Done():
				return nil
			}
		}

		if err := a.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Error().Err(err).Str("topic", a.topic).Msg("failed to commit message")
		}
	}
}

// process 处理一条消息，返回 false 表示消息既未处理成功也未进入死信队列
func (a *ConsumerAdapter) process(parent context.Context, msg kafka.Message) bool {
	ctx := mq.ExtractTraceContext(parent, msg.Headers)
	ctx, span := a.tracer.Start(ctx, "coupon-consumer."+a.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()
	ctx = logger.WithTraceID(ctx)

	err := a.handle(ctx, msg)
	switch {
	case err == nil:
		return true
	case domain.IsDomainError(err):
		// 业务拒绝重试也不会成功
		logger.Ctx(ctx).Warn().Err(err).Str("topic", a.topic).Int64("offset", msg.Offset).Msg("coupon event rejected")
		return true
	default:
		tracing.RecordError(span, err)
		if a.failureHandler == nil {
			logger.Ctx(ctx).Error().Err(err).Str("topic", a.topic).Int64("offset", msg.Offset).Msg("failed to handle message")
			return true
		}
		if derr := a.failureHandler.Handle(ctx, msg, err); derr != nil {
			tracing.RecordError(span, derr)
			return false
		}
		return true
	}
}
