// internal/service/coupon/interfaces/dlt_handler.go
package interfaces

import (
	"context"

	"github.com/segmentio/kafka-go"
	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/pkg/mq"
)

// NewDLTConsumerAdapter 监听某个死信主题，只记录日志，消息总是直接提交
func NewDLTConsumerAdapter(topic string, reader MessageReader) *ConsumerAdapter {
	return NewConsumerAdapter(mq.DLTTopic(topic), reader, LogDeadLetter, nil)
}

// LogDeadLetter 记录死信消息详情
func LogDeadLetter(ctx context.Context, msg kafka.Message) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_fqcn", headers[mq.HeaderExceptionFqcn]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
